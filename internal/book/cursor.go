package book

import (
	"encoding/base64"
	"time"

	"github.com/goccy/go-json"
)

// CursorData is the keyset position after the last book of a page.
type CursorData struct {
	AfterID   string    `json:"after_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func (c CursorData) IsZero() bool {
	return c.AfterID == ""
}

// EncodeCursor encodes cursor data to a base64 string
func EncodeCursor(data CursorData) string {
	if data.AfterID == "" {
		return ""
	}
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(jsonBytes)
}

// DecodeCursor decodes a base64 cursor string to CursorData
func DecodeCursor(cursor string) (CursorData, error) {
	if cursor == "" {
		return CursorData{}, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return CursorData{}, err
	}

	var data CursorData
	if err := json.Unmarshal(decoded, &data); err != nil {
		return CursorData{}, err
	}
	return data, nil
}

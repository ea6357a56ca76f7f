package loan

import (
	"html/template"
	"net/http"

	"booklend/internal/logging"
)

// The page has no script or style so it renders under default-src 'none'.
var actionPage = template.Must(template.New("loan-action").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>BookLend</title></head>
<body>
{{- if .Confirm}}
<h1>{{if eq .Action "approve"}}Approve{{else}}Reject{{end}} this loan request?</h1>
<p>{{if .BookTitle}}&ldquo;{{.BookTitle}}&rdquo;{{else}}Your book{{end}} was requested on {{.RequestedAt}}.
This link expires on {{.ExpiresAt}}.</p>
<form method="post" action="/loan-action">
<input type="hidden" name="token" value="{{.Token}}">
<button type="submit">{{if eq .Action "approve"}}Approve{{else}}Reject{{end}}</button>
</form>
{{- else}}
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{- end}}
</body>
</html>
`))

type actionPageData struct {
	Confirm     bool
	Action      Action
	BookTitle   string
	RequestedAt string
	ExpiresAt   string
	Token       string

	Title   string
	Message string
}

func renderActionPage(w http.ResponseWriter, r *http.Request, status int, data actionPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.WriteHeader(status)
	if err := actionPage.Execute(w, data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("render loan action page")
	}
}

package recognition

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"booklend/internal/platform"
	"booklend/internal/platform/gemini"
	"booklend/internal/platform/googlebooks"
	"booklend/internal/platform/openlibrary"
	"booklend/internal/platform/vision"
)

type mockAnnotator struct {
	mock.Mock
}

func (m *mockAnnotator) Annotate(ctx context.Context, imageBase64 string) (vision.Annotation, error) {
	args := m.Called(ctx, imageBase64)
	return args.Get(0).(vision.Annotation), args.Error(1)
}

type mockBooks struct {
	mock.Mock
}

func (m *mockBooks) Search(ctx context.Context, query string, maxResults int) ([]googlebooks.Volume, error) {
	args := m.Called(ctx, query, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]googlebooks.Volume), args.Error(1)
}

type mockFallback struct {
	mock.Mock
}

func (m *mockFallback) SearchByTitle(ctx context.Context, title, author string, limit int) ([]openlibrary.Doc, error) {
	args := m.Called(ctx, title, author, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]openlibrary.Doc), args.Error(1)
}

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) GenerateJSON(ctx context.Context, prompt string, img *gemini.Image) (string, error) {
	args := m.Called(ctx, prompt, img)
	return args.String(0), args.Error(1)
}

func vols(ids ...string) []googlebooks.Volume {
	out := make([]googlebooks.Volume, 0, len(ids))
	for _, id := range ids {
		out = append(out, googlebooks.Volume{ID: id, Title: "Title " + id})
	}
	return out
}

func TestRecognize_ScoresAndRanks(t *testing.T) {
	va := new(mockAnnotator)
	books := new(mockBooks)
	svc := NewService(va, books, nil, nil)
	ctx := context.Background()

	va.On("Annotate", ctx, "img").Return(vision.Annotation{
		BestGuessLabels: []string{"dune"},
		Text:            "DUNE\nFrank Herbert",
	}, nil)
	books.On("Search", ctx, `intitle:"dune"`, 5).Return([]googlebooks.Volume{
		{ID: "a", Title: "The Road to Dune", PublishedDate: "2005"},
		{ID: "b", Title: "Dune", Authors: []string{"Frank Herbert"}, Thumbnail: "http://c", ISBN13: "9780441172719"},
	}, nil)
	books.On("Search", ctx, `intitle:"Frank Herbert"`, 5).Return([]googlebooks.Volume{
		{ID: "b", Title: "Dune"},
		{ID: "c", Title: "Frank Herbert: a biography"},
	}, nil)
	books.On("Search", ctx, `intitle:"DUNE"`, 5).Return(vols(), nil)

	cands, err := svc.Recognize(ctx, "img", 5)
	require.NoError(t, err)
	require.Len(t, cands, 3)
	assert.Equal(t, "b", cands[0].SourceID)
	assert.Equal(t, SourceGoogleBooks, cands[0].Source)
	assert.Equal(t, "9780441172719", cands[0].ISBN())
	for i := 1; i < len(cands); i++ {
		assert.GreaterOrEqual(t, cands[i-1].Score, cands[i].Score)
	}
	books.AssertExpectations(t)
}

func TestRecognize_StopsAtTwiceTheCount(t *testing.T) {
	va := new(mockAnnotator)
	books := new(mockBooks)
	svc := NewService(va, books, nil, nil)
	ctx := context.Background()

	va.On("Annotate", ctx, "img").Return(vision.Annotation{
		BestGuessLabels: []string{"first label", "second label", "third label"},
	}, nil)
	books.On("Search", ctx, `intitle:"first label"`, 5).Return(vols("1", "2", "3", "4", "5"), nil)
	books.On("Search", ctx, `intitle:"second label"`, 5).Return(vols("6", "7", "8", "9", "10"), nil)

	cands, err := svc.Recognize(ctx, "img", 3)
	require.NoError(t, err)
	assert.Len(t, cands, 3)
	books.AssertNotCalled(t, "Search", ctx, `intitle:"third label"`, 5)
}

func TestRecognize_SkipsFailingQuery(t *testing.T) {
	va := new(mockAnnotator)
	books := new(mockBooks)
	svc := NewService(va, books, nil, nil)
	ctx := context.Background()

	va.On("Annotate", ctx, "img").Return(vision.Annotation{BestGuessLabels: []string{"one", "two"}}, nil)
	books.On("Search", ctx, `intitle:"one"`, 5).Return(nil, &platform.UpstreamError{Service: "google_books", StatusCode: 503})
	books.On("Search", ctx, `intitle:"two"`, 5).Return(vols("x"), nil)

	cands, err := svc.Recognize(ctx, "img", 5)
	require.NoError(t, err)
	assert.Len(t, cands, 1)
}

func TestRecognize_AllQueriesFail(t *testing.T) {
	va := new(mockAnnotator)
	books := new(mockBooks)
	svc := NewService(va, books, nil, nil)
	ctx := context.Background()

	upstream := &platform.UpstreamError{Service: "google_books", StatusCode: 500}
	va.On("Annotate", ctx, "img").Return(vision.Annotation{BestGuessLabels: []string{"one"}}, nil)
	books.On("Search", ctx, `intitle:"one"`, 5).Return(nil, upstream)

	_, err := svc.Recognize(ctx, "img", 5)
	assert.ErrorIs(t, err, upstream)
}

func TestRecognize_VisionFailureFailsWholeRequest(t *testing.T) {
	va := new(mockAnnotator)
	books := new(mockBooks)
	svc := NewService(va, books, nil, nil)
	ctx := context.Background()

	va.On("Annotate", ctx, "img").Return(vision.Annotation{}, vision.ErrNoResponses)

	_, err := svc.Recognize(ctx, "img", 5)
	assert.ErrorIs(t, err, vision.ErrNoResponses)
	books.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecognize_EmptyImage(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil).Recognize(context.Background(), " ", 5)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestRefine(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		out     string
		err     error
		want    Refined
		wantErr error
	}{
		{name: "plain", out: `{"title":"Dune","author":"Frank Herbert"}`, want: Refined{Title: "Dune", Author: "Frank Herbert"}},
		{name: "fenced", out: "```json\n{\"title\": \" Dune \", \"author\": \"\"}\n```", want: Refined{Title: "Dune"}},
		{name: "chatty", out: `Sure! {"title":"A {weird} title","author":"X"} hope this helps`, want: Refined{Title: "A {weird} title", Author: "X"}},
		{name: "empty title", out: `{"title":""}`, wantErr: ErrNotFound},
		{name: "garbage", out: `no idea`, wantErr: ErrNotFound},
		{name: "empty response", err: gemini.ErrEmptyResponse, wantErr: ErrNotFound},
		{name: "not configured", err: platform.NotConfigured("GEMINI_API_KEY"), wantErr: platform.ErrNotConfigured},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llm := new(mockLLM)
			llm.On("GenerateJSON", ctx, mock.AnythingOfType("string"), (*gemini.Image)(nil)).Return(tc.out, tc.err)

			got, err := NewService(nil, nil, nil, llm).Refine(ctx, "dune herbert pb")
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIdentifyCover_SendsImage(t *testing.T) {
	ctx := context.Background()
	llm := new(mockLLM)
	llm.On("GenerateJSON", ctx, coverPrompt, &gemini.Image{MIMEType: "image/png", Base64: "iVBORw0KGgo"}).
		Return(`{"title":"Pachinko","author":"Min Jin Lee"}`, nil)

	got, err := NewService(nil, nil, nil, llm).IdentifyCover(ctx, "iVBORw0KGgo")
	require.NoError(t, err)
	assert.Equal(t, Refined{Title: "Pachinko", Author: "Min Jin Lee"}, got)
}

func TestSearchByTitle_UsesPrimary(t *testing.T) {
	ctx := context.Background()
	llm := new(mockLLM)
	books := new(mockBooks)
	fb := new(mockFallback)
	llm.On("GenerateJSON", ctx, mock.Anything, (*gemini.Image)(nil)).Return(`{"title":"Dune","author":"Frank Herbert"}`, nil)
	books.On("Search", ctx, `intitle:"Dune" inauthor:"Frank Herbert"`, 5).Return(vols("1", "2"), nil)

	cands, err := NewService(nil, books, fb, llm).SearchByTitle(ctx, "dune", 0)
	require.NoError(t, err)
	assert.Len(t, cands, 2)
	assert.Zero(t, cands[0].Score)
	fb.AssertNotCalled(t, "SearchByTitle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearchByTitle_FallsBackWhenPrimaryEmpty(t *testing.T) {
	ctx := context.Background()
	llm := new(mockLLM)
	books := new(mockBooks)
	fb := new(mockFallback)
	llm.On("GenerateJSON", ctx, mock.Anything, (*gemini.Image)(nil)).Return(`{"title":"채식주의자","author":"한강"}`, nil)
	books.On("Search", ctx, mock.Anything, 4).Return(vols(), nil)
	fb.On("SearchByTitle", ctx, "채식주의자", "한강", 4).Return([]openlibrary.Doc{
		{Key: "/works/OL1W", Title: "채식주의자", AuthorNames: []string{"한강"}, ISBN: []string{"8936433598", "9788936433598"}, FirstPublishYear: 2007, Language: []string{"kor"}},
	}, nil)

	cands, err := NewService(nil, books, fb, llm).SearchByTitle(ctx, "vegetarian han kang", 4)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	c := cands[0]
	assert.Equal(t, SourceOpenLibrary, c.Source)
	assert.Equal(t, "9788936433598", c.ISBN13)
	assert.Equal(t, "8936433598", c.ISBN10)
	assert.Equal(t, "ko", c.Language)
	require.NotNil(t, c.PublishedYear)
	assert.Equal(t, 2007, *c.PublishedYear)
}

func TestSearchByTitle_BothSourcesFail(t *testing.T) {
	ctx := context.Background()
	llm := new(mockLLM)
	books := new(mockBooks)
	fb := new(mockFallback)
	primary := &platform.UpstreamError{Service: "google_books", StatusCode: 503}
	llm.On("GenerateJSON", ctx, mock.Anything, (*gemini.Image)(nil)).Return(`{"title":"Dune"}`, nil)
	books.On("Search", ctx, `intitle:"Dune"`, 5).Return(nil, primary)
	fb.On("SearchByTitle", ctx, "Dune", "", 5).Return(nil, errors.New("open library down"))

	_, err := NewService(nil, books, fb, llm).SearchByTitle(ctx, "dune", 5)
	assert.ErrorIs(t, err, primary)
}

func TestExtractJSONObject(t *testing.T) {
	got, ok := extractJSONObject(`{"a":{"b":"}"}} trailing`)
	require.True(t, ok)
	assert.Equal(t, `{"a":{"b":"}"}}`, got)

	_, ok = extractJSONObject(`{"unterminated": 1`)
	assert.False(t, ok)
}

package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow/internal/shared"
)

func TestRenderHTMLPostsDocumentAndPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "8.27", r.FormValue("paperWidth"))
		assert.Equal(t, "0.4", r.FormValue("marginLeft"))
		assert.Empty(t, r.FormValue("landscape"))

		f, _, err := r.FormFile("files")
		if !assert.NoError(t, err) {
			return
		}
		html, _ := io.ReadAll(f)
		assert.Equal(t, "<h1>hi</h1>", string(html))
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	pdf, err := NewClient(srv.URL+"/", A4).RenderHTML(context.Background(), "<h1>hi</h1>")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))
}

func TestRenderHTMLFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad html", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, PageOptions{}).RenderHTML(context.Background(), "<p>")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUpstream)
	assert.Contains(t, err.Error(), "bad html")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.NoError(t, NewClient(srv.URL, A4).Ping(context.Background()))
	assert.ErrorIs(t, NewClient(srv.URL+"/missing", A4).Ping(context.Background()), shared.ErrUpstream)
}

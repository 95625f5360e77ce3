package fetcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclabs/stancewatch/internal/model"
)

func newTestFetcher() *Fetcher {
	return New(Options{
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		Timeout:     2 * time.Second,
	})
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "stancewatch-crawler")
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	page, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, page.URL)
	assert.Equal(t, srv.URL, page.FinalURL)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.HTML, "hello")
}

func TestFetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>moved here</html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/old", page.URL)
	assert.Equal(t, srv.URL+"/new", page.FinalURL)
	assert.Contains(t, page.HTML, "moved here")
}

func TestFetch_RedirectBound(t *testing.T) {
	var hops atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops.Add(1)
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindRedirect, fe.Kind)
	// MaxRedirects hops plus the initial request.
	assert.Equal(t, int64(6), hops.Load())
}

func TestFetch_RedirectWithoutLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindRedirect, fe.Kind)
}

func TestFetch_NonSuccessStatusNotRetried(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindHTTPStatus, fe.Kind)
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	assert.Equal(t, int64(1), requests.Load(), "non-2xx must not be retried")
}

func TestFetch_ForbiddenClass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, model.ErrorClassForbidden, Classify(err))
}

func TestFetch_InvalidURL(t *testing.T) {
	_, err := newTestFetcher().Fetch(context.Background(), "://not-a-url")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindInvalidURL, fe.Kind)
}

func TestFetch_BodySizeCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 1000; i++ {
			w.Write(make([]byte, 100))
		}
	}))
	defer srv.Close()

	f := New(Options{MaxBodyBytes: 1024, MaxAttempts: 1, RetryDelay: time.Millisecond})
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, page.HTML, 1024)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.ErrorClass
	}{
		{"nil", nil, model.ErrorClassNone},
		{"dns", &FetchError{Kind: KindDNS, Err: &net.DNSError{IsNotFound: true}}, model.ErrorClassDNS},
		{"forbidden", &FetchError{Kind: KindHTTPStatus, StatusCode: 403}, model.ErrorClassForbidden},
		{"not found", &FetchError{Kind: KindHTTPStatus, StatusCode: 404}, model.ErrorClassOther},
		{"network", &FetchError{Kind: KindNetwork, Err: errors.New("reset")}, model.ErrorClassOther},
		{"unclassified", errors.New("anything"), model.ErrorClassOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestIsHTML(t *testing.T) {
	assert.True(t, IsHTML(&Page{HTML: "<!DOCTYPE html><html></html>"}))
	assert.True(t, IsHTML(&Page{HTML: "  <HTML lang='en'>"}))
	assert.False(t, IsHTML(&Page{HTML: `{"json": true}`}))
}

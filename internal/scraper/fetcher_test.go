package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const homeHTML = `<!doctype html>
<html><head>
<title> Acme Corp </title>
<meta name="description" content="Rockets and anvils">
<style>.x{color:red}</style>
<script>var tracking = true;</script>
</head>
<body>
<nav><a href="/products">Products</a> <a href="/about-us">Who we are</a></nav>
<h1>Welcome   to
 Acme</h1>
<noscript>enable js</noscript>
</body></html>`

const aboutHTML = `<html><head><title>About Acme</title></head><body><p>Founded in 1949.</p></body></html>`

func newSite(t *testing.T, ua *string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if ua != nil {
			*ua = r.Header.Get("User-Agent")
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(homeHTML))
	})
	mux.HandleFunc("/about-us", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(aboutHTML))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchHomepageAndAbout(t *testing.T) {
	var ua string
	srv := newSite(t, &ua)

	f := New(Options{Timeout: time.Second, UserAgent: "factsheet-test"})
	data, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, srv.URL, data.URL)
	assert.True(t, data.Homepage.Success)
	assert.Equal(t, "Acme Corp", data.Homepage.Title)
	assert.Equal(t, "Rockets and anvils", data.Homepage.Description)
	assert.Equal(t, "Products Who we are Welcome to Acme", data.Homepage.Content)
	assert.NotContains(t, data.Homepage.Content, "tracking")
	assert.NotContains(t, data.Homepage.Content, "enable js")

	require.True(t, data.HasAbout())
	assert.Equal(t, srv.URL+"/about-us", data.About.URL)
	assert.Equal(t, "Founded in 1949.", data.About.Content)
	assert.Equal(t, "factsheet-test", ua)
}

func TestFetchNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(Options{Timeout: time.Second}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestFetchAboutFailureIsIgnored(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><body><a href="/company">Company</a>Hello</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	data, err := New(Options{Timeout: time.Second}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, data.HasAbout())
	assert.Equal(t, "Company Hello", data.Homepage.Content)
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(Options{Timeout: 200 * time.Millisecond}).Fetch(context.Background(), addr)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFetchSpacesRequestsPerHost(t *testing.T) {
	srv := newSite(t, nil)

	f := New(Options{Timeout: time.Second, Delay: 150 * time.Millisecond})
	start := time.Now()
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	// homepage + about page against the same host
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestExtractCapsContent(t *testing.T) {
	doc, err := html.Parse(strings.NewReader("<html><body><p>" + strings.Repeat("word ", 1000) + "</p></body></html>"))
	require.NoError(t, err)

	p := extractPage(doc)
	assert.Len(t, []rune(p.Content), maxContentChars)
}

func TestFindAboutLink(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"by href", `<a href="/about">x</a>`, "https://acme.com/about"},
		{"by text", `<a href="/team">About Us</a>`, "https://acme.com/team"},
		{"absolute", `<a href="https://other.com/company">x</a>`, "https://other.com/company"},
		{"skips self", `<a href="/#about">About</a>`, ""},
		{"skips mailto", `<a href="mailto:about@acme.com">about</a>`, ""},
		{"none", `<a href="/pricing">Pricing</a>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := html.Parse(strings.NewReader("<html><body>" + tt.body + "</body></html>"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, findAboutLink("https://acme.com/", doc))
		})
	}
}

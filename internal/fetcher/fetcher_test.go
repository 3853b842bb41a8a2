package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html lang="es">
<head>
  <title>Tienda Demo</title>
  <meta name="description" content="Productos de prueba">
  <script>var tracking = "precio oculto";</script>
</head>
<body>
  <nav><a href="/">Inicio</a> <a href="/carrito#top">Carrito</a></nav>
  <main>
    <h1>Plan Pro</h1>
    <p>Precio: $99.000 al mes.   Incluye soporte.</p>
    <a href="https://Partner.example.org/docs">Docs</a>
    <a href="mailto:ventas@example.com">Ventas</a>
    <a href="javascript:void(0)">Nada</a>
    <a href="/carrito">Carrito otra vez</a>
  </main>
</body>
</html>`

func TestResolveLink(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://example.com/shop/index.html")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		href string
		want string
	}{
		{name: "relative path", href: "cart", want: "https://example.com/shop/cart"},
		{name: "absolute path", href: "/checkout", want: "https://example.com/checkout"},
		{name: "fragment is dropped", href: "/pricing#plans", want: "https://example.com/pricing"},
		{name: "host is lowercased", href: "https://EXAMPLE.com/a", want: "https://example.com/a"},
		{name: "fragment only", href: "#top", want: ""},
		{name: "mailto", href: "mailto:a@example.com", want: ""},
		{name: "javascript", href: "JavaScript:alert(1)", want: ""},
		{name: "tel", href: "tel:+56900000000", want: ""},
		{name: "ftp scheme", href: "ftp://example.com/file", want: ""},
		{name: "empty", href: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ResolveLink(base, tt.href); got != tt.want {
				t.Errorf("ResolveLink(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}

func TestNormalizeLinks(t *testing.T) {
	t.Parallel()

	got := NormalizeLinks("https://example.com/", []string{"/b", "/a", "/b#x", "mailto:x@example.com", "https://example.com/a"})
	want := []string{"https://example.com/a", "https://example.com/b"}
	if !slices.Equal(got, want) {
		t.Errorf("NormalizeLinks() = %v, want %v", got, want)
	}
}

func TestIsInternal(t *testing.T) {
	t.Parallel()

	if !IsInternal("https://example.com/a", "https://EXAMPLE.com/b") {
		t.Error("expected same host to be internal")
	}
	if IsInternal("https://example.com/a", "https://other.example.com/b") {
		t.Error("expected different host to be external")
	}
}

func TestDirectExtract(t *testing.T) {
	t.Parallel()

	d := NewDirect(nil)
	page, err := d.Extract("https://example.com/plan", samplePage)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	t.Run("metadata is read from head", func(t *testing.T) {
		t.Parallel()
		if page.Metadata[MetaTitle] != "Tienda Demo" {
			t.Errorf("title = %q", page.Metadata[MetaTitle])
		}
		if page.Metadata[MetaDescription] != "Productos de prueba" {
			t.Errorf("description = %q", page.Metadata[MetaDescription])
		}
		if page.Metadata[MetaLanguage] != "es" {
			t.Errorf("language = %q", page.Metadata[MetaLanguage])
		}
	})

	t.Run("links are resolved and deduplicated", func(t *testing.T) {
		t.Parallel()
		want := []string{
			"https://example.com/",
			"https://example.com/carrito",
			"https://partner.example.org/docs",
		}
		if !slices.Equal(page.Links, want) {
			t.Errorf("Links = %v, want %v", page.Links, want)
		}
	})

	t.Run("text excludes scripts and collapses whitespace", func(t *testing.T) {
		t.Parallel()
		if strings.Contains(page.Text, "tracking") {
			t.Errorf("Text contains script content: %q", page.Text)
		}
		if !strings.Contains(page.Text, "Precio: $99.000 al mes. Incluye soporte.") {
			t.Errorf("Text = %q", page.Text)
		}
	})

	t.Run("markdown is produced", func(t *testing.T) {
		t.Parallel()
		if page.Markdown == "" {
			t.Error("Markdown is empty")
		}
	})
}

func TestDirectFetch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/plan", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/plan", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	d := NewDirect(srv.Client())

	t.Run("page is fetched", func(t *testing.T) {
		t.Parallel()
		page, err := d.Fetch(context.Background(), srv.URL+"/plan")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if page.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d", page.StatusCode)
		}
		if !slices.Contains(page.Links, srv.URL+"/carrito") {
			t.Errorf("Links = %v, want %s/carrito", page.Links, srv.URL)
		}
	})

	t.Run("redirect is followed", func(t *testing.T) {
		t.Parallel()
		page, err := d.Fetch(context.Background(), srv.URL+"/old")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if page.URL != srv.URL+"/old" {
			t.Errorf("URL = %q", page.URL)
		}
		if page.FinalURL != srv.URL+"/plan" {
			t.Errorf("FinalURL = %q", page.FinalURL)
		}
	})

	t.Run("error status is a StatusError", func(t *testing.T) {
		t.Parallel()
		_, err := d.Fetch(context.Background(), srv.URL+"/gone")
		if got := StatusCodeOf(err); got != http.StatusNotFound {
			t.Errorf("StatusCodeOf() = %d, want 404 (err = %v)", got, err)
		}
		if errors.Is(err, ErrUnavailable) {
			t.Error("page errors must not be reported as fetcher unavailable")
		}
	})
}

func newFirecrawlServer(t *testing.T, handler func(w http.ResponseWriter, req scrapeRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scrape" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer fc-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req scrapeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFirecrawlFetch(t *testing.T) {
	t.Parallel()

	t.Run("successful scrape is mapped to a page", func(t *testing.T) {
		t.Parallel()
		srv := newFirecrawlServer(t, func(w http.ResponseWriter, req scrapeRequest) {
			if !slices.Contains(req.Formats, "markdown") || !slices.Contains(req.Formats, "links") {
				t.Errorf("formats = %v", req.Formats)
			}
			_, _ = w.Write([]byte(`{
				"success": true,
				"data": {
					"markdown": "# Plan Pro\n\nPrecio:   $99.000",
					"html": "<h1>Plan Pro</h1>",
					"links": ["/carrito", "https://example.com/carrito#x", "mailto:x@example.com"],
					"metadata": {"title": "Tienda", "statusCode": 200, "sourceURL": "` + req.URL + `"}
				}
			}`))
		})

		f := NewFirecrawl(srv.Client(), "fc-test", WithFirecrawlBaseURL(srv.URL))
		page, err := f.Fetch(context.Background(), "https://example.com/plan")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if page.Metadata[MetaTitle] != "Tienda" {
			t.Errorf("title = %q", page.Metadata[MetaTitle])
		}
		if !slices.Equal(page.Links, []string{"https://example.com/carrito"}) {
			t.Errorf("Links = %v", page.Links)
		}
		if page.Text != "# Plan Pro Precio: $99.000" {
			t.Errorf("Text = %q", page.Text)
		}
	})

	t.Run("bad credentials make the fetcher unavailable", func(t *testing.T) {
		t.Parallel()
		srv := newFirecrawlServer(t, func(http.ResponseWriter, scrapeRequest) {})
		f := NewFirecrawl(srv.Client(), "wrong", WithFirecrawlBaseURL(srv.URL))
		_, err := f.Fetch(context.Background(), "https://example.com/")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
	})

	t.Run("server errors make the fetcher unavailable", func(t *testing.T) {
		t.Parallel()
		srv := newFirecrawlServer(t, func(w http.ResponseWriter, _ scrapeRequest) {
			w.WriteHeader(http.StatusBadGateway)
		})
		f := NewFirecrawl(srv.Client(), "fc-test", WithFirecrawlBaseURL(srv.URL))
		_, err := f.Fetch(context.Background(), "https://example.com/")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
	})

	t.Run("page error status is a StatusError", func(t *testing.T) {
		t.Parallel()
		srv := newFirecrawlServer(t, func(w http.ResponseWriter, _ scrapeRequest) {
			_, _ = w.Write([]byte(`{"success": true, "data": {"markdown": "", "metadata": {"statusCode": 404}}}`))
		})
		f := NewFirecrawl(srv.Client(), "fc-test", WithFirecrawlBaseURL(srv.URL))
		_, err := f.Fetch(context.Background(), "https://example.com/missing")
		if got := StatusCodeOf(err); got != http.StatusNotFound {
			t.Errorf("StatusCodeOf() = %d, want 404", got)
		}
		if errors.Is(err, ErrUnavailable) {
			t.Error("page errors must not be reported as fetcher unavailable")
		}
	})

	t.Run("scrape timeout is reported", func(t *testing.T) {
		t.Parallel()
		srv := newFirecrawlServer(t, func(w http.ResponseWriter, _ scrapeRequest) {
			w.WriteHeader(http.StatusRequestTimeout)
		})
		f := NewFirecrawl(srv.Client(), "fc-test", WithFirecrawlBaseURL(srv.URL))
		_, err := f.Fetch(context.Background(), "https://example.com/slow")
		if !errors.Is(err, ErrScrapeTimeout) {
			t.Errorf("error = %v, want ErrScrapeTimeout", err)
		}
	})

	t.Run("unreachable api makes the fetcher unavailable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()
		f := NewFirecrawl(http.DefaultClient, "fc-test", WithFirecrawlBaseURL(addr))
		_, err := f.Fetch(context.Background(), "https://example.com/")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
	})
}

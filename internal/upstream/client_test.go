package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(opts Options) *Client {
	opts.AllowPrivate = true
	if opts.RatePerSecond == 0 {
		opts.RatePerSecond = 1000
		opts.Burst = 1000
	}
	return New(opts)
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name    string
		ep      Endpoint
		vars    Vars
		want    string
		wantErr error
	}{
		{
			name: "query escaped",
			ep:   Endpoint{URL: "https://api.example.com/w?q={query}&appid={key}", Key: "k1"},
			vars: Vars{"query": "new york"},
			want: "https://api.example.com/w?q=new+york&appid=k1",
		},
		{
			name: "path escaped",
			ep:   Endpoint{URL: "https://en.wikipedia.org/api/rest_v1/page/summary/{query}"},
			vars: Vars{"query": "Go (programming language)"},
			want: "https://en.wikipedia.org/api/rest_v1/page/summary/Go%20%28programming%20language%29",
		},
		{
			name:    "missing key",
			ep:      Endpoint{URL: "https://x.test/?k={key}"},
			wantErr: ErrNotConfigured,
		},
		{
			name:    "no url",
			ep:      Endpoint{},
			wantErr: ErrNotConfigured,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ep.Expand(tt.vars)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expand() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expand() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Expand() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := (Endpoint{URL: "https://x.test/{nope}"}).Expand(Vars{}); err == nil {
		t.Error("unknown placeholder should fail")
	}
}

func TestFetchJSONExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "Paris" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"name":"Paris","main":{"temp":21.5},"weather":[{"description":"clear sky"}]}`)
	}))
	defer srv.Close()

	c := testClient(Options{})
	var out struct {
		City string  `json:"city"`
		Temp float64 `json:"temp"`
		Desc string  `json:"desc"`
	}
	ep := Endpoint{
		URL:     srv.URL + "/weather?q={query}",
		Extract: `{city: .name, temp: .main.temp, desc: .weather[0].description}`,
	}
	if err := c.FetchJSON(context.Background(), "weather", ep, Vars{"query": "Paris"}, &out); err != nil {
		t.Fatalf("FetchJSON: %v", err)
	}
	if out.City != "Paris" || out.Temp != 21.5 || out.Desc != "clear sky" {
		t.Errorf("unexpected result %+v", out)
	}
	if c.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", c.Calls())
	}
}

func TestFetchJSONErrors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer srv.Close()

		var out map[string]any
		err := testClient(Options{}).FetchJSON(context.Background(), "lyrics", Endpoint{URL: srv.URL}, nil, &out)
		var se *StatusError
		if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
			t.Fatalf("expected StatusError 502, got %v", err)
		}
		var ue *Error
		if !errors.As(err, &ue) || ue.Service != "lyrics" {
			t.Fatalf("expected service error, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		var out map[string]any
		err := testClient(Options{Timeout: 50 * time.Millisecond}).FetchJSON(context.Background(), "joke", Endpoint{URL: srv.URL}, nil, &out)
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>not json</html>`)
		}))
		defer srv.Close()

		var out map[string]any
		err := testClient(Options{}).FetchJSON(context.Background(), "quote", Endpoint{URL: srv.URL}, nil, &out)
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("empty extraction", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"list":[]}`)
		}))
		defer srv.Close()

		var out map[string]any
		err := testClient(Options{}).FetchJSON(context.Background(), "define", Endpoint{URL: srv.URL, Extract: ".list[0]"}, nil, &out)
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})
}

func TestFetchJSONFallback(t *testing.T) {
	var primary, fallback atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/primary":
			primary.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/fallback":
			fallback.Add(1)
			fmt.Fprint(w, `{"setup":"a","punchline":"b"}`)
		}
	}))
	defer srv.Close()

	ep := Endpoint{
		URL:       srv.URL + "/primary",
		Fallbacks: []Endpoint{{URL: srv.URL + "/fallback"}},
	}
	var out struct{ Setup, Punchline string }
	if err := testClient(Options{}).FetchJSON(context.Background(), "joke", ep, nil, &out); err != nil {
		t.Fatalf("FetchJSON: %v", err)
	}
	if primary.Load() != 1 || fallback.Load() != 1 {
		t.Errorf("primary=%d fallback=%d, want 1 each", primary.Load(), fallback.Load())
	}
	if out.Punchline != "b" {
		t.Errorf("unexpected result %+v", out)
	}
}

func TestDownload(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 64))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img":
			w.Write(png)
		case "/big":
			w.Write(make([]byte, 2048))
		}
	}))
	defer srv.Close()

	c := testClient(Options{MaxDownloadBytes: 1024})
	blob, err := c.Download(context.Background(), "image", srv.URL+"/img")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if blob.MIME != "image/png" || blob.Ext != ".png" {
		t.Errorf("MIME = %q ext = %q, want image/png .png", blob.MIME, blob.Ext)
	}

	if _, err := c.Download(context.Background(), "image", srv.URL+"/big"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestDownloadRefusesPrivateURLs(t *testing.T) {
	c := New(Options{})
	_, err := c.Download(context.Background(), "read", "http://127.0.0.1:9/x")
	var safety *URLSafetyError
	if !errors.As(err, &safety) {
		t.Fatalf("expected URLSafetyError, got %v", err)
	}
	if c.Calls() != 0 {
		t.Errorf("no request should be made, got %d", c.Calls())
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
		ok   bool
	}{
		{&Error{Service: "weather", Err: &StatusError{Code: 404}}, "weather found nothing for that.", true},
		{&Error{Service: "weather", Err: fmt.Errorf("%w: x", ErrTimeout)}, "weather took too long to answer. Try again later.", true},
		{&Error{Service: "wiki", Err: ErrMalformed}, "wiki returned an unexpected answer.", true},
		{&Error{Service: "image", Err: ErrNotConfigured}, "image is not configured on this bot.", true},
		{errors.New("other"), "", false},
	}
	for _, tt := range tests {
		got, ok := Describe(tt.err)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Describe(%v) = (%q, %v), want (%q, %v)", tt.err, got, ok, tt.want, tt.ok)
		}
	}
}

package upstream

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestCheckTarget(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		errMsg string // "" means allowed
	}{
		{"file scheme", "file:///etc/passwd", "scheme"},
		{"ftp scheme", "ftp://example.com", "scheme"},
		{"no scheme", "example.com", "scheme"},
		{"empty host", "http:///path", "empty hostname"},
		{"loopback literal", "http://127.0.0.1:3000", "loopback"},
		{"ipv6 loopback", "http://[::1]", "loopback"},
		{"private literal", "http://192.168.1.1", "private"},
		{"aws metadata", "http://169.254.169.254/latest/meta-data/", "link-local"},
		{"gcp metadata", "http://metadata.google.internal", "cloud metadata"},
		{"trailing dot metadata", "http://metadata.google.internal./", "cloud metadata"},
		{"unspecified", "http://0.0.0.0", "unspecified"},
		// names are judged at dial time
		{"hostname", "https://example.com/a.png", ""},
		{"localhost name", "http://localhost:8080", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkTarget(tt.url)
			if tt.errMsg == "" {
				if err != nil {
					t.Fatalf("checkTarget(%q) = %v, want nil", tt.url, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("checkTarget(%q) = %v, want error containing %q", tt.url, err, tt.errMsg)
			}
		})
	}
}

func TestGuardDial(t *testing.T) {
	tests := []struct {
		address string
		blocked bool
	}{
		{"93.184.216.34:443", false},
		{"[2606:4700:4700::1111]:443", false},
		{"127.0.0.1:80", true},
		{"[::1]:80", true},
		{"10.1.2.3:8080", true},
		{"[::ffff:127.0.0.1]:80", true},
		{"169.254.169.254:80", true},
		{"example.com:80", true},
		{"no-port", true},
	}
	for _, tt := range tests {
		err := guardDial("tcp", tt.address, nil)
		var safety *URLSafetyError
		if got := errors.As(err, &safety); got != tt.blocked {
			t.Errorf("guardDial(%q) = %v, blocked %v", tt.address, err, tt.blocked)
		}
	}
}

func TestBlockedIPReason(t *testing.T) {
	tests := []struct {
		ip      string
		blocked bool
	}{
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"::ffff:127.0.0.1", true},
		{"fe80::1", true},
		{"2606:4700:4700::1111", false},
	}
	for _, tt := range tests {
		got := blockedIPReason(net.ParseIP(tt.ip)) != ""
		if got != tt.blocked {
			t.Errorf("blockedIPReason(%s) blocked = %v, want %v", tt.ip, got, tt.blocked)
		}
	}
}

func TestDownloadBlocksNamesResolvingInward(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("secret")) //nolint:errcheck
	}))
	defer srv.Close()

	_, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}

	c := New(Options{RatePerSecond: 1000, Burst: 1000})
	// passes the URL check, refused once localhost resolves to loopback
	_, err = c.Download(context.Background(), "read", "http://localhost:"+port+"/x")
	var safety *URLSafetyError
	if !errors.As(err, &safety) {
		t.Fatalf("expected URLSafetyError, got %v", err)
	}
	if msg, _ := Describe(err); msg != "That URL is not allowed." {
		t.Errorf("Describe = %q", msg)
	}
	if hits.Load() != 0 {
		t.Errorf("server was reached %d times", hits.Load())
	}
}

func TestFetchJSONReachesConfiguredLocalEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(Options{RatePerSecond: 1000, Burst: 1000})
	var out struct{ OK bool }
	if err := c.FetchJSON(context.Background(), "local", Endpoint{URL: srv.URL}, nil, &out); err != nil || !out.OK {
		t.Fatalf("FetchJSON = %v, out %+v", err, out)
	}
}

package upstream

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// URLSafetyError is a user-supplied URL the bot refuses to fetch.
type URLSafetyError struct {
	URL    string
	Reason string
}

func (e *URLSafetyError) Error() string {
	return fmt.Sprintf("URL blocked: %s", e.Reason)
}

// checkTarget rejects URLs that are unsafe on their face: non-http schemes,
// missing hosts, metadata hostnames and literal internal addresses. Names
// that resolve inward are caught when the connection is dialed.
func checkTarget(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &URLSafetyError{URL: raw, Reason: fmt.Sprintf("invalid URL: %v", err)}
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return &URLSafetyError{URL: raw, Reason: fmt.Sprintf("scheme %q not allowed", u.Scheme)}
	}
	host := u.Hostname()
	if host == "" {
		return &URLSafetyError{URL: raw, Reason: "empty hostname"}
	}
	if isMetadataHost(host) {
		return &URLSafetyError{URL: raw, Reason: "cloud metadata hostname " + host}
	}
	if ip := net.ParseIP(host); ip != nil {
		if reason := blockedIPReason(ip); reason != "" {
			return &URLSafetyError{URL: raw, Reason: reason}
		}
	}
	return nil
}

// guardDial is a net.Dialer Control hook. It sees the address actually being
// connected to, after DNS, so a name cannot be re-pointed between check and use.
func guardDial(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return &URLSafetyError{URL: address, Reason: "bad dial address"}
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return &URLSafetyError{URL: address, Reason: "unresolved dial address"}
	}
	if reason := blockedIPReason(ip); reason != "" {
		L_debug("upstream: dial blocked", "network", network, "address", address, "reason", reason)
		return &URLSafetyError{URL: address, Reason: fmt.Sprintf("%s (%s)", reason, ip)}
	}
	return nil
}

// guardedClient copies hc so that every connection it opens, redirects
// included, must land on a public address.
func guardedClient(hc *http.Client) *http.Client {
	clone := *hc
	clone.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return checkTarget(req.URL.String())
	}

	base, ok := hc.Transport.(*http.Transport)
	if hc.Transport == nil {
		base, ok = http.DefaultTransport.(*http.Transport)
	}
	if !ok {
		L_warn("upstream: custom transport, internal addresses only checked by URL")
		return &clone
	}
	t := base.Clone()
	// a proxy would be the only address dialed
	t.Proxy = nil
	t.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   guardDial,
	}).DialContext
	clone.Transport = t
	return &clone
}

func blockedIPReason(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return "loopback address blocked"
	case ip.IsPrivate():
		return "private network address blocked"
	case ip.IsLinkLocalUnicast():
		return "link-local address blocked"
	case ip.IsLinkLocalMulticast(), ip.IsInterfaceLocalMulticast(), ip.IsMulticast():
		return "multicast address blocked"
	case ip.IsUnspecified():
		return "unspecified address blocked"
	}
	return ""
}

var metadataHosts = []string{
	"metadata.google.internal",
	"metadata.goog",
	"kubernetes.default.svc",
	"kubernetes.default",
	"metadata",
}

func isMetadataHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, mh := range metadataHosts {
		if host == mh || strings.HasSuffix(host, "."+mh) {
			return true
		}
	}
	return false
}

package upstream

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Endpoint describes one external API call. URL and header values are
// templates: {name} placeholders are filled from Vars, {key} from Key.
type Endpoint struct {
	URL       string            `json:"url" yaml:"url"`
	Key       string            `json:"key,omitempty" yaml:"key,omitempty"`
	Method    string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Extract   string            `json:"extract,omitempty" yaml:"extract,omitempty"` // jq expression
	Fallbacks []Endpoint        `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`
}

// Vars are the placeholder values for an Endpoint template.
type Vars map[string]string

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expand fills the URL template. Placeholders before the query string are
// path-escaped, those after it query-escaped.
func (e Endpoint) Expand(vars Vars) (string, error) {
	if e.URL == "" {
		return "", fmt.Errorf("%w: endpoint has no url", ErrNotConfigured)
	}
	queryStart := strings.IndexByte(e.URL, '?')

	var expandErr error
	var b strings.Builder
	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(e.URL, -1) {
		b.WriteString(e.URL[last:m[0]])
		last = m[1]

		name := e.URL[m[2]:m[3]]
		val, err := e.lookup(name, vars)
		if err != nil {
			expandErr = err
			break
		}
		if queryStart >= 0 && m[0] > queryStart {
			b.WriteString(url.QueryEscape(val))
		} else {
			b.WriteString(url.PathEscape(val))
		}
	}
	if expandErr != nil {
		return "", expandErr
	}
	b.WriteString(e.URL[last:])
	return b.String(), nil
}

// ExpandHeaders fills header templates without escaping.
func (e Endpoint) ExpandHeaders(vars Vars) (map[string]string, error) {
	if len(e.Headers) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(e.Headers))
	for k, tmpl := range e.Headers {
		var expandErr error
		v := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
			val, err := e.lookup(m[1:len(m)-1], vars)
			if err != nil && expandErr == nil {
				expandErr = err
			}
			return val
		})
		if expandErr != nil {
			return nil, expandErr
		}
		out[k] = v
	}
	return out, nil
}

func (e Endpoint) lookup(name string, vars Vars) (string, error) {
	if name == "key" {
		if e.Key == "" {
			return "", fmt.Errorf("%w: api key missing", ErrNotConfigured)
		}
		return e.Key, nil
	}
	val, ok := vars[name]
	if !ok {
		return "", fmt.Errorf("unknown placeholder {%s}", name)
	}
	return val, nil
}

// chain returns the endpoint followed by its fallbacks, in try order.
func (e Endpoint) chain() []Endpoint {
	out := make([]Endpoint, 0, 1+len(e.Fallbacks))
	primary := e
	primary.Fallbacks = nil
	out = append(out, primary)
	for _, fb := range e.Fallbacks {
		fb.Fallbacks = nil
		if fb.Key == "" {
			fb.Key = e.Key
		}
		out = append(out, fb)
	}
	return out
}

package fun

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/roelfdiedericks/wabot/internal/commands/commandstest"
	"github.com/roelfdiedericks/wabot/internal/config"
	"github.com/roelfdiedericks/wabot/internal/upstream"
)

const user = commandstest.User

func TestJokeFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/primary" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"setup":"Why do gophers dig?","delivery":"To get to the other side."}`)
	}))
	defer srv.Close()

	ep := upstream.Endpoint{
		URL:       srv.URL + "/primary",
		Extract:   `{setup: .setup, punchline: .punchline}`,
		Fallbacks: []upstream.Endpoint{{URL: srv.URL + "/fallback", Extract: `{setup: .setup, punchline: .delivery}`}},
	}
	env := commandstest.NewEnv(t, Register, commandstest.WithAPI(config.APIJoke, ep))
	env.Run(user, user, ".joke")

	if got := env.Socket.LastText(); got != "Why do gophers dig?\n\nTo get to the other side." {
		t.Errorf("reply = %q", got)
	}
	if n := env.Services.HTTP.Calls(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestQuoteMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	ep := upstream.Endpoint{URL: srv.URL, Extract: config.DefaultAPIs()[config.APIQuote].Extract}
	env := commandstest.NewEnv(t, Register, commandstest.WithAPI(config.APIQuote, ep))
	env.Run(user, user, ".quote")
	if got := env.Socket.LastText(); got != "Quotes returned an unexpected answer." {
		t.Errorf("reply = %q", got)
	}
}

func TestQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"q":"Simplicity is complicated.","a":"Rob Pike"}]`)
	}))
	defer srv.Close()

	ep := upstream.Endpoint{URL: srv.URL, Extract: config.DefaultAPIs()[config.APIQuote].Extract}
	env := commandstest.NewEnv(t, Register, commandstest.WithAPI(config.APIQuote, ep))
	env.Run(user, user, ".quote")
	if got := env.Socket.LastText(); got != "_\"Simplicity is complicated.\"_\n— Rob Pike" {
		t.Errorf("reply = %q", got)
	}
}

func Test8Ball(t *testing.T) {
	old := pick
	pick = func(int) int { return 2 }
	t.Cleanup(func() { pick = old })

	env := commandstest.NewEnv(t, Register)
	env.Run(user, user, ".8ball")
	if got := env.Socket.LastText(); got != "Usage: .8ball <question>" {
		t.Errorf("no question = %q", got)
	}
	env.Run(user, user, ".8ball will it compile?")
	if got := env.Socket.LastText(); got != "🎱 Without a doubt." {
		t.Errorf("answer = %q", got)
	}
}

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestChatSettingsRoundTrip(t *testing.T) {
	s := openTemp(t)
	const chat = "120363000000000001@g.us"

	want := ChatSettings{
		AntiLink:    FeatureConfig{Enabled: true, Action: ActionWarn, Limit: 5},
		AntiTag:     FeatureConfig{Enabled: true, Action: ActionKick},
		AntiBadword: BadwordConfig{FeatureConfig: FeatureConfig{Enabled: true, Action: ActionDelete}, Words: []string{"spam", "scam"}},
		Welcome:     GreetingConfig{Enabled: true, Text: "hi @user"},
	}
	if _, err := s.UpdateChat(chat, func(cs *ChatSettings) { *cs = want }); err != nil {
		t.Fatalf("UpdateChat: %v", err)
	}

	// a fresh Store reads the file back from disk
	reopened, err := Open(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Chat(chat)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	other, err := reopened.Chat("someone-else@g.us")
	if err != nil || !reflect.DeepEqual(other, ChatSettings{}) {
		t.Errorf("unknown chat = %+v, %v; want zero value", other, err)
	}
}

func TestAntiCallAndBotRoundTrip(t *testing.T) {
	s := openTemp(t)

	if err := s.SetAntiCall(AntiCall{Enabled: true, Action: CallBlock}); err != nil {
		t.Fatal(err)
	}
	ac, err := s.AntiCall()
	if err != nil || ac != (AntiCall{Enabled: true, Action: CallBlock}) {
		t.Errorf("AntiCall() = %+v, %v", ac, err)
	}

	if _, err := s.UpdateBot(func(b *BotSettings) { b.Prefix = "!" }); err != nil {
		t.Fatal(err)
	}
	b, err := s.Bot()
	if err != nil || b.Prefix != "!" || b.Mode != "" {
		t.Errorf("Bot() = %+v, %v", b, err)
	}
}

func TestAntiCallFileShape(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetAntiCall(AntiCall{Enabled: true, Action: CallReject}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "anticall.json"))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"enabled": true, "action": "reject"}
	if !reflect.DeepEqual(raw, want) {
		t.Errorf("anticall.json = %s, want only enabled and action", data)
	}
}

func TestJIDList(t *testing.T) {
	s := openTemp(t)
	a, b := "111@s.whatsapp.net", "222@s.whatsapp.net"

	for _, jid := range []string{a, b, a} {
		if _, err := s.Banned.Add(jid); err != nil {
			t.Fatal(err)
		}
	}
	list, _ := s.Banned.List()
	if !reflect.DeepEqual(list, []string{a, b}) {
		t.Errorf("List() = %v, want [%s %s]", list, a, b)
	}

	removed, err := s.Banned.Remove(a)
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if removed, _ := s.Banned.Remove(a); removed {
		t.Error("second Remove should report false")
	}
	if ok, _ := s.Banned.Contains(b); !ok {
		t.Error("Contains(b) = false")
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "data", "banned.json")); err != nil {
		t.Errorf("banned.json not under data/: %v", err)
	}
}

func TestEventLogTrimAndClear(t *testing.T) {
	s := openTemp(t)
	for i := 0; i < 5; i++ {
		if _, err := s.CallLog.Append(LogEntry{From: "x", Action: CallReject, Timestamp: time.Unix(int64(i), 0)}); err != nil {
			t.Fatal(err)
		}
	}

	dropped, err := s.CallLog.Trim(2)
	if err != nil || dropped != 3 {
		t.Fatalf("Trim = %d, %v; want 3", dropped, err)
	}
	list, _ := s.CallLog.List()
	if len(list) != 2 || list[0].Timestamp.Unix() != 3 || list[0].ID == "" {
		t.Errorf("kept wrong entries: %+v", list)
	}

	n, err := s.CallLog.Clear()
	if err != nil || n != 2 {
		t.Errorf("Clear = %d, %v", n, err)
	}
}

func TestSchedules(t *testing.T) {
	s := openTemp(t)
	now := time.Now()
	if _, err := s.AddSchedule(KindUnmute, "a@g.us", now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	replaced, err := s.AddSchedule(KindUnmute, "a@g.us", now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddSchedule(KindUnmute, "b@g.us", now.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	list, _ := s.Schedules()
	if len(list) != 2 || list[0].Chat != "b@g.us" {
		t.Fatalf("Schedules() = %+v", list)
	}
	if err := s.RemoveSchedule(replaced.ID); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.FindSchedule(KindUnmute, "a@g.us"); found {
		t.Error("schedule still present after RemoveSchedule")
	}
}

func TestCorruptFileIsAnError(t *testing.T) {
	s := openTemp(t)
	if err := os.WriteFile(filepath.Join(s.Dir(), "anticall.json"), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AntiCall(); err == nil {
		t.Fatal("expected corrupt file error")
	}
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	s := openTemp(t)
	const chat = "c@g.us"

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateChat(chat, func(cs *ChatSettings) {
				cs.AntiBadword.Words = append(cs.AntiBadword.Words, "w")
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	cs, _ := s.Chat(chat)
	if len(cs.AntiBadword.Words) != 20 {
		t.Errorf("got %d words, want 20", len(cs.AntiBadword.Words))
	}
}

func TestReplaceFileLeavesNoTemp(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "bot.json")
	for _, body := range []string{`{"mode":"public"}`, `{"mode":"private"}`} {
		if err := replaceFile(p, []byte(body), 0600); err != nil {
			t.Fatalf("replaceFile: %v", err)
		}
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"mode":"private"}` {
		t.Errorf("content = %s", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(p))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

package bus

import (
	"sync/atomic"
	"testing"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()

	got := make(chan Event, 1)
	id := b.Subscribe(TopicConnected, func(e Event) { got <- e })

	b.PublishFrom(TopicConnected, "123@s.whatsapp.net", "whatsapp")
	b.Wait()

	e := <-got
	if e.Topic != TopicConnected || e.Source != "whatsapp" || e.Data != "123@s.whatsapp.net" {
		t.Errorf("unexpected event %+v", e)
	}

	if !b.Unsubscribe(id) {
		t.Fatal("Unsubscribe returned false")
	}
	if b.Unsubscribe(id) {
		t.Error("second Unsubscribe should return false")
	}
	if b.Count(TopicConnected) != 0 {
		t.Errorf("Count = %d, want 0", b.Count(TopicConnected))
	}
}

func TestPanickingHandlerIsContained(t *testing.T) {
	b := New()
	var calls atomic.Int32

	b.Subscribe(TopicConfigReloaded, func(Event) { panic("boom") })
	b.Subscribe(TopicConfigReloaded, func(Event) { calls.Add(1) })

	b.Publish(TopicConfigReloaded, nil)
	b.Wait()

	if calls.Load() != 1 {
		t.Errorf("healthy handler calls = %d, want 1", calls.Load())
	}
}

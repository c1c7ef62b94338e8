package bus

import (
	"io"
	"log/slog"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishSubscribe(t *testing.T) {
	b := New(testLogger(), 16)
	go b.Run()

	var mu sync.Mutex
	var got []Message
	b.Subscribe(ArtistNew, func(m Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m)
	})

	b.Publish(Message{Topic: ArtistNew, Data: map[string]any{"name": "Alpha"}})
	b.Publish(Message{Topic: GenreNew})
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	if got[0].Data["name"] != "Alpha" {
		t.Errorf("data[name] = %v", got[0].Data["name"])
	}
	if got[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestSubscribeAll(t *testing.T) {
	b := New(testLogger(), 16)
	go b.Run()

	var mu sync.Mutex
	topics := map[Topic]int{}
	b.SubscribeAll(func(m Message) {
		mu.Lock()
		defer mu.Unlock()
		topics[m.Topic]++
	})

	for _, tp := range []Topic{ArtistNew, VenueNew, EventImported, EventImported} {
		b.Publish(Message{Topic: tp})
	}
	b.Close()

	if topics[ArtistNew] != 1 || topics[VenueNew] != 1 || topics[EventImported] != 2 {
		t.Errorf("topics = %v", topics)
	}
}

func TestPanicRecovery(t *testing.T) {
	b := New(testLogger(), 16)
	go b.Run()

	delivered := false
	b.Subscribe(PromoterNew, func(Message) { panic("boom") })
	b.Subscribe(PromoterNew, func(Message) { delivered = true })

	b.Publish(Message{Topic: PromoterNew})
	b.Close()

	if !delivered {
		t.Error("second handler should still run after the first panics")
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New(testLogger(), 1)
	b.Publish(Message{Topic: ArtistNew})
	b.Publish(Message{Topic: ArtistNew})
	if len(b.queue) != 1 {
		t.Errorf("queue length = %d, want 1", len(b.queue))
	}
}

func TestCloseIdempotent(t *testing.T) {
	b := New(testLogger(), 4)
	go b.Run()
	b.Close()
	b.Close()
}

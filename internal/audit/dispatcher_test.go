package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	seen    []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, e)
}

func TestDispatcherDeliversAndStampsTimestamp(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	d.Emit(context.Background(), Event{EventType: "login_success", Severity: SeverityLow})
	d.Close()

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 delivered event, got %d", len(events))
	}
	if events[0].Timestamp.IsZero() {
		t.Fatal("expected the dispatcher to stamp a timestamp")
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, nil)
	if d != nil {
		t.Fatal("disabled config must produce a nil dispatcher")
	}
	// A nil dispatcher accepts calls.
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports zero drops")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the delivery goroutine, second fills the
	// buffer, the rest must be shed without blocking.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "x"})
	}

	deadline := time.After(time.Second)
	for d.Dropped() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected dropped events under pressure")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	close(sink.release)
	d.Close()
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), Event{EventType: "x"})
	}
	d.Close()

	if got := len(sink.all()); got != 20 {
		t.Fatalf("expected all 20 buffered events delivered on close, got %d", got)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp: time.Now(),
		EventType: "account_locked",
		Severity:  SeverityHigh,
		UserID:    "u1",
		Metadata:  map[string]string{"reason": "brute_force"},
	})

	line := strings.TrimSpace(buf.String())
	var decoded Event
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", line, err)
	}
	if decoded.EventType != "account_locked" || decoded.Severity != SeverityHigh {
		t.Fatalf("unexpected decoded event: %+v", decoded)
	}
	if decoded.Metadata["reason"] != "brute_force" {
		t.Fatalf("metadata lost in encoding: %+v", decoded.Metadata)
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(4)
	sink.Emit(context.Background(), Event{EventType: "logout"})

	select {
	case e := <-sink.Events():
		if e.EventType != "logout" {
			t.Fatalf("unexpected event %+v", e)
		}
	default:
		t.Fatal("expected a buffered event")
	}
}

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Emit(_ context.Context, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *captureSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

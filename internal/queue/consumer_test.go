package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestHandleMessage_AppendsLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "notifications.log")
	ev := NewEvent(WaitlistPromoted, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	ev.SessionID, ev.BookingID, ev.MemberID = 7, 11, 42
	ev.Room = "Studio A"

	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := handleMessage(path, body); err != nil {
			t.Fatalf("handle message: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for _, want := range []string{"waitlist.promoted", "session_id=7", "booking_id=11", "member_id=42", `room="Studio A"`, "2026-03-01T09:00:00Z"} {
		if !strings.Contains(lines[0], want) {
			t.Fatalf("line %q missing %q", lines[0], want)
		}
	}
}

func TestHandleMessage_RejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "n.log")
	if err := handleMessage(path, []byte("not json")); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if err := handleMessage(path, []byte(`{"session_id":1}`)); err == nil {
		t.Fatal("expected error for event without type")
	}
}

func TestEvent_RoutingKeyIsQueueName(t *testing.T) {
	t.Parallel()

	for _, typ := range EventTypes {
		ev := NewEvent(typ, time.Now())
		if ev.RoutingKey() != string(typ) {
			t.Fatalf("routing key %q for %q", ev.RoutingKey(), typ)
		}
		if ev.ID == "" {
			t.Fatal("expected event id")
		}
	}
}

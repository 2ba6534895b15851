package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestRecord_WritesStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter(&buf)

	ctx := WithActor(context.Background(), "0xAAA")
	err := log.Record(ctx, EventRegistry, "register", "agent/7", map[string]interface{}{"domain": "r.test"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	line := buf.String()
	if !strings.HasPrefix(line, "AUDIT: ") {
		t.Fatalf("missing AUDIT prefix: %q", line)
	}

	var ev Event
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "AUDIT: ")), &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.Actor != "0xAAA" || ev.Type != EventRegistry || ev.Action != "register" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.ID == "" {
		t.Error("event ID not assigned")
	}
}

func TestActorFrom_DefaultsToSystem(t *testing.T) {
	if got := ActorFrom(context.Background()); got != "system" {
		t.Errorf("expected system, got %s", got)
	}
}

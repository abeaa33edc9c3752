package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/iqautojobs/identity/internal/auth"
)

func TestSinkLogsAndForwards(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	store := auth.NewMemoryStore()
	sink := NewSink(store.Audit(), logger)

	ctx := WithRequestID(context.Background(), "req-123")
	entry := &auth.AuditEntry{
		ID:          "audit-1",
		ActorID:     "acct-1",
		Action:      auth.ActionLogin,
		SubjectType: "account",
		SubjectID:   "acct-1",
	}
	if err := sink.Append(ctx, entry); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if got := store.AuditEntries(); len(got) != 1 || got[0].ID != "audit-1" {
		t.Fatalf("entry not forwarded: %+v", got)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if line["type"] != "audit" {
		t.Fatalf("unexpected type: %v", line["type"])
	}
	if line["action"] != auth.ActionLogin {
		t.Fatalf("unexpected action: %v", line["action"])
	}
	if line["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", line["request_id"])
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
	ctx = WithRequestID(ctx, " req-9 ")
	if got := RequestIDFromContext(ctx); got != "req-9" {
		t.Fatalf("unexpected request id: %q", got)
	}
	if ctx2 := WithRequestID(context.Background(), "  "); RequestIDFromContext(ctx2) != "" {
		t.Fatal("blank request ids must not be stored")
	}
}

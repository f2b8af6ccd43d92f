package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc/metadata"
)

func TestNewIDs(t *testing.T) {
	tc := New()
	if len(tc.TraceID) != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", len(tc.TraceID))
	}
	if len(tc.SpanID) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(tc.SpanID))
	}
	if tc.ParentSpanID != "" {
		t.Error("root context should not have a parent span")
	}
}

func TestIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New().TraceID
		if seen[id] {
			t.Fatal("generated duplicate trace ID")
		}
		seen[id] = true
	}
}

func TestChild(t *testing.T) {
	parent := New()
	child := parent.Child()

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child should have a new span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent should be the parent's span ID")
	}

	orphan := Context{}.Child()
	if orphan.TraceID == "" || orphan.ParentSpanID != "" {
		t.Errorf("child of empty context = %+v, want fresh root", orphan)
	}
}

func TestEnsureContext(t *testing.T) {
	ctx, tc := EnsureContext(context.Background())
	if len(tc.TraceID) != 32 {
		t.Error("should create trace ID")
	}
	_, tc2 := EnsureContext(ctx)
	if tc2.TraceID != tc.TraceID {
		t.Error("should return existing trace")
	}
}

func TestStartSpanNests(t *testing.T) {
	ctx, cycle := StartSpan(context.Background(), "poll_cycle")
	_, dispatch := StartSpan(ctx, "dispatch")

	if dispatch.Ctx.TraceID != cycle.Ctx.TraceID {
		t.Error("nested span should share the trace ID")
	}
	if dispatch.Ctx.ParentSpanID != cycle.Ctx.SpanID {
		t.Error("nested span parent mismatch")
	}
	if cycle.Duration() != 0 {
		t.Error("open span should report zero duration")
	}
	cycle.End()
	if cycle.Duration() < 0 {
		t.Error("duration should not be negative")
	}
}

func TestOutgoingMetadata(t *testing.T) {
	tc := New()
	ctx := outgoing(WithContext(context.Background(), tc))

	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("expected outgoing metadata")
	}
	if got := md.Get(TraceIDKey); len(got) != 1 || got[0] != tc.TraceID {
		t.Errorf("%s = %v, want %q", TraceIDKey, got, tc.TraceID)
	}
}

func TestMiddleware(t *testing.T) {
	var seen Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", http.NoBody)
	req.Header.Set(TraceIDKey, "abc123")
	req.Header.Set(SpanIDKey, "span1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen.TraceID != "abc123" {
		t.Errorf("TraceID = %q, want %q", seen.TraceID, "abc123")
	}
	if seen.ParentSpanID != "span1" {
		t.Errorf("ParentSpanID = %q, want %q", seen.ParentSpanID, "span1")
	}
	if rec.Header().Get(TraceIDKey) != "abc123" {
		t.Error("response should echo the trace ID")
	}
}

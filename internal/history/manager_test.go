package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"gemini-chat/internal/llm"
)

type fakeStore struct {
	mu       sync.Mutex
	logs     map[string][]string
	max      int
	degraded bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{logs: make(map[string][]string), max: DefaultMaxMessages}
}

func (s *fakeStore) AppendAndTrim(_ context.Context, sessionID string, encoded []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return ErrStoreUnavailable
	}
	entries := append(s.logs[sessionID], encoded...)
	if len(entries) > s.max {
		entries = entries[len(entries)-s.max:]
	}
	s.logs[sessionID] = entries
	return nil
}

func (s *fakeStore) ReadRange(_ context.Context, sessionID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return nil, ErrStoreUnavailable
	}
	return append([]string(nil), s.logs[sessionID]...), nil
}

func (s *fakeStore) Delete(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return false, ErrStoreUnavailable
	}
	_, existed := s.logs[sessionID]
	delete(s.logs, sessionID)
	return existed, nil
}

type fakeGateway struct {
	reply           string
	err             error
	calls           int
	lastMessages    []llm.Message
	lastInstruction string
}

func (g *fakeGateway) Generate(_ context.Context, messages []llm.Message, systemInstruction string) (llm.Response, error) {
	g.calls++
	g.lastMessages = append([]llm.Message(nil), messages...)
	g.lastInstruction = systemInstruction
	if g.err != nil {
		return llm.Response{}, g.err
	}
	return llm.Response{Content: g.reply}, nil
}

func mustEncode(t *testing.T, m llm.Message) string {
	t.Helper()
	encoded, err := EncodeMessage(m)
	if err != nil {
		t.Fatalf("encode %+v: %v", m, err)
	}
	return encoded
}

func TestSendMessageFirstExchange(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{reply: "oi!"}
	m := NewManager(store, gw, "be helpful")

	got, err := m.SendMessage(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if got != "oi!" {
		t.Fatalf("unexpected response: %q", got)
	}

	if gw.lastInstruction != "be helpful" {
		t.Fatalf("system instruction not forwarded: %q", gw.lastInstruction)
	}
	if len(gw.lastMessages) != 1 || gw.lastMessages[0] != (llm.Message{Role: llm.RoleUser, Text: "hello"}) {
		t.Fatalf("unexpected submission payload: %+v", gw.lastMessages)
	}

	entries, _ := store.ReadRange(context.Background(), "s1")
	if len(entries) != 2 {
		t.Fatalf("expected 2 stored entries, got %d", len(entries))
	}
	first, _ := DecodeMessage(entries[0])
	second, _ := DecodeMessage(entries[1])
	if first != (llm.Message{Role: llm.RoleUser, Text: "hello"}) {
		t.Fatalf("unexpected first entry: %+v", first)
	}
	if second != (llm.Message{Role: llm.RoleModel, Text: "oi!"}) {
		t.Fatalf("unexpected second entry: %+v", second)
	}
}

func TestSendMessageBoundAndOldestDrop(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{reply: "resp"}
	m := NewManager(store, gw, "")

	// Fill session s2 with 10 full exchanges (20 entries).
	for i := 0; i < 10; i++ {
		pair := []string{
			mustEncode(t, llm.Message{Role: llm.RoleUser, Text: fmt.Sprintf("u%d", i)}),
			mustEncode(t, llm.Message{Role: llm.RoleModel, Text: fmt.Sprintf("m%d", i)}),
		}
		if err := store.AppendAndTrim(context.Background(), "s2", pair); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	if _, err := m.SendMessage(context.Background(), "s2", "one more"); err != nil {
		t.Fatalf("send message: %v", err)
	}

	entries, _ := store.ReadRange(context.Background(), "s2")
	if len(entries) != DefaultMaxMessages {
		t.Fatalf("bound violated: %d entries", len(entries))
	}

	oldest, _ := DecodeMessage(entries[0])
	if oldest != (llm.Message{Role: llm.RoleUser, Text: "u1"}) {
		t.Fatalf("oldest exchange not dropped, entry[0] = %+v", oldest)
	}
	last, _ := DecodeMessage(entries[len(entries)-1])
	if last != (llm.Message{Role: llm.RoleModel, Text: "resp"}) {
		t.Fatalf("newest entry wrong: %+v", last)
	}
	// All 20 submitted messages plus the new prompt reached the gateway.
	if len(gw.lastMessages) != 21 {
		t.Fatalf("expected 21 submitted messages, got %d", len(gw.lastMessages))
	}
}

func TestSendMessageFiltersSystemAndMalformed(t *testing.T) {
	store := newFakeStore()
	store.logs["s3"] = []string{
		mustEncode(t, llm.Message{Role: llm.RoleUser, Text: "q"}),
		mustEncode(t, llm.Message{Role: llm.RoleSystem, Text: "should never be submitted"}),
		"{broken json",
		mustEncode(t, llm.Message{Role: llm.RoleModel, Text: "a"}),
	}
	gw := &fakeGateway{reply: "ok"}
	m := NewManager(store, gw, "")

	if _, err := m.SendMessage(context.Background(), "s3", "next"); err != nil {
		t.Fatalf("send message: %v", err)
	}

	want := []llm.Message{
		{Role: llm.RoleUser, Text: "q"},
		{Role: llm.RoleModel, Text: "a"},
		{Role: llm.RoleUser, Text: "next"},
	}
	if len(gw.lastMessages) != len(want) {
		t.Fatalf("unexpected submission: %+v", gw.lastMessages)
	}
	for i := range want {
		if gw.lastMessages[i] != want[i] {
			t.Fatalf("submission[%d] = %+v, want %+v", i, gw.lastMessages[i], want[i])
		}
	}
}

func TestSendMessageGatewayFailureWritesNothing(t *testing.T) {
	store := newFakeStore()
	seed := []string{mustEncode(t, llm.Message{Role: llm.RoleUser, Text: "old"})}
	store.logs["s4"] = append([]string(nil), seed...)

	gw := &fakeGateway{err: errors.New("quota exceeded")}
	m := NewManager(store, gw, "")

	_, err := m.SendMessage(context.Background(), "s4", "boom")
	if !errors.Is(err, ErrGatewayFailure) {
		t.Fatalf("expected gateway failure, got %v", err)
	}

	entries, _ := store.ReadRange(context.Background(), "s4")
	if len(entries) != len(seed) || entries[0] != seed[0] {
		t.Fatalf("log mutated after gateway failure: %+v", entries)
	}
}

func TestSendMessageDegradedStore(t *testing.T) {
	store := newFakeStore()
	store.degraded = true
	gw := &fakeGateway{reply: "never"}
	m := NewManager(store, gw, "")

	_, err := m.SendMessage(context.Background(), "s5", "hi")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected service unavailable, got %v", err)
	}
	if gw.calls != 0 {
		t.Fatalf("gateway must not be called while degraded, got %d calls", gw.calls)
	}
}

func TestReset(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{reply: "ok"}
	m := NewManager(store, gw, "")

	if m.Reset(context.Background(), "s6") {
		t.Fatal("reset of empty session should report false")
	}

	if _, err := m.SendMessage(context.Background(), "s6", "hi"); err != nil {
		t.Fatalf("send message: %v", err)
	}
	if !m.Reset(context.Background(), "s6") {
		t.Fatal("reset of populated session should report true")
	}
	entries, _ := store.ReadRange(context.Background(), "s6")
	if len(entries) != 0 {
		t.Fatalf("log not empty after reset: %+v", entries)
	}

	store.degraded = true
	if m.Reset(context.Background(), "s6") {
		t.Fatal("reset must report false while degraded")
	}
}

func TestHistoryFiltersAndPreservesOrder(t *testing.T) {
	store := newFakeStore()
	store.logs["s7"] = []string{
		mustEncode(t, llm.Message{Role: llm.RoleSystem, Text: "hidden"}),
		mustEncode(t, llm.Message{Role: llm.RoleUser, Text: "first"}),
		"garbage",
		mustEncode(t, llm.Message{Role: llm.RoleModel, Text: "second"}),
	}
	m := NewManager(store, &fakeGateway{}, "")

	got := m.History(context.Background(), "s7")
	want := []llm.Message{
		{Role: llm.RoleUser, Text: "first"},
		{Role: llm.RoleModel, Text: "second"},
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected history: %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("history[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestHistoryDegradedSentinel(t *testing.T) {
	store := newFakeStore()
	store.degraded = true
	m := NewManager(store, &fakeGateway{}, "")

	got := m.History(context.Background(), "s8")
	if len(got) != 1 {
		t.Fatalf("expected single sentinel entry, got %+v", got)
	}
	if got[0].Role != llm.RoleSystem || got[0].Text == "" {
		t.Fatalf("sentinel entry malformed: %+v", got[0])
	}
}

package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/jbweber/vmchat/internal/llm"
)

func user(s string) llm.Message { return llm.Message{Role: llm.RoleUser, Content: s} }

func TestStore_AppendSeedsSystemPrompt(t *testing.T) {
	s := NewStore("manage vms", 10)

	got := s.Append("a", user("hello"))

	if len(got) != 2 {
		t.Fatalf("Append() len = %d, want 2", len(got))
	}
	if got[0].Role != llm.RoleSystem || got[0].Content != "manage vms" {
		t.Errorf("Append()[0] = %+v, want system prompt", got[0])
	}
	if got[1].Content != "hello" {
		t.Errorf("Append()[1].Content = %q, want hello", got[1].Content)
	}
}

func TestStore_AppendWithoutPrompt(t *testing.T) {
	s := NewStore("", 10)

	got := s.Append("a", user("hello"))

	if len(got) != 1 || got[0].Role != llm.RoleUser {
		t.Errorf("Append() = %+v, want only the user message", got)
	}
}

func TestStore_Trim(t *testing.T) {
	tests := []struct {
		name      string
		prompt    string
		limit     int
		appends   int
		wantLen   int
		wantFirst string
		wantLast  string
	}{
		{name: "under limit", prompt: "sys", limit: 10, appends: 5, wantLen: 6, wantFirst: "sys", wantLast: "m4"},
		{name: "at limit", prompt: "sys", limit: 10, appends: 9, wantLen: 10, wantFirst: "sys", wantLast: "m8"},
		{name: "keeps system", prompt: "sys", limit: 10, appends: 15, wantLen: 10, wantFirst: "sys", wantLast: "m14"},
		{name: "small limit", prompt: "sys", limit: 3, appends: 6, wantLen: 3, wantFirst: "sys", wantLast: "m5"},
		{name: "no system", prompt: "", limit: 4, appends: 6, wantLen: 4, wantFirst: "m2", wantLast: "m5"},
		{name: "default limit", prompt: "sys", limit: 0, appends: 20, wantLen: DefaultLimit, wantFirst: "sys", wantLast: "m19"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(tt.prompt, tt.limit)
			for i := range tt.appends {
				s.Append("a", user(fmt.Sprintf("m%d", i)))
			}

			got := s.History("a")

			if len(got) != tt.wantLen {
				t.Fatalf("History() len = %d, want %d", len(got), tt.wantLen)
			}
			if got[0].Content != tt.wantFirst {
				t.Errorf("History()[0] = %q, want %q", got[0].Content, tt.wantFirst)
			}
			if got[len(got)-1].Content != tt.wantLast {
				t.Errorf("History()[last] = %q, want %q", got[len(got)-1].Content, tt.wantLast)
			}
		})
	}
}

func TestStore_HistoryIsCopy(t *testing.T) {
	s := NewStore("sys", 10)
	s.Append("a", user("hello"))

	h := s.History("a")
	h[1].Content = "mutated"

	if got := s.History("a")[1].Content; got != "hello" {
		t.Errorf("History()[1].Content = %q, want hello", got)
	}
}

func TestStore_HistoryUnknown(t *testing.T) {
	s := NewStore("sys", 10)

	if got := s.History("missing"); got != nil {
		t.Errorf("History() = %v, want nil", got)
	}
}

func TestStore_SessionsAreIndependent(t *testing.T) {
	s := NewStore("sys", 10)
	s.Append("b", user("for b"))
	s.Append("a", user("for a"))

	if got := s.History("a")[1].Content; got != "for a" {
		t.Errorf("History(a)[1] = %q, want for a", got)
	}
	ids := s.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs() = %v, want [a b]", ids)
	}

	s.Reset("a")
	if got := s.History("a"); got != nil {
		t.Errorf("History(a) after Reset = %v, want nil", got)
	}
}

func TestStore_ConcurrentAppend(t *testing.T) {
	s := NewStore("sys", 50)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append("a", user(fmt.Sprintf("m%d", i)))
			_ = s.History("a")
		}()
	}
	wg.Wait()

	if got := len(s.History("a")); got != 21 {
		t.Errorf("History() len = %d, want 21", got)
	}
}

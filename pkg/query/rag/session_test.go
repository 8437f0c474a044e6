package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/NimaFathima/astrobiomers/internal/util"
)

func TestConversationLifecycle(t *testing.T) {
	o := NewOrchestrator(NewOrchestratorParams{Graph: microgravityGraph()})
	conv := NewConversations(o, NewSessionStore(10, time.Hour))

	started := conv.StartConversation()
	if !util.IsNanoid(started.ID) {
		t.Fatalf("unexpected conversation id %q", started.ID)
	}

	res, err := conv.AskInConversation(context.Background(), started.ID, "What about microgravity?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := conv.GetConversation(started.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.History) != 1 {
		t.Fatalf("expected one turn, got %d", len(got.History))
	}
	if got.History[0].Question != "What about microgravity?" || got.History[0].Answer != res.Answer {
		t.Fatalf("unexpected turn %+v", got.History[0])
	}
}

func TestConversationSendsHistory(t *testing.T) {
	llm := &fakeLLM{answers: []string{"first answer", "second answer"}, provider: "fake"}
	o := NewOrchestrator(NewOrchestratorParams{Graph: microgravityGraph(), AIClient: llm, LLMTimeout: time.Second})
	conv := NewConversations(o, NewSessionStore(10, time.Hour))
	started := conv.StartConversation()

	if _, err := conv.AskInConversation(context.Background(), started.ID, "What about microgravity?"); err != nil {
		t.Fatalf("first question: %v", err)
	}
	if llm.history != nil {
		t.Fatalf("first question should not carry history, got %v", llm.history)
	}

	res, err := conv.AskInConversation(context.Background(), started.ID, "And what about bone loss?")
	if err != nil {
		t.Fatalf("second question: %v", err)
	}
	if res.Answer != "second answer" {
		t.Fatalf("answer = %q", res.Answer)
	}
	if len(llm.history) != 3 {
		t.Fatalf("history = %+v, want two earlier messages and the prompt", llm.history)
	}
	if llm.history[0].Message != "What about microgravity?" || llm.history[1].Message != "first answer" {
		t.Fatalf("history = %+v", llm.history)
	}
	if !strings.Contains(llm.history[2].Message, "And what about bone loss?") {
		t.Fatalf("last message should be the grounded prompt, got %q", llm.history[2].Message)
	}
}

func TestChatHistoryKeepsLastTurns(t *testing.T) {
	turns := make([]Turn, 8)
	for i := range turns {
		turns[i] = Turn{Question: string(rune('a' + i)), Answer: "x"}
	}
	msgs := chatHistory(turns)
	if len(msgs) != 2*historyTurns {
		t.Fatalf("messages = %d, want %d", len(msgs), 2*historyTurns)
	}
	if msgs[0].Message != "d" || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("unexpected first messages %+v", msgs[:2])
	}
}

func TestConversationUnknownSession(t *testing.T) {
	o := NewOrchestrator(NewOrchestratorParams{Graph: microgravityGraph()})
	conv := NewConversations(o, NewSessionStore(10, time.Hour))

	if _, err := conv.AskInConversation(context.Background(), "missing", "question?"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := conv.GetConversation("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionStoreEvictsOldest(t *testing.T) {
	s := NewSessionStore(1, time.Hour)
	first := s.Start()
	second := s.Start()

	if _, err := s.Get(first.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("first session should be evicted")
	}
	if _, err := s.Get(second.ID); err != nil {
		t.Fatalf("second session should exist: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d", s.Len())
	}
}

func TestSessionStoreExpires(t *testing.T) {
	s := NewSessionStore(10, 20*time.Millisecond)
	c := s.Start()
	time.Sleep(60 * time.Millisecond)

	if _, err := s.Get(c.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("session should have expired")
	}
}

func TestSessionHistoryIsBounded(t *testing.T) {
	s := NewSessionStore(10, time.Hour)
	c := s.Start()
	for i := 0; i < maxTurns+5; i++ {
		if err := s.Append(c.ID, Turn{Question: "q"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, _ := s.Get(c.ID)
	if len(got.History) != maxTurns {
		t.Fatalf("history length = %d", len(got.History))
	}
}

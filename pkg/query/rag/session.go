package rag

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/NimaFathima/astrobiomers/internal/util"
	"github.com/NimaFathima/astrobiomers/pkg/ai"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/metrics"
	"github.com/NimaFathima/astrobiomers/pkg/query"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrSessionNotFound is returned for unknown or expired conversation ids.
var ErrSessionNotFound = errors.New("conversation not found")

const (
	maxTurns = 100
	// historyTurns is how many earlier turns are sent to the LLM.
	historyTurns = 5
)

// Turn is one answered question of a conversation.
type Turn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

type Conversation struct {
	ID        string    `json:"conversation_id"`
	CreatedAt time.Time `json:"created_at"`
	History   []Turn    `json:"history"`
}

// SessionStore holds conversations in memory, bounded in size and expired
// after ttl. The oldest turns are dropped past maxTurns.
type SessionStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *Conversation]
}

func NewSessionStore(size int, ttl time.Duration) *SessionStore {
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{cache: expirable.NewLRU[string, *Conversation](size, nil, ttl)}
}

func (s *SessionStore) Start() Conversation {
	c := &Conversation{ID: util.NewID(), CreatedAt: time.Now().UTC(), History: []Turn{}}

	s.mu.Lock()
	s.cache.Add(c.ID, c)
	n := s.cache.Len()
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return *c
}

// Get returns a copy of the conversation.
func (s *SessionStore) Get(id string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cache.Get(id)
	if !ok {
		return Conversation{}, ErrSessionNotFound
	}
	out := *c
	out.History = slices.Clone(c.History)
	return out, nil
}

func (s *SessionStore) Append(id string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cache.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	c.History = append(c.History, turn)
	if len(c.History) > maxTurns {
		c.History = slices.Clone(c.History[len(c.History)-maxTurns:])
	}
	return nil
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// Conversations answers questions within conversation sessions.
type Conversations struct {
	answerer query.Answerer
	sessions *SessionStore
}

func NewConversations(answerer query.Answerer, sessions *SessionStore) *Conversations {
	return &Conversations{answerer: answerer, sessions: sessions}
}

func (c *Conversations) StartConversation() Conversation {
	return c.sessions.Start()
}

// AskInConversation answers question and appends the turn to the session.
// The session must exist.
func (c *Conversations) AskInConversation(
	ctx context.Context,
	id string,
	question string,
	opts ...query.AskOption,
) (common.RAGResponse, error) {
	conv, err := c.sessions.Get(id)
	if err != nil {
		return common.RAGResponse{}, err
	}

	if history := chatHistory(conv.History); len(history) > 0 {
		opts = append([]query.AskOption{query.WithHistory(history)}, opts...)
	}
	res := c.answerer.AnswerQuestion(ctx, question, opts...)
	if err := c.sessions.Append(id, Turn{
		Question:  question,
		Answer:    res.Answer,
		Timestamp: res.Metadata.Timestamp,
	}); err != nil {
		return res, err
	}
	return res, nil
}

// chatHistory turns the last historyTurns turns into chat messages.
func chatHistory(turns []Turn) []ai.ChatMessage {
	if len(turns) > historyTurns {
		turns = turns[len(turns)-historyTurns:]
	}
	msgs := make([]ai.ChatMessage, 0, 2*len(turns))
	for _, t := range turns {
		msgs = append(msgs,
			ai.ChatMessage{Role: "user", Message: t.Question},
			ai.ChatMessage{Role: "assistant", Message: t.Answer},
		)
	}
	return msgs
}

func (c *Conversations) GetConversation(id string) (Conversation, error) {
	return c.sessions.Get(id)
}

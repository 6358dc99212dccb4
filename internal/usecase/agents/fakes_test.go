package agents

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"joby/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustEnvelope(target string, payload any) domain.TaskEnvelope {
	env, err := domain.NewEnvelope(target, payload, domain.PriorityMedium, "task-test")
	if err != nil {
		panic(err)
	}
	return env
}

// scriptedLLM returns canned content and records the last request.
type scriptedLLM struct {
	mu      sync.Mutex
	content string
	err     error
	lastReq domain.ChatRequest
}

func (l *scriptedLLM) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastReq = req
	if l.err != nil {
		return nil, l.err
	}
	return &domain.ChatResponse{Model: req.Model, Content: l.content, CreatedAt: time.Now()}, nil
}

func (l *scriptedLLM) Name() string { return "scripted" }

func (l *scriptedLLM) last() domain.ChatRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastReq
}

// memStore is an in-memory ProfileStore for agent tests.
type memStore struct {
	mu     sync.Mutex
	data   map[string]map[string][]byte
	hits   map[string][]domain.SearchHit
	putErr error
}

func newMemStore() *memStore {
	return &memStore{
		data: map[string]map[string][]byte{},
		hits: map[string][]domain.SearchHit{},
	}
}

func (s *memStore) Get(_ context.Context, index, id string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[index][id]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (s *memStore) Put(_ context.Context, index, id string, doc any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if s.data[index] == nil {
		s.data[index] = map[string][]byte{}
	}
	s.data[index][id] = raw
	return nil
}

func (s *memStore) Search(_ context.Context, index, _ string, _ domain.SearchOptions) ([]domain.SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[index], nil
}

// fixedCounter counts one token per character, making budgets exact.
type fixedCounter struct{}

func (fixedCounter) Count(text string) int { return len(text) }

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"joby/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCache is an in-memory SessionCache.
type fakeCache struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	setErr  error
	lastTTL time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	c.lastTTL = ttl
	return nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *fakeCache) session(id string) (*domain.SessionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[sessionKeyPrefix+id]
	if !ok {
		return nil, false
	}
	var s domain.SessionState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, false
	}
	return &s, true
}

// fakeStore is an in-memory ProfileStore with canned search results.
type fakeStore struct {
	mu          sync.Mutex
	data        map[string]map[string][]byte
	hits        map[string][]domain.SearchHit
	getErr      error
	getErrIndex string // when set, getErr applies only to this index
	putErr      error
	searchErr   error
	putCount    int
	lastPutIdx  string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data: map[string]map[string][]byte{},
		hits: map[string][]domain.SearchHit{},
	}
}

func (s *fakeStore) Get(_ context.Context, index, id string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil && (s.getErrIndex == "" || s.getErrIndex == index) {
		return false, s.getErr
	}
	raw, ok := s.data[index][id]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (s *fakeStore) Put(_ context.Context, index, id string, doc any) error {
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
	s.putCount++
	s.lastPutIdx = index
	return nil
}

func (s *fakeStore) Search(_ context.Context, index, _ string, _ domain.SearchOptions) ([]domain.SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.hits[index], nil
}

// stubAgent returns a fixed response and counts invocations.
type stubAgent struct {
	mu       sync.Mutex
	status   domain.ResponseStatus
	output   any
	err      error
	invoked  int
	lastTask string
}

func (a *stubAgent) Invoke(_ context.Context, envelope domain.TaskEnvelope) (domain.AgentResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.invoked++
	a.lastTask = envelope.TaskID
	if a.err != nil {
		return domain.AgentResponse{}, a.err
	}
	status := a.status
	if status == "" {
		status = domain.StatusSuccess
	}
	return domain.AgentResponse{TaskID: envelope.TaskID, Status: status, OutputPayload: a.output}, nil
}

func (a *stubAgent) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.invoked
}

var errStoreDown = errors.New("store down")

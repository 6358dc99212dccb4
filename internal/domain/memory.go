package domain

import (
	"context"
	"time"
)

// Profile store index names. One index per entity kind, mirroring the
// keyed layout of the durable store.
const (
	IndexUserSessions      = "user-sessions"
	IndexCandidateProfiles = "candidate-profiles"
	IndexJobs              = "job-index"
	IndexTailoredCVs       = "tailored-cvs"
)

// SessionCacheTTL is the default lifetime of ephemeral session state.
const SessionCacheTTL = 24 * time.Hour

// SessionCache is the ephemeral, TTL-bound store for serialized session
// state. Get returns ("", false, nil) on a missing key.
type SessionCache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// SearchOptions tunes a profile-store search.
type SearchOptions struct {
	Size int // max hits; 0 = backend default
	From int // pagination offset
}

// SearchHit is one scored document returned by ProfileStore.Search.
type SearchHit struct {
	ID       string
	Score    float64
	Document []byte // raw JSON document
}

// ProfileStore is the durable, index-addressed document store. Get
// unmarshals the stored document into out and reports whether it existed.
// No TTL applies.
type ProfileStore interface {
	Get(ctx context.Context, index, id string, out any) (bool, error)
	Put(ctx context.Context, index, id string, document any) error
	Search(ctx context.Context, index, query string, opts SearchOptions) ([]SearchHit, error)
}

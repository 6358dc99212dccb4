package usecase

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"golang.org/x/crypto/sha3"

	"joby/internal/domain"
)

// IdentityResolver maps a (channel type, channel-native user id) pair to a
// stable internal identity backed by the profile store.
type IdentityResolver struct {
	store  domain.ProfileStore
	logger *slog.Logger
	now    func() time.Time
}

// NewIdentityResolver creates a resolver over the given profile store.
func NewIdentityResolver(store domain.ProfileStore, logger *slog.Logger) *IdentityResolver {
	return &IdentityResolver{store: store, logger: logger, now: time.Now}
}

// IdentityID derives the deterministic internal identifier for a channel
// user. The hash is one-way and collision-resistant, so repeated
// resolution never needs a store round trip for the ID itself.
func IdentityID(channelType, channelUserID string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(channelType + channelUserID))
	return hex.EncodeToString(h.Sum(nil))
}

// Resolve returns the stored identity for the pair, creating it on first
// contact. A store fault fails closed: identity drives profile
// persistence downstream, so the resolver never fabricates a record over
// a broken store.
func (r *IdentityResolver) Resolve(ctx context.Context, in domain.TurnInput) (domain.Identity, error) {
	if in.ChannelType == "" || in.ChannelUserID == "" {
		return domain.Identity{}, domain.NewDomainError("IdentityResolver.Resolve", domain.ErrInvalidInput, "missing channel type or user id")
	}

	id := IdentityID(in.ChannelType, in.ChannelUserID)

	var stored domain.Identity
	found, err := r.store.Get(ctx, domain.IndexUserSessions, id, &stored)
	if err != nil {
		return domain.Identity{}, domain.NewDomainError("IdentityResolver.Resolve", domain.ErrIdentityUnresolved, err.Error())
	}
	if found {
		stored.IsNew = false
		return stored, nil
	}

	identity := domain.Identity{
		ID:            id,
		ChannelUserID: in.ChannelUserID,
		ChannelType:   in.ChannelType,
		IsBot:         in.IsBot,
		DisplayName:   in.DisplayName,
		Username:      in.Username,
		CreatedAt:     r.now(),
	}
	if err := r.store.Put(ctx, domain.IndexUserSessions, id, identity); err != nil {
		return domain.Identity{}, domain.NewDomainError("IdentityResolver.Resolve", domain.ErrIdentityUnresolved, err.Error())
	}

	r.logger.Info("identity registered", "channel", in.ChannelType, "id", id)
	identity.IsNew = true
	return identity, nil
}

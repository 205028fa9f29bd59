package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/agentfelt/agentfelt/internal/store"
)

var (
	// ErrInvalidSession is returned for tokens that fail to decode, carry a
	// bad signature, or reference a revoked session.
	ErrInvalidSession = errors.New("invalid session token")
	// ErrSessionExpired is returned for well-formed tokens past their expiry.
	ErrSessionExpired = errors.New("session expired")
)

// Sessions mints and verifies opaque, time-bound session tokens. A token is
// `base64url(sessionID:expiryUnix:mac)` where the mac is HMAC-SHA256 over
// the first two fields; revocation is store-backed, so a valid signature is
// still rejected once the session row is gone.
type Sessions struct {
	store  store.Store
	secret []byte
	ttl    time.Duration
	clock  quartz.Clock
}

// NewSessions creates the session service.
func NewSessions(st store.Store, secret string, ttl time.Duration, clock quartz.Clock) *Sessions {
	return &Sessions{
		store:  st,
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clock,
	}
}

// Create persists a session binding and returns its token.
func (s *Sessions) Create(ctx context.Context, agentID, tableID string, seatID int) (string, store.SessionRecord, error) {
	rec := store.SessionRecord{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		TableID:   tableID,
		SeatID:    seatID,
		ExpiresAt: s.clock.Now().Add(s.ttl).UTC(),
	}
	if err := s.store.CreateSession(ctx, rec); err != nil {
		return "", store.SessionRecord{}, fmt.Errorf("create session: %w", err)
	}
	return s.encode(rec), rec, nil
}

// Verify checks signature, expiry, and revocation for a token.
func (s *Sessions) Verify(ctx context.Context, token string) (store.SessionRecord, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return store.SessionRecord{}, ErrInvalidSession
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return store.SessionRecord{}, ErrInvalidSession
	}
	id, expStr, gotMac := parts[0], parts[1], parts[2]

	if !hmac.Equal([]byte(gotMac), []byte(s.mac(id, expStr))) {
		return store.SessionRecord{}, ErrInvalidSession
	}

	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return store.SessionRecord{}, ErrInvalidSession
	}
	if s.clock.Now().Unix() >= exp {
		return store.SessionRecord{}, ErrSessionExpired
	}

	rec, err := s.store.SessionByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.SessionRecord{}, ErrInvalidSession
	}
	if err != nil {
		return store.SessionRecord{}, err
	}
	if s.clock.Now().After(rec.ExpiresAt) {
		return store.SessionRecord{}, ErrSessionExpired
	}
	return rec, nil
}

// Revoke removes every session the agent holds at the table.
func (s *Sessions) Revoke(ctx context.Context, agentID, tableID string) error {
	return s.store.RevokeSessions(ctx, agentID, tableID)
}

func (s *Sessions) encode(rec store.SessionRecord) string {
	expStr := strconv.FormatInt(rec.ExpiresAt.Unix(), 10)
	raw := rec.ID + ":" + expStr + ":" + s.mac(rec.ID, expStr)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func (s *Sessions) mac(id, exp string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(id + ":" + exp))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

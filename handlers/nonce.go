package handlers

import (
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"concert-tickets/model"

	"github.com/google/uuid"
)

var (
	ErrNoNonce      = stderrors.New("no outstanding nonce for identity")
	ErrNonceExpired = stderrors.New("nonce expired")
	ErrNonceMissing = stderrors.New("signed message does not contain an outstanding nonce")
)

// NonceStore keeps the outstanding login nonces of each identity until
// they are used or expire. Issuing a nonce never invalidates another.
type NonceStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[model.Identity]map[string]time.Time
}

func NewNonceStore(ttl time.Duration) *NonceStore {
	return &NonceStore{
		ttl:     ttl,
		now:     time.Now,
		pending: map[model.Identity]map[string]time.Time{},
	}
}

func (s *NonceStore) Issue(id model.Identity) (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	nonce := uuid.NewString()
	expires := now.Add(s.ttl)
	if s.pending[id] == nil {
		s.pending[id] = map[string]time.Time{}
	}
	s.pending[id][nonce] = expires
	return nonce, expires
}

// Consume finds the identity's nonce carried in message and removes it.
// A nonce is usable once.
func (s *NonceStore) Consume(id model.Identity, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonces := s.pending[id]
	if len(nonces) == 0 {
		return ErrNoNonce
	}

	for nonce, expires := range nonces {
		if !strings.Contains(message, nonce) {
			continue
		}
		s.remove(id, nonce)
		if s.now().After(expires) {
			return ErrNonceExpired
		}
		return nil
	}
	return ErrNonceMissing
}

func (s *NonceStore) remove(id model.Identity, nonce string) {
	delete(s.pending[id], nonce)
	if len(s.pending[id]) == 0 {
		delete(s.pending, id)
	}
}

func (s *NonceStore) sweep(now time.Time) {
	for id, nonces := range s.pending {
		for nonce, expires := range nonces {
			if now.After(expires) {
				s.remove(id, nonce)
			}
		}
	}
}

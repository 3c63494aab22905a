// Package memory provides an in-memory store implementation. It is safe for
// concurrent use and is primarily intended for tests and local development.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pollincash/pollsync/internal/domain/poll"
	"github.com/pollincash/pollsync/internal/storage"
)

// Store keeps all collections in maps guarded by one mutex.
type Store struct {
	mu            sync.RWMutex
	polls         map[string]poll.Poll
	payouts       map[string]poll.PayoutLog
	verifications map[string]poll.Verification
}

var _ storage.PollStore = (*Store)(nil)
var _ storage.PayoutStore = (*Store)(nil)
var _ storage.VerificationStore = (*Store)(nil)
var _ storage.Prober = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		polls:         make(map[string]poll.Poll),
		payouts:       make(map[string]poll.PayoutLog),
		verifications: make(map[string]poll.Verification),
	}
}

// Ping implements storage.Prober. The in-memory store is always reachable.
func (s *Store) Ping(_ context.Context) error { return nil }

// PollStore implementation ----------------------------------------------------

func (s *Store) GetPoll(_ context.Context, id string) (poll.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.polls[id]
	if !ok {
		return poll.Poll{}, storage.ErrPollNotFound
	}
	return p, nil
}

func (s *Store) SetPollMerge(_ context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p, exists := s.polls[id]
	if !exists {
		p = poll.Poll{ID: id, CreatedAt: now}
	}
	applyFields(&p, fields)
	p.UpdatedAt = now
	s.polls[id] = p
	return nil
}

func (s *Store) IncrementCompleted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.polls[id]
	if !ok {
		return storage.ErrPollNotFound
	}
	p.CompletedCount++
	p.UpdatedAt = time.Now().UTC()
	s.polls[id] = p
	return nil
}

func (s *Store) ClosePoll(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.polls[id]
	if !ok {
		return storage.ErrPollNotFound
	}
	p.Status = poll.StatusClosed
	p.UpdatedAt = time.Now().UTC()
	s.polls[id] = p
	return nil
}

func (s *Store) ListPolls(_ context.Context) ([]poll.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]poll.Poll, 0, len(s.polls))
	for _, p := range s.polls {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].ID)
		b, _ := strconv.Atoi(out[j].ID)
		return a < b
	})
	return out, nil
}

// PayoutStore implementation --------------------------------------------------

func (s *Store) AppendPayout(_ context.Context, p poll.PayoutLog) (poll.PayoutLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()
	s.payouts[p.ID] = p
	return p, nil
}

func (s *Store) ListPayoutsByPoll(_ context.Context, pollID string) ([]poll.PayoutLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []poll.PayoutLog
	for _, p := range s.payouts {
		if p.PollID == pollID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// VerificationStore implementation --------------------------------------------

func (s *Store) AppendVerification(_ context.Context, v poll.Verification) (poll.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	v.VerifiedAt = now
	v.CreatedAt = now
	s.verifications[v.ID] = v
	return v, nil
}

func (s *Store) VerificationExists(_ context.Context, pollID, nullifierHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.verifications {
		if v.PollID == pollID && v.NullifierHash == nullifierHash {
			return true, nil
		}
	}
	return false, nil
}

// applyFields merges known document fields into the poll record. Unknown keys
// are ignored, matching the merge behavior of the document store.
func applyFields(p *poll.Poll, fields map[string]any) {
	for key, val := range fields {
		switch key {
		case storage.FieldPollID:
			p.ID = asString(val)
		case storage.FieldCreatorWallet:
			p.CreatorWallet = asString(val)
		case storage.FieldRewardPool:
			p.RewardPool = asString(val)
		case storage.FieldRewardPerUser:
			p.RewardPerUser = asString(val)
		case storage.FieldMaxCompletions:
			p.MaxCompletions = asString(val)
		case storage.FieldCompletedCount:
			switch n := val.(type) {
			case int:
				p.CompletedCount = int64(n)
			case int64:
				p.CompletedCount = n
			}
		case storage.FieldStatus:
			p.Status = poll.Status(asString(val))
		case storage.FieldTxHash:
			p.TxHash = asStringPtr(val)
		case storage.FieldBlockNumber:
			p.BlockNumber = asStringPtr(val)
		}
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringPtr(v any) *string {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

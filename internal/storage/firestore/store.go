// Package firestore implements the storage interfaces on Cloud Firestore,
// the document store the Poll in Cash frontend reads from.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pollincash/pollsync/internal/domain/poll"
	"github.com/pollincash/pollsync/internal/storage"
)

// Store persists mirrored poll state in Firestore collections.
type Store struct {
	client *firestore.Client
}

var _ storage.PollStore = (*Store)(nil)
var _ storage.PayoutStore = (*Store)(nil)
var _ storage.VerificationStore = (*Store)(nil)
var _ storage.Prober = (*Store)(nil)

// New wraps an already constructed Firestore client. The client's lifetime is
// owned by the caller.
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Ping reads at most one document from the polls collection to verify the
// database is reachable before bulk writes are attempted.
func (s *Store) Ping(ctx context.Context) error {
	iter := s.client.Collection(storage.CollectionPolls).Limit(1).Documents(ctx)
	defer iter.Stop()

	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("%w: %v", storage.ErrStoreUnavailable, err)
	}
	return nil
}

// PollStore implementation ----------------------------------------------------

func (s *Store) GetPoll(ctx context.Context, id string) (poll.Poll, error) {
	snap, err := s.client.Collection(storage.CollectionPolls).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return poll.Poll{}, storage.ErrPollNotFound
		}
		return poll.Poll{}, fmt.Errorf("get poll %s: %w", id, err)
	}

	var p poll.Poll
	if err := snap.DataTo(&p); err != nil {
		return poll.Poll{}, fmt.Errorf("decode poll %s: %w", id, err)
	}
	p.ID = snap.Ref.ID
	return p, nil
}

func (s *Store) SetPollMerge(ctx context.Context, id string, fields map[string]any) error {
	doc := s.client.Collection(storage.CollectionPolls).Doc(id)

	// First-write-wins for created_at: only stamp it when the document does
	// not exist yet.
	isNew := false
	if _, err := doc.Get(ctx); err != nil {
		if status.Code(err) != codes.NotFound {
			return fmt.Errorf("check poll %s: %w", id, err)
		}
		isNew = true
	}

	data := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		data[k] = v
	}
	data["updated_at"] = firestore.ServerTimestamp
	if isNew {
		data["created_at"] = firestore.ServerTimestamp
	}

	if _, err := doc.Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("merge poll %s: %w", id, err)
	}
	return nil
}

func (s *Store) IncrementCompleted(ctx context.Context, id string) error {
	doc := s.client.Collection(storage.CollectionPolls).Doc(id)
	_, err := doc.Update(ctx, []firestore.Update{
		{Path: storage.FieldCompletedCount, Value: firestore.Increment(1)},
		{Path: "updated_at", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return storage.ErrPollNotFound
		}
		return fmt.Errorf("increment poll %s: %w", id, err)
	}
	return nil
}

func (s *Store) ClosePoll(ctx context.Context, id string) error {
	doc := s.client.Collection(storage.CollectionPolls).Doc(id)
	_, err := doc.Update(ctx, []firestore.Update{
		{Path: storage.FieldStatus, Value: string(poll.StatusClosed)},
		{Path: "updated_at", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return storage.ErrPollNotFound
		}
		return fmt.Errorf("close poll %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListPolls(ctx context.Context) ([]poll.Poll, error) {
	iter := s.client.Collection(storage.CollectionPolls).Documents(ctx)
	defer iter.Stop()

	var out []poll.Poll
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list polls: %w", err)
		}
		var p poll.Poll
		if err := snap.DataTo(&p); err != nil {
			return nil, fmt.Errorf("decode poll %s: %w", snap.Ref.ID, err)
		}
		p.ID = snap.Ref.ID
		out = append(out, p)
	}
	return out, nil
}

// PayoutStore implementation --------------------------------------------------

func (s *Store) AppendPayout(ctx context.Context, p poll.PayoutLog) (poll.PayoutLog, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	doc := s.client.Collection(storage.CollectionPayoutLogs).Doc(p.ID)
	if _, err := doc.Create(ctx, p); err != nil {
		return poll.PayoutLog{}, fmt.Errorf("append payout log: %w", err)
	}
	return p, nil
}

func (s *Store) ListPayoutsByPoll(ctx context.Context, pollID string) ([]poll.PayoutLog, error) {
	iter := s.client.Collection(storage.CollectionPayoutLogs).
		Where(storage.FieldPollID, "==", pollID).
		Documents(ctx)
	defer iter.Stop()

	var out []poll.PayoutLog
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list payouts for poll %s: %w", pollID, err)
		}
		var p poll.PayoutLog
		if err := snap.DataTo(&p); err != nil {
			return nil, fmt.Errorf("decode payout %s: %w", snap.Ref.ID, err)
		}
		p.ID = snap.Ref.ID
		out = append(out, p)
	}
	return out, nil
}

// VerificationStore implementation --------------------------------------------

func (s *Store) AppendVerification(ctx context.Context, v poll.Verification) (poll.Verification, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	doc := s.client.Collection(storage.CollectionVerifications).Doc(v.ID)
	if _, err := doc.Create(ctx, v); err != nil {
		return poll.Verification{}, fmt.Errorf("append verification: %w", err)
	}
	return v, nil
}

func (s *Store) VerificationExists(ctx context.Context, pollID, nullifierHash string) (bool, error) {
	iter := s.client.Collection(storage.CollectionVerifications).
		Where(storage.FieldPollID, "==", pollID).
		Where("nullifier_hash", "==", nullifierHash).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	if _, err := iter.Next(); err != nil {
		if err == iterator.Done {
			return false, nil
		}
		return false, fmt.Errorf("query verifications: %w", err)
	}
	return true, nil
}

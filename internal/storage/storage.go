// Package storage defines the persistence interfaces for mirrored poll
// state. Implementations live in the firestore and memory subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/pollincash/pollsync/internal/domain/poll"
)

// Collection names in the document store.
const (
	CollectionPolls         = "polls"
	CollectionPayoutLogs    = "payout_logs"
	CollectionVerifications = "verifications"
)

// Document field names shared by every store implementation. Merge writes are
// keyed by these so partial updates never clobber unrelated fields.
const (
	FieldPollID         = "poll_id"
	FieldCreatorWallet  = "creator_wallet"
	FieldRewardPool     = "reward_pool"
	FieldRewardPerUser  = "reward_per_user"
	FieldMaxCompletions = "max_completions"
	FieldCompletedCount = "completed_count"
	FieldStatus         = "status"
	FieldTxHash         = "tx_hash"
	FieldBlockNumber    = "block_number"
)

var (
	// ErrPollNotFound reports an operation against a poll id that was never
	// created.
	ErrPollNotFound = errors.New("poll not found")
	// ErrStoreUnavailable reports that the document store cannot be reached.
	ErrStoreUnavailable = errors.New("document store unavailable")
)

// PollStore persists poll records keyed by stringified poll id.
type PollStore interface {
	// GetPoll returns the poll or ErrPollNotFound.
	GetPoll(ctx context.Context, id string) (poll.Poll, error)

	// SetPollMerge upserts the given fields into the poll document without
	// touching fields not named. The store stamps updated_at on every call
	// and created_at only when the document is new.
	SetPollMerge(ctx context.Context, id string, fields map[string]any) error

	// IncrementCompleted atomically adds 1 to completed_count and refreshes
	// updated_at. Returns ErrPollNotFound for unknown ids.
	IncrementCompleted(ctx context.Context, id string) error

	// ClosePoll sets status to closed and refreshes updated_at. Returns
	// ErrPollNotFound for unknown ids.
	ClosePoll(ctx context.Context, id string) error

	ListPolls(ctx context.Context) ([]poll.Poll, error)
}

// PayoutStore persists append-only payout log rows.
type PayoutStore interface {
	AppendPayout(ctx context.Context, p poll.PayoutLog) (poll.PayoutLog, error)
	ListPayoutsByPoll(ctx context.Context, pollID string) ([]poll.PayoutLog, error)
}

// VerificationStore persists World ID verification records.
type VerificationStore interface {
	AppendVerification(ctx context.Context, v poll.Verification) (poll.Verification, error)
	VerificationExists(ctx context.Context, pollID, nullifierHash string) (bool, error)
}

// Prober checks store connectivity before bulk writes.
type Prober interface {
	Ping(ctx context.Context) error
}

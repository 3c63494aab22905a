// Package payouts records completion payouts as an append-only log.
package payouts

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pollincash/pollsync/internal/domain/poll"
	"github.com/pollincash/pollsync/internal/events"
	"github.com/pollincash/pollsync/internal/storage"
)

// Service appends payout log rows. It never updates or merges, and performs
// no read-side deduplication: redelivered webhooks produce duplicate rows.
type Service struct {
	store storage.PayoutStore
	log   *logrus.Entry
}

// New constructs a payout logger.
func New(store storage.PayoutStore, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{store: store, log: log}
}

// Record appends one payout row for a PollCompleted event.
func (s *Service) Record(ctx context.Context, ev events.CompletedEvent) (poll.PayoutLog, error) {
	if ev.PollID == "" {
		return poll.PayoutLog{}, fmt.Errorf("PollCompleted event missing pollId")
	}

	rec := poll.PayoutLog{
		PollID:        ev.PollID,
		Wallet:        strings.ToLower(ev.Participant),
		Amount:        ev.UserPayout,
		Fee:           ev.PlatformFee,
		NullifierHash: ev.NullifierHash,
		TxHash:        ev.TxHash,
		BlockNumber:   ev.BlockNumber,
	}
	rec, err := s.store.AppendPayout(ctx, rec)
	if err != nil {
		return poll.PayoutLog{}, err
	}

	s.log.WithField("poll_id", ev.PollID).
		WithField("wallet", rec.Wallet).
		Info("payout recorded")
	return rec, nil
}

// ListByPoll returns the payout rows for one poll.
func (s *Service) ListByPoll(ctx context.Context, pollID string) ([]poll.PayoutLog, error) {
	return s.store.ListPayoutsByPoll(ctx, pollID)
}

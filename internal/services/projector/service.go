// Package projector applies normalized contract events and reconciled chain
// state to the mirrored poll records.
package projector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pollincash/pollsync/internal/chain"
	"github.com/pollincash/pollsync/internal/domain/poll"
	"github.com/pollincash/pollsync/internal/events"
	"github.com/pollincash/pollsync/internal/storage"
)

// Service owns all writes to the polls collection.
type Service struct {
	polls storage.PollStore
	log   *logrus.Entry
}

// New constructs a projector over the given poll store.
func New(polls storage.PollStore, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{polls: polls, log: log}
}

// ApplyCreated creates-or-merges the poll record for a PollCreated event.
// The merge is field-level: replaying the event never resets a
// completed_count already advanced by an out-of-order PollCompleted delivery,
// and completed_count/status are initialized only when the record is new.
func (s *Service) ApplyCreated(ctx context.Context, ev events.CreatedEvent) error {
	if ev.PollID == "" {
		return fmt.Errorf("PollCreated event missing pollId")
	}
	if ev.Creator == "" {
		return fmt.Errorf("PollCreated event missing creator")
	}

	fields := map[string]any{
		storage.FieldPollID:         ev.PollID,
		storage.FieldCreatorWallet:  strings.ToLower(ev.Creator),
		storage.FieldRewardPool:     ev.RewardPool,
		storage.FieldRewardPerUser:  ev.RewardPerUser,
		storage.FieldMaxCompletions: ev.MaxCompletions,
		storage.FieldTxHash:         ev.TxHash,
		storage.FieldBlockNumber:    ev.BlockNumber,
	}

	_, err := s.polls.GetPoll(ctx, ev.PollID)
	switch {
	case errors.Is(err, storage.ErrPollNotFound):
		fields[storage.FieldCompletedCount] = int64(0)
		fields[storage.FieldStatus] = string(poll.StatusLive)
	case err != nil:
		return fmt.Errorf("check poll %s: %w", ev.PollID, err)
	}

	if err := s.polls.SetPollMerge(ctx, ev.PollID, fields); err != nil {
		return err
	}
	s.log.WithField("poll_id", ev.PollID).Info("PollCreated event processed")
	return nil
}

// ApplyCompleted advances completed_count by exactly one. Replaying the same
// event double-increments; duplicate suppression is the contract's nullifier
// check, not this layer's.
func (s *Service) ApplyCompleted(ctx context.Context, pollID string) error {
	if pollID == "" {
		return fmt.Errorf("PollCompleted event missing pollId")
	}
	if err := s.polls.IncrementCompleted(ctx, pollID); err != nil {
		return err
	}
	s.log.WithField("poll_id", pollID).Info("PollCompleted event processed")
	return nil
}

// ApplyClosed marks the poll closed. Idempotent; there is no transition back
// to live.
func (s *Service) ApplyClosed(ctx context.Context, pollID string) error {
	if pollID == "" {
		return fmt.Errorf("PollClosed event missing pollId")
	}
	if err := s.polls.ClosePoll(ctx, pollID); err != nil {
		return err
	}
	s.log.WithField("poll_id", pollID).Info("PollClosed event processed")
	return nil
}

// UpsertFromChain overwrites the derived fields of a poll record with
// authoritative contract state. Transaction provenance cannot be recovered
// from state reads, so tx_hash and block_number are written as null; the
// store preserves created_at for records that already exist.
func (s *Service) UpsertFromChain(ctx context.Context, pollID uint64, info chain.PollInfo) error {
	status := poll.StatusClosed
	if info.IsActive {
		status = poll.StatusLive
	}

	id := fmt.Sprintf("%d", pollID)
	fields := map[string]any{
		storage.FieldPollID:         id,
		storage.FieldCreatorWallet:  strings.ToLower(info.Creator.Hex()),
		storage.FieldRewardPool:     info.RewardPool.String(),
		storage.FieldRewardPerUser:  info.RewardPerUser.String(),
		storage.FieldMaxCompletions: info.MaxCompletions.String(),
		storage.FieldCompletedCount: info.CompletedCount.Int64(),
		storage.FieldStatus:         string(status),
		storage.FieldTxHash:         nil,
		storage.FieldBlockNumber:    nil,
	}
	return s.polls.SetPollMerge(ctx, id, fields)
}

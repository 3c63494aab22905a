// Package verifier checks World ID proofs and records one verification per
// identity per poll.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pollincash/pollsync/internal/domain/poll"
	"github.com/pollincash/pollsync/internal/storage"
	"github.com/pollincash/pollsync/internal/worldid"
)

var (
	// ErrInvalidProof reports a proof the upstream API rejected.
	ErrInvalidProof = errors.New("invalid World ID proof")
	// ErrAlreadyVerified reports a nullifier hash already used for the poll.
	ErrAlreadyVerified = errors.New("this World ID has already been used for this poll")
)

// ProofChecker verifies a proof with the identity provider.
type ProofChecker interface {
	Verify(ctx context.Context, proof worldid.Proof) error
}

// Service verifies proofs and dedupes them per (poll, nullifier hash).
type Service struct {
	proofs ProofChecker
	store  storage.VerificationStore
	log    *logrus.Entry
}

// New constructs a verifier.
func New(proofs ProofChecker, store storage.VerificationStore, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{proofs: proofs, store: store, log: log}
}

// Verify checks the proof upstream and, when a poll id is supplied, rejects
// reused nullifier hashes and stores the verification record. Without a poll
// id only the upstream check runs.
func (s *Service) Verify(ctx context.Context, proof worldid.Proof, pollID, wallet string) error {
	if proof.NullifierHash == "" {
		return fmt.Errorf("%w: missing nullifier hash", ErrInvalidProof)
	}

	if err := s.proofs.Verify(ctx, proof); err != nil {
		if errors.Is(err, worldid.ErrInvalidProof) {
			return fmt.Errorf("%w: %v", ErrInvalidProof, err)
		}
		return err
	}

	if pollID == "" {
		return nil
	}

	exists, err := s.store.VerificationExists(ctx, pollID, proof.NullifierHash)
	if err != nil {
		return fmt.Errorf("check verification: %w", err)
	}
	if exists {
		return ErrAlreadyVerified
	}

	_, err = s.store.AppendVerification(ctx, poll.Verification{
		PollID:        pollID,
		Wallet:        strings.ToLower(wallet),
		NullifierHash: proof.NullifierHash,
		Action:        proof.Action,
	})
	if err != nil {
		return fmt.Errorf("store verification: %w", err)
	}

	s.log.WithField("poll_id", pollID).Info("World ID verification stored")
	return nil
}

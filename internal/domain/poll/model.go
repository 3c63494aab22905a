// Package poll defines the records mirrored from the PollEscrow contract.
package poll

import "time"

// Status is the lifecycle state of a poll. A poll never transitions back to
// live once closed.
type Status string

const (
	StatusLive   Status = "live"
	StatusClosed Status = "closed"
)

// Poll is one escrow-backed poll, keyed by the contract-assigned poll id.
// Token amounts are decimal strings of base units (USDC has 6 decimals).
type Poll struct {
	ID             string    `json:"poll_id" firestore:"poll_id"`
	CreatorWallet  string    `json:"creator_wallet" firestore:"creator_wallet"`
	RewardPool     string    `json:"reward_pool" firestore:"reward_pool"`
	RewardPerUser  string    `json:"reward_per_user" firestore:"reward_per_user"`
	MaxCompletions string    `json:"max_completions" firestore:"max_completions"`
	CompletedCount int64     `json:"completed_count" firestore:"completed_count"`
	Status         Status    `json:"status" firestore:"status"`
	TxHash         *string   `json:"tx_hash" firestore:"tx_hash"`
	BlockNumber    *string   `json:"block_number" firestore:"block_number"`
	CreatedAt      time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" firestore:"updated_at"`
}

// PayoutLog is one completion payout. Rows are append-only and never updated;
// duplicate suppression lives on-chain via the nullifier hash, not here.
type PayoutLog struct {
	ID            string    `json:"id" firestore:"-"`
	PollID        string    `json:"poll_id" firestore:"poll_id"`
	Wallet        string    `json:"wallet" firestore:"wallet"`
	Amount        string    `json:"amount" firestore:"amount"`
	Fee           string    `json:"fee" firestore:"fee"`
	NullifierHash string    `json:"nullifier_hash" firestore:"nullifier_hash"`
	TxHash        string    `json:"tx_hash" firestore:"tx_hash"`
	BlockNumber   string    `json:"block_number" firestore:"block_number"`
	CreatedAt     time.Time `json:"created_at" firestore:"created_at,serverTimestamp"`
}

// Verification records one successful World ID proof for a poll. At most one
// record exists per (poll_id, nullifier_hash).
type Verification struct {
	ID            string    `json:"id" firestore:"-"`
	PollID        string    `json:"poll_id" firestore:"poll_id"`
	Wallet        string    `json:"wallet" firestore:"wallet"`
	NullifierHash string    `json:"nullifier_hash" firestore:"nullifier_hash"`
	Action        string    `json:"action" firestore:"action"`
	VerifiedAt    time.Time `json:"verified_at" firestore:"verified_at,serverTimestamp"`
	CreatedAt     time.Time `json:"created_at" firestore:"created_at,serverTimestamp"`
}

// Package events normalizes inbound Insight webhook payloads into typed
// contract events.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names emitted by the PollEscrow contract.
const (
	NamePollCreated   = "PollCreated"
	NamePollCompleted = "PollCompleted"
	NamePollClosed    = "PollClosed"
)

// ErrMissingEventName is returned for payloads with no eventName. Callers
// surface it as a client error.
var ErrMissingEventName = errors.New("event payload missing eventName")

// Payload is the raw Insight webhook body. Args is a free-form mapping whose
// values may arrive as JSON strings or numbers depending on the delivery.
type Payload struct {
	ContractAddress string                     `json:"contractAddress"`
	EventName       string                     `json:"eventName"`
	TransactionHash string                     `json:"transactionHash"`
	BlockNumber     FlexString                 `json:"blockNumber"`
	Args            map[string]json.RawMessage `json:"args"`
}

// FlexString decodes a JSON string, number, or null into a string.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("value %s is neither string nor number", data)
	}
	*f = FlexString(n.String())
	return nil
}

// Event is one normalized contract event.
type Event interface {
	Name() string
}

// CreatedEvent is a normalized PollCreated event.
// Event: PollCreated(pollId, creator, rewardPool, rewardPerUser, maxCompletions)
type CreatedEvent struct {
	PollID         string
	Creator        string
	RewardPool     string
	RewardPerUser  string
	MaxCompletions string
	TxHash         string
	BlockNumber    string
}

// Name implements Event.
func (CreatedEvent) Name() string { return NamePollCreated }

// CompletedEvent is a normalized PollCompleted event.
// Event: PollCompleted(pollId, participant, userPayout, platformFee, nullifierHash)
type CompletedEvent struct {
	PollID        string
	Participant   string
	UserPayout    string
	PlatformFee   string
	NullifierHash string
	TxHash        string
	BlockNumber   string
}

// Name implements Event.
func (CompletedEvent) Name() string { return NamePollCompleted }

// ClosedEvent is a normalized PollClosed event.
// Event: PollClosed(pollId)
type ClosedEvent struct {
	PollID      string
	TxHash      string
	BlockNumber string
}

// Name implements Event.
func (ClosedEvent) Name() string { return NamePollClosed }

// UnknownEvent is an event name this service does not handle. It is accepted
// and ignored so future contract events do not break deliveries.
type UnknownEvent struct {
	EventName string
}

// Name implements Event.
func (e UnknownEvent) Name() string { return e.EventName }

// Normalize extracts the typed event from a webhook payload. Args absent from
// the payload stay empty strings; they are never coerced to "0". A payload
// without an eventName is rejected with ErrMissingEventName.
func Normalize(p Payload) (Event, error) {
	if p.EventName == "" {
		return nil, ErrMissingEventName
	}

	switch p.EventName {
	case NamePollCreated:
		return CreatedEvent{
			PollID:         argString(p.Args, "pollId"),
			Creator:        argString(p.Args, "creator"),
			RewardPool:     argString(p.Args, "rewardPool"),
			RewardPerUser:  argString(p.Args, "rewardPerUser"),
			MaxCompletions: argString(p.Args, "maxCompletions"),
			TxHash:         p.TransactionHash,
			BlockNumber:    string(p.BlockNumber),
		}, nil
	case NamePollCompleted:
		return CompletedEvent{
			PollID:        argString(p.Args, "pollId"),
			Participant:   argString(p.Args, "participant"),
			UserPayout:    argString(p.Args, "userPayout"),
			PlatformFee:   argString(p.Args, "platformFee"),
			NullifierHash: argString(p.Args, "nullifierHash"),
			TxHash:        p.TransactionHash,
			BlockNumber:   string(p.BlockNumber),
		}, nil
	case NamePollClosed:
		return ClosedEvent{
			PollID:      argString(p.Args, "pollId"),
			TxHash:      p.TransactionHash,
			BlockNumber: string(p.BlockNumber),
		}, nil
	default:
		return UnknownEvent{EventName: p.EventName}, nil
	}
}

// argString stringifies one arg value. Missing or malformed values normalize
// to the empty string.
func argString(args map[string]json.RawMessage, key string) string {
	raw, ok := args[key]
	if !ok {
		return ""
	}
	var f FlexString
	if err := f.UnmarshalJSON(raw); err != nil {
		return ""
	}
	return string(f)
}

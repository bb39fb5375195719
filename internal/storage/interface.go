// Package storage provides the exchange journal: a durable record of
// processed and rejected messages and of pending exchanges whose
// callback never arrived within its window. A relaunched endpoint reads
// the journal to diagnose expired callbacks; the processing pipeline
// itself never depends on it for correctness.
//
// The mongodb sub-package provides the production implementation.
// All implementations must be safe for concurrent use.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a journal entry does not exist.
var ErrNotFound = errors.New("journal entry not found")

// Direction of a journaled exchange.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// Outcome of a journaled exchange.
const (
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
	OutcomeExpired   = "expired"
)

// ExchangeRecord is one journal entry. Fault details are limited to
// the stable fault code; key material and rejected plaintext are never
// journaled.
type ExchangeRecord struct {
	MessageID string    `bson:"message_id" json:"messageId"`
	ProfileID string    `bson:"profile_id" json:"profileId"`
	Direction string    `bson:"direction" json:"direction"`
	Outcome   string    `bson:"outcome" json:"outcome"`
	FaultCode string    `bson:"fault_code,omitempty" json:"faultCode,omitempty"`
	RelatesTo string    `bson:"relates_to,omitempty" json:"relatesTo,omitempty"`
	ReplyTo   string    `bson:"reply_to,omitempty" json:"replyTo,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// ExchangeJournal records exchange outcomes.
type ExchangeJournal interface {
	// Record appends one exchange record.
	Record(ctx context.Context, rec ExchangeRecord) error

	// Find returns the most recent record for a message id, or
	// ErrNotFound.
	Find(ctx context.Context, messageID string) (*ExchangeRecord, error)

	// ListExpired returns records of exchanges whose callback window
	// elapsed, newest first, up to limit.
	ListExpired(ctx context.Context, limit int) ([]ExchangeRecord, error)

	// Close releases journal resources.
	Close(ctx context.Context) error
}

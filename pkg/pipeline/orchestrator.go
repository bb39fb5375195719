package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/grauwen/digikoppeling-wus-cxf/internal/storage"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/addressing"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/correlation"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/envelope"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/policy"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/profile"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/wssec"
)

// Result is the outcome of one successfully processed message.
type Result struct {
	// Envelope is the classified envelope; for inbound messages the
	// restored (decrypted, verified) one.
	Envelope *envelope.Envelope
	// Wire is the serialized form ready for the next hop: protected
	// for outbound, restored for inbound.
	Wire []byte
	// ProfileID is the profile the message was processed under.
	ProfileID profile.ID
	// Addressing holds the extracted addressing properties.
	Addressing addressing.Properties
	// Correlated is the pending exchange a response resolved, nil when
	// the message carried no correlation reference.
	Correlated *correlation.Entry
}

// OutboundOptions tunes one outbound exchange.
type OutboundOptions struct {
	// ExpectCallback registers the message id so a later response can
	// be correlated. TTL bounds the wait; zero uses the store default.
	ExpectCallback bool
	TTL            time.Duration
	// Token is an opaque caller value returned on resolution.
	Token string
}

// Config configures an Orchestrator.
type Config struct {
	// Registry defaults to the built-in profile table.
	Registry *profile.Registry
	// Store defaults to a new correlation store whose expired entries
	// are reported through the orchestrator's log, metrics and journal.
	Store *correlation.Store
	// Journal is optional; outcomes are recorded best-effort.
	Journal storage.ExchangeJournal
	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// Registerer for metrics; nil skips registration.
	Registerer prometheus.Registerer
}

// Orchestrator drives a message through the processing states:
// classification, policy admission, security processing, and
// correlation. The first failing stage aborts the exchange; the fault
// carries the profile id, message id, and offending name but never key
// material or rejected plaintext.
type Orchestrator struct {
	registry *profile.Registry
	store    *correlation.Store
	ownStore bool
	journal  storage.ExchangeJournal
	log      *slog.Logger
	metrics  *Metrics
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		registry: cfg.Registry,
		store:    cfg.Store,
		journal:  cfg.Journal,
		log:      cfg.Logger,
	}
	if o.registry == nil {
		o.registry = profile.NewRegistry()
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	o.metrics = NewMetrics(cfg.Registerer)
	if o.store == nil {
		o.store = correlation.NewStore(correlation.Options{OnExpired: o.onExpired})
		o.ownStore = true
	}
	o.metrics.RegisterPendingGauge(cfg.Registerer, o.store.Pending)
	return o
}

// Store returns the correlation store in use.
func (o *Orchestrator) Store() *correlation.Store {
	return o.store
}

// Close stops the correlation store if the orchestrator owns it.
func (o *Orchestrator) Close() {
	if o.ownStore {
		o.store.Stop()
	}
}

// ProcessOutbound classifies, admits and protects an outbound message
// and, when a callback is expected, registers it for correlation.
func (o *Orchestrator) ProcessOutbound(ctx context.Context, raw []byte, profileID profile.ID, sc *wssec.SecurityContext, opts OutboundOptions) (*Result, error) {
	result, err := o.processOutbound(ctx, raw, profileID, sc, opts)
	o.finish(ctx, storage.DirectionOutbound, profileID, result, err)
	return result, err
}

func (o *Orchestrator) processOutbound(ctx context.Context, raw []byte, profileID profile.ID, sc *wssec.SecurityContext, opts OutboundOptions) (*Result, error) {
	desc, err := o.registry.Lookup(profileID)
	if err != nil {
		return nil, err
	}

	env, err := envelope.Classify(raw)
	if err != nil {
		return nil, annotate(err, profileID, "")
	}

	admitted, err := policy.Admit(env.Version, env.Headers, desc)
	if err != nil {
		return nil, annotate(err, profileID, "")
	}
	props := addressing.Extract(admitted)

	wire, err := wssec.Protect(env, desc, sc)
	if err != nil {
		return nil, annotate(err, profileID, props.MessageID)
	}

	if opts.ExpectCallback {
		if err := o.store.Register(props.MessageID, props.ReplyTo, opts.Token, opts.TTL); err != nil {
			return nil, fmt.Errorf("failed to register exchange %s: %w", props.MessageID, err)
		}
	}

	return &Result{
		Envelope:   env,
		Wire:       wire,
		ProfileID:  profileID,
		Addressing: props,
	}, nil
}

// ProcessInbound classifies and admits a received message, reverses
// its security processing, and resolves its correlation reference when
// it carries one.
func (o *Orchestrator) ProcessInbound(ctx context.Context, raw []byte, profileID profile.ID, sc *wssec.SecurityContext) (*Result, error) {
	result, err := o.processInbound(ctx, raw, profileID, sc)
	o.finish(ctx, storage.DirectionInbound, profileID, result, err)
	return result, err
}

func (o *Orchestrator) processInbound(ctx context.Context, raw []byte, profileID profile.ID, sc *wssec.SecurityContext) (*Result, error) {
	desc, err := o.registry.Lookup(profileID)
	if err != nil {
		return nil, err
	}

	env, err := envelope.Classify(raw)
	if err != nil {
		return nil, annotate(err, profileID, "")
	}

	admitted, err := policy.Admit(env.Version, env.Headers, desc)
	if err != nil {
		return nil, annotate(err, profileID, "")
	}
	props := addressing.Extract(admitted)

	wire, err := wssec.Unprotect(ctx, env, desc, sc)
	if err != nil {
		return nil, annotate(err, profileID, props.MessageID)
	}

	restored, err := envelope.Classify(wire)
	if err != nil {
		return nil, annotate(err, profileID, props.MessageID)
	}

	result := &Result{
		Envelope:   restored,
		Wire:       wire,
		ProfileID:  profileID,
		Addressing: props,
	}

	if props.RelatesTo != "" {
		entry, err := o.store.Resolve(props.RelatesTo)
		if err != nil {
			return nil, annotate(err, profileID, props.MessageID)
		}
		result.Correlated = &entry
	}

	return result, nil
}

// finish records the outcome in the log, metrics and journal.
func (o *Orchestrator) finish(ctx context.Context, direction string, profileID profile.ID, result *Result, err error) {
	if err == nil {
		o.metrics.observeProcessed(direction, string(profileID))
		o.log.Debug("message processed",
			"direction", direction,
			"profile", profileID,
			"message_id", result.Addressing.MessageID)
		o.journalRecord(ctx, storage.ExchangeRecord{
			MessageID: result.Addressing.MessageID,
			ProfileID: string(profileID),
			Direction: direction,
			Outcome:   storage.OutcomeProcessed,
			RelatesTo: result.Addressing.RelatesTo,
			ReplyTo:   result.Addressing.ReplyTo,
			Timestamp: time.Now(),
		})
		return
	}

	o.metrics.observeFailed(direction, string(profileID), err)
	rec := storage.ExchangeRecord{
		ProfileID: string(profileID),
		Direction: direction,
		Outcome:   storage.OutcomeFailed,
		Timestamp: time.Now(),
	}
	if code, ok := fault.CodeOf(err); ok {
		rec.FaultCode = string(code)
	}
	var f *fault.Fault
	if errors.As(err, &f) {
		rec.MessageID = f.MessageID
	}
	o.log.Warn("message rejected",
		"direction", direction,
		"profile", profileID,
		"error", err)
	o.journalRecord(ctx, rec)
}

func (o *Orchestrator) onExpired(entry correlation.Entry) {
	err := correlation.ExpiredError(entry)
	o.metrics.observeFailed(storage.DirectionInbound, "", err)
	o.log.Warn("exchange expired",
		"message_id", entry.MessageID,
		"reply_to", entry.ReplyTo)
	o.journalRecord(context.Background(), storage.ExchangeRecord{
		MessageID: entry.MessageID,
		Direction: storage.DirectionInbound,
		Outcome:   storage.OutcomeExpired,
		FaultCode: string(fault.CallbackTimeout),
		ReplyTo:   entry.ReplyTo,
		Timestamp: time.Now(),
	})
}

func (o *Orchestrator) journalRecord(ctx context.Context, rec storage.ExchangeRecord) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Record(ctx, rec); err != nil {
		o.log.Warn("failed to journal exchange", "message_id", rec.MessageID, "error", err)
	}
}

// annotate attaches exchange context to a fault without overwriting
// what an inner stage already set.
func annotate(err error, profileID profile.ID, messageID string) error {
	var f *fault.Fault
	if errors.As(err, &f) {
		f.WithExchange(string(profileID), messageID)
	}
	return err
}

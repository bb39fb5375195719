// Package fault defines the closed fault taxonomy for hybrid-envelope
// message processing. Every pipeline stage reports failures as a Fault
// carrying a stable code plus enough context (qualified name, profile,
// message id) to diagnose the exchange without exposing key material.
package fault

import (
	"errors"
	"fmt"
)

// Code identifies a processing fault. The set is closed: callers map
// codes to retry or reporting policy, the pipeline itself never retries.
type Code string

const (
	UnrecognizedEnvelopeVersion Code = "UnrecognizedEnvelopeVersion"
	VersionMismatch             Code = "VersionMismatch"
	DisallowedNamespace         Code = "DisallowedNamespace"
	MissingRequiredHeader       Code = "MissingRequiredHeader"
	DuplicateHeader             Code = "DuplicateHeader"
	UnresolvedPartReference     Code = "UnresolvedPartReference"
	StaleOrInvalidTimestamp     Code = "StaleOrInvalidTimestamp"
	UntrustedCertificate        Code = "UntrustedCertificate"
	SignatureInvalid            Code = "SignatureInvalid"
	DecryptionFailed            Code = "DecryptionFailed"
	UnknownProfile              Code = "UnknownProfile"
	UnknownCorrelation          Code = "UnknownCorrelation"
	CallbackTimeout             Code = "CallbackTimeout"
)

// Fault is a terminal processing failure for one message exchange.
type Fault struct {
	Code      Code
	Detail    string
	QName     string // offending qualified name, when one exists
	ProfileID string
	MessageID string

	cause error
}

// New creates a Fault with the given code and formatted detail.
func New(code Code, format string, args ...interface{}) *Fault {
	return &Fault{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Wrap creates a Fault preserving the underlying error for errors.Unwrap.
func Wrap(code Code, cause error, format string, args ...interface{}) *Fault {
	return &Fault{Code: code, Detail: fmt.Sprintf(format, args...), cause: cause}
}

// WithQName records the qualified name the fault concerns.
func (f *Fault) WithQName(qname string) *Fault {
	f.QName = qname
	return f
}

// WithExchange records profile and message context if not already set.
func (f *Fault) WithExchange(profileID, messageID string) *Fault {
	if f.ProfileID == "" {
		f.ProfileID = profileID
	}
	if f.MessageID == "" {
		f.MessageID = messageID
	}
	return f
}

func (f *Fault) Error() string {
	msg := fmt.Sprintf("%s: %s", f.Code, f.Detail)
	if f.QName != "" {
		msg += fmt.Sprintf(" (header %s)", f.QName)
	}
	if f.ProfileID != "" {
		msg += fmt.Sprintf(" [profile %s]", f.ProfileID)
	}
	if f.MessageID != "" {
		msg += fmt.Sprintf(" [message %s]", f.MessageID)
	}
	return msg
}

func (f *Fault) Unwrap() error {
	return f.cause
}

// CodeOf extracts the fault code from an error chain.
func CodeOf(err error) (Code, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code, true
	}
	return "", false
}

// Is reports whether err carries the given fault code.
func Is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

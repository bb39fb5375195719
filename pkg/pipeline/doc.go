// Package pipeline orchestrates message processing across profiles.
//
// A message moves through a fixed sequence of states: classification
// of the envelope version and headers, policy admission under the
// configured profile, security processing (protection on send,
// decryption and verification on receipt), and correlation of
// responses to pending exchanges. The first failing stage aborts the
// exchange and the resulting fault identifies the profile, the message
// and the offending element without disclosing key material or
// rejected plaintext.
//
// The orchestrator is safe for concurrent use. Each exchange borrows
// its own security context; nothing cryptographic is shared between
// exchanges.
package pipeline

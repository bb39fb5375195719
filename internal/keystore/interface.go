// Package keystore provides key material abstractions for the WUS gateway
//
// This package defines a unified interface for loading the gateway's
// signing/decryption identity that can be implemented by different backends:
//
//   - PKCS#11: Keys stored in hardware security modules (HSM) or smart cards
//   - File-based: Keys loaded from PEM files (development only)
//
// The abstraction allows the gateway to protect and unprotect messages
// without knowing the underlying key storage mechanism. A loaded Identity
// plugs straight into a wssec.SecurityContext.
package keystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"errors"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("gateway key not found")
	ErrNoDecrypter = errors.New("key does not support decryption")
)

// Provider loads the gateway identity and peer trust anchors
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Identity returns the gateway's key material. The signer is used for
	// ds:Signature values; when the key also implements crypto.Decrypter
	// it unwraps xenc:EncryptedKey values.
	Identity(ctx context.Context) (*Identity, error)

	// TrustAnchors returns the CA pool used to verify peer signing
	// certificates.
	TrustAnchors() *x509.CertPool

	// Close releases any resources held by the provider.
	Close() error
}

// Identity is the gateway's key material for one OIN (organization
// identification number).
type Identity struct {
	// Signer signs SignedInfo digests. PKCS#11 keys never leave the token.
	Signer crypto.Signer

	// Decrypter unwraps encrypted content keys. Nil when the backend key
	// cannot decrypt (signing-only certificates).
	Decrypter crypto.Decrypter

	// Certificate is the X.509 certificate carried as the
	// BinarySecurityToken.
	Certificate *x509.Certificate
}

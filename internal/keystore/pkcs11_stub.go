//go:build !pkcs11

// Package keystore provides a stub for PKCS#11 when not compiled with the pkcs11 tag.
package keystore

import (
	"context"
	"crypto/x509"
	"errors"
)

// PKCS11Provider is a stub that returns an error when PKCS#11 support is not compiled in.
type PKCS11Provider struct{}

// PKCS11ProviderConfig holds configuration for the PKCS#11 provider
type PKCS11ProviderConfig struct {
	ModulePath      string
	SlotLabel       string
	PIN             string
	KeyLabel        string
	CertFile        string
	TrustAnchorFile string
}

// ErrPKCS11NotSupported is returned when PKCS#11 operations are attempted
// but the binary was not compiled with PKCS#11 support.
var ErrPKCS11NotSupported = errors.New("PKCS#11 support not compiled in (build with -tags pkcs11)")

// NewPKCS11Provider returns an error because PKCS#11 is not compiled in.
func NewPKCS11Provider(cfg *PKCS11ProviderConfig) (*PKCS11Provider, error) {
	return nil, ErrPKCS11NotSupported
}

// Identity returns an error because PKCS#11 is not compiled in.
func (p *PKCS11Provider) Identity(ctx context.Context) (*Identity, error) {
	return nil, ErrPKCS11NotSupported
}

// TrustAnchors returns an empty pool.
func (p *PKCS11Provider) TrustAnchors() *x509.CertPool {
	return x509.NewCertPool()
}

// Close is a no-op.
func (p *PKCS11Provider) Close() error {
	return nil
}

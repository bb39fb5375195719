//go:build pkcs11

// Package keystore provides the PKCS#11 provider implementation
package keystore

import (
	"context"
	"crypto/x509"
	"fmt"
	"sync"

	"github.com/ThalesGroup/crypto11"
)

// PKCS11Provider implements Provider using a PKCS#11 token (HSM/smart card)
//
// The private key never leaves the token; signing and key unwrapping run
// inside it. The certificate and trust anchors are loaded from PEM files
// because PKIoverheid chains are distributed out of band.
type PKCS11Provider struct {
	ctx      *crypto11.Context
	keyLabel string
	certFile string
	anchors  *x509.CertPool

	mu       sync.Mutex
	identity *Identity
}

// PKCS11ProviderConfig holds configuration for the PKCS#11 provider
type PKCS11ProviderConfig struct {
	// ModulePath is the path to the PKCS#11 library (.so/.dylib/.dll)
	ModulePath string

	// SlotLabel is the token label to open
	SlotLabel string

	// PIN is the user PIN for authentication
	PIN string

	// KeyLabel is the label of the gateway key pair on the token
	KeyLabel string

	// CertFile is the PEM certificate for the token key
	CertFile string

	// TrustAnchorFile is the PEM bundle of peer CA certificates
	TrustAnchorFile string
}

// NewPKCS11Provider creates a new PKCS#11 provider
func NewPKCS11Provider(cfg *PKCS11ProviderConfig) (*PKCS11Provider, error) {
	ctx, err := crypto11.Configure(&crypto11.Config{
		Path:       cfg.ModulePath,
		TokenLabel: cfg.SlotLabel,
		Pin:        cfg.PIN,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring PKCS#11: %w", err)
	}

	anchors := x509.NewCertPool()
	if cfg.TrustAnchorFile != "" {
		pool, err := LoadTrustAnchors(cfg.TrustAnchorFile)
		if err != nil {
			ctx.Close()
			return nil, err
		}
		anchors = pool
	}

	return &PKCS11Provider{
		ctx:      ctx,
		keyLabel: cfg.KeyLabel,
		certFile: cfg.CertFile,
		anchors:  anchors,
	}, nil
}

// Identity locates the token key pair by label, caching it after the first call
func (p *PKCS11Provider) Identity(ctx context.Context) (*Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.identity != nil {
		return p.identity, nil
	}

	key, err := p.ctx.FindKeyPair(nil, []byte(p.keyLabel))
	if err != nil {
		return nil, fmt.Errorf("finding key pair: %w", err)
	}
	if key == nil {
		return nil, ErrKeyNotFound
	}

	cert, err := loadCertificate(p.certFile)
	if err != nil {
		return nil, fmt.Errorf("loading certificate: %w", err)
	}

	identity := &Identity{
		Signer:      key,
		Certificate: cert,
	}
	// crypto11 RSA key pairs implement SignerDecrypter.
	if decrypter, ok := key.(crypto11.SignerDecrypter); ok {
		identity.Decrypter = decrypter
	}

	p.identity = identity
	return identity, nil
}

// TrustAnchors returns the peer CA pool
func (p *PKCS11Provider) TrustAnchors() *x509.CertPool {
	return p.anchors
}

// Close releases the PKCS#11 session
func (p *PKCS11Provider) Close() error {
	return p.ctx.Close()
}

// Package keystore provides the file-based provider implementation
package keystore

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"sync"
)

// FileProvider implements Provider using PEM files on disk
//
// This is intended for development and testing only. In production,
// use PKCS#11 key storage.
type FileProvider struct {
	certFile string
	keyFile  string
	anchors  *x509.CertPool

	mu       sync.Mutex
	identity *Identity
}

// NewFileProvider creates a file-based provider. The trust anchor file is
// a PEM bundle of CA certificates accepted for peer signatures; it may be
// empty only when the gateway never verifies inbound signatures.
func NewFileProvider(certFile, keyFile, trustAnchorFile string) (*FileProvider, error) {
	anchors := x509.NewCertPool()
	if trustAnchorFile != "" {
		pool, err := LoadTrustAnchors(trustAnchorFile)
		if err != nil {
			return nil, err
		}
		anchors = pool
	}

	return &FileProvider{
		certFile: certFile,
		keyFile:  keyFile,
		anchors:  anchors,
	}, nil
}

// Identity loads the gateway key pair, caching it after the first call
func (p *FileProvider) Identity(ctx context.Context) (*Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.identity != nil {
		return p.identity, nil
	}

	identity, err := p.load()
	if err != nil {
		return nil, err
	}

	p.identity = identity
	return identity, nil
}

// TrustAnchors returns the peer CA pool
func (p *FileProvider) TrustAnchors() *x509.CertPool {
	return p.anchors
}

// Close drops the cached identity
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identity = nil
	return nil
}

func (p *FileProvider) load() (*Identity, error) {
	keyPEM, err := os.ReadFile(p.keyFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	cert, err := loadCertificate(p.certFile)
	if err != nil {
		return nil, fmt.Errorf("loading certificate: %w", err)
	}

	identity := &Identity{
		Signer:      key,
		Certificate: cert,
	}
	if decrypter, ok := key.(crypto.Decrypter); ok {
		identity.Decrypter = decrypter
	}
	return identity, nil
}

// LoadTrustAnchors reads a PEM bundle of CA certificates into a pool.
func LoadTrustAnchors(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trust anchor file: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no CA certificates found in %s", path)
	}
	return pool, nil
}

func parsePrivateKey(pemData []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		// Digikoppeling signing and encryption both require RSA.
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("unsupported key type %T, need RSA", key)
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
}

func loadCertificate(path string) (*x509.Certificate, error) {
	certPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading certificate file: %w", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	return x509.ParseCertificate(block.Bytes)
}

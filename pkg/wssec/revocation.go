package wssec

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/crypto/ocsp"
)

// ErrCertificateRevoked is returned when a counterparty certificate has
// been revoked by its issuer.
var ErrCertificateRevoked = errors.New("certificate has been revoked")

// RevocationChecker checks whether a counterparty certificate has been
// revoked. It runs after chain validation, so implementations may
// assume the certificate chains to a configured trust anchor.
type RevocationChecker interface {
	CheckRevocation(ctx context.Context, cert *x509.Certificate) error
}

// OCSPConfig configures OCSP checking behavior.
type OCSPConfig struct {
	// HTTPClient for OCSP requests (optional).
	HTTPClient *http.Client
	// Timeout for OCSP requests.
	Timeout time.Duration
	// CacheTimeout for caching OCSP responses.
	CacheTimeout time.Duration
	// StrictMode fails when revocation status cannot be determined.
	StrictMode bool
}

// DefaultOCSPConfig returns default configuration.
func DefaultOCSPConfig() *OCSPConfig {
	return &OCSPConfig{
		Timeout:      10 * time.Second,
		CacheTimeout: 1 * time.Hour,
		StrictMode:   false,
	}
}

// OCSPChecker implements RevocationChecker against the OCSP responder
// named in the certificate. Issuer certificates are matched by subject
// from the configured issuer list.
type OCSPChecker struct {
	config     *OCSPConfig
	issuers    []*x509.Certificate
	httpClient *http.Client
	cache      *ocspCache
}

// NewOCSPChecker creates an OCSP-based revocation checker. issuers are
// the CA certificates counterparty certificates are issued under,
// normally the configured trust anchors.
func NewOCSPChecker(issuers []*x509.Certificate, config *OCSPConfig) *OCSPChecker {
	if config == nil {
		config = DefaultOCSPConfig()
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &OCSPChecker{
		config:     config,
		issuers:    issuers,
		httpClient: client,
		cache:      newOCSPCache(config.CacheTimeout),
	}
}

// CheckRevocation checks certificate revocation status via OCSP.
func (c *OCSPChecker) CheckRevocation(ctx context.Context, cert *x509.Certificate) error {
	if cert == nil {
		return fmt.Errorf("certificate is nil")
	}

	err := c.checkOCSP(ctx, cert)
	if err == nil || errors.Is(err, ErrCertificateRevoked) {
		return err
	}
	if c.config.StrictMode {
		return fmt.Errorf("OCSP check failed: %w", err)
	}
	// Status undeterminable and not strict: treat as not revoked.
	return nil
}

func (c *OCSPChecker) checkOCSP(ctx context.Context, cert *x509.Certificate) error {
	if cached, ok := c.cache.get(cert.SerialNumber.String()); ok {
		return cached
	}

	issuer := c.issuerFor(cert)
	if issuer == nil {
		return fmt.Errorf("no issuer certificate for %q", cert.Subject.CommonName)
	}
	if len(cert.OCSPServer) == 0 {
		return fmt.Errorf("no OCSP server URL in certificate")
	}

	request, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		return fmt.Errorf("failed to create OCSP request: %w", err)
	}

	raw, err := c.doOCSPRequest(ctx, cert.OCSPServer[0], request)
	if err != nil {
		return fmt.Errorf("OCSP request failed: %w", err)
	}

	resp, err := ocsp.ParseResponse(raw, issuer)
	if err != nil {
		return fmt.Errorf("failed to parse OCSP response: %w", err)
	}

	var result error
	switch resp.Status {
	case ocsp.Good:
		result = nil
	case ocsp.Revoked:
		result = ErrCertificateRevoked
	default:
		result = fmt.Errorf("OCSP status unknown")
	}

	c.cache.set(cert.SerialNumber.String(), result)
	return result
}

func (c *OCSPChecker) issuerFor(cert *x509.Certificate) *x509.Certificate {
	for _, issuer := range c.issuers {
		if bytes.Equal(cert.RawIssuer, issuer.RawSubject) {
			return issuer
		}
	}
	return nil
}

// doOCSPRequest performs the HTTP request to the OCSP server, POST
// first with a GET fallback.
func (c *OCSPChecker) doOCSPRequest(ctx context.Context, ocspURL string, request []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ocspURL, bytes.NewReader(request))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")
	httpReq.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.doOCSPGET(ctx, ocspURL, request)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.doOCSPGET(ctx, ocspURL, request)
	}
	return io.ReadAll(resp.Body)
}

func (c *OCSPChecker) doOCSPGET(ctx context.Context, ocspURL string, request []byte) ([]byte, error) {
	encoded := base64.StdEncoding.EncodeToString(request)
	reqURL := ocspURL + "/" + url.PathEscape(encoded)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCSP server returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ocspCache provides thread-safe caching of OCSP results.
type ocspCache struct {
	mu      sync.RWMutex
	cache   map[string]*ocspEntry
	timeout time.Duration
}

type ocspEntry struct {
	err       error
	checkedAt time.Time
}

func newOCSPCache(timeout time.Duration) *ocspCache {
	return &ocspCache{
		cache:   make(map[string]*ocspEntry),
		timeout: timeout,
	}
}

func (c *ocspCache) get(serial string) (error, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[serial]
	if !ok {
		return nil, false
	}
	if time.Since(entry.checkedAt) > c.timeout {
		return nil, false
	}
	return entry.err, true
}

func (c *ocspCache) set(serial string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[serial] = &ocspEntry{err: err, checkedAt: time.Now()}
}

package wssec

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
)

// Algorithm URIs for XML signature and encryption.
const (
	AlgorithmRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgorithmSHA256    = "http://www.w3.org/2001/04/xmlenc#sha256"
	AlgorithmC14N      = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgorithmAES128GCM = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	AlgorithmRSAOAEP   = "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
)

// WS-Security namespaces. The secext and utility vocabularies were
// specified against SOAP 1.2 but attach unchanged under the legacy
// envelope; only the mustUnderstand attribute follows the carrier
// version.
const (
	NsSecExt  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NsSecUtil = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	NsXMLDSig = "http://www.w3.org/2000/09/xmldsig#"
	NsXMLEnc  = "http://www.w3.org/2001/04/xmlenc#"
)

// Token profile URIs.
const (
	encodingBase64 = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary"
	valueTypeX509  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-x509-token-profile-1.0#X509v3"
	typeContent    = "http://www.w3.org/2001/04/xmlenc#Content"
)

// Defaults applied when the SecurityContext leaves them zero.
const (
	DefaultTimestampTTL = 5 * time.Minute
	DefaultClockSkew    = 30 * time.Second
)

// SecurityContext carries the key material and trust configuration for
// one exchange. It is borrowed by Protect/Unprotect, never retained,
// and never serialized into faults or logs.
type SecurityContext struct {
	// Signer and SignerCert identify the local signing key. Signer is
	// an interface so PKCS#11-held keys work without exposing key bytes.
	Signer     crypto.Signer
	SignerCert *x509.Certificate

	// RecipientCert is the encryption target for outbound SIGNED_ENCRYPTED
	// exchanges; Decrypter is the local key for inbound ones.
	RecipientCert *x509.Certificate
	Decrypter     crypto.Decrypter

	// TrustAnchors is the pool counterpart certificates must chain to.
	TrustAnchors *x509.CertPool

	// Revocation, when set, is consulted after chain validation.
	Revocation RevocationChecker

	// Clock drives timestamp creation and validation. Nil means wall
	// clock.
	Clock clock.Clock

	// Skew is the tolerance applied on both edges of the timestamp
	// window; TimestampTTL is the outbound Created→Expires span.
	Skew         time.Duration
	TimestampTTL time.Duration
}

func (sc *SecurityContext) clock() clock.Clock {
	if sc.Clock != nil {
		return sc.Clock
	}
	return clock.New()
}

func (sc *SecurityContext) skew() time.Duration {
	if sc.Skew > 0 {
		return sc.Skew
	}
	return DefaultClockSkew
}

func (sc *SecurityContext) timestampTTL() time.Duration {
	if sc.TimestampTTL > 0 {
		return sc.TimestampTTL
	}
	return DefaultTimestampTTL
}

// generateID generates a random ID for XML elements using hex encoding
// to avoid characters that are awkward in shorthand XPointers.
func generateID() string {
	b := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		// The platform entropy source is broken; signing with a
		// predictable part id is not an option.
		panic(fmt.Sprintf("wssec: reading entropy: %v", err))
	}
	return hex.EncodeToString(b)
}

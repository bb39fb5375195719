package wssec

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"strings"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml"

	"github.com/grauwen/digikoppeling-wus-cxf/pkg/envelope"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
)

// verifySignature validates the ds:Signature in the Security header.
//
// The counterparty certificate is chained to the trust anchors before
// any digest is recomputed: a message from an untrusted signer is
// rejected as untrusted even when its digests happen to match. After
// trust is established, every reference digest is recomputed, every
// profile-mandated part is checked for signature coverage, and the
// SignedInfo signature itself is verified.
func verifySignature(ctx context.Context, doc *etree.Document, parts []envelope.PartReference, security *etree.Element, sc *SecurityContext) error {
	sig := childNS(security, NsXMLDSig, "Signature")
	if sig == nil {
		return fault.New(fault.SignatureInvalid, "no signature in security header")
	}

	cert, err := signerCertificate(security)
	if err != nil {
		return err
	}

	if _, err := cert.Verify(x509.VerifyOptions{
		Roots:       sc.TrustAnchors,
		CurrentTime: sc.clock().Now(),
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); err != nil {
		return fault.Wrap(fault.UntrustedCertificate, err, "signer certificate does not chain to a trust anchor")
	}
	if sc.Revocation != nil {
		if err := sc.Revocation.CheckRevocation(ctx, cert); err != nil {
			return fault.Wrap(fault.UntrustedCertificate, err, "signer certificate revocation check failed")
		}
	}

	signedInfo := childNS(sig, NsXMLDSig, "SignedInfo")
	if signedInfo == nil {
		return fault.New(fault.SignatureInvalid, "signature has no SignedInfo")
	}
	if alg := algorithmOf(childNS(signedInfo, NsXMLDSig, "CanonicalizationMethod")); alg != AlgorithmC14N {
		return fault.New(fault.SignatureInvalid, "unsupported canonicalization %q", alg)
	}
	if alg := algorithmOf(childNS(signedInfo, NsXMLDSig, "SignatureMethod")); alg != AlgorithmRSASHA256 {
		return fault.New(fault.SignatureInvalid, "unsupported signature method %q", alg)
	}

	canonicalizer := signedxml.ExclusiveCanonicalization{WithComments: false}

	covered := make(map[string]bool)
	for _, ref := range signedInfo.ChildElements() {
		if ref.Tag != "Reference" || ref.NamespaceURI() != NsXMLDSig {
			continue
		}
		uri := ref.SelectAttrValue("URI", "")
		if !strings.HasPrefix(uri, "#") {
			return fault.New(fault.SignatureInvalid, "unsupported reference URI %q", uri)
		}
		id := strings.TrimPrefix(uri, "#")

		elem, err := findByWSUID(doc, id)
		if err != nil {
			return err
		}
		if alg := algorithmOf(childNS(ref, NsXMLDSig, "DigestMethod")); alg != AlgorithmSHA256 {
			return fault.New(fault.SignatureInvalid, "unsupported digest method %q", alg)
		}

		canonical, err := canonicalizer.ProcessElement(elem, "")
		if err != nil {
			return fault.Wrap(fault.SignatureInvalid, err, "failed to canonicalize referenced element")
		}
		digest := sha256.Sum256([]byte(canonical))

		want := ""
		if dv := childNS(ref, NsXMLDSig, "DigestValue"); dv != nil {
			want = dv.Text()
		}
		if base64.StdEncoding.EncodeToString(digest[:]) != want {
			return fault.New(fault.SignatureInvalid, "digest mismatch for %q", uri)
		}
		covered[id] = true
	}

	// Every part the profile mandates must actually be covered. A valid
	// signature over fewer parts is still a rejection.
	for _, part := range parts {
		elem, err := resolvePart(doc, part)
		if err != nil {
			return err
		}
		id := wsuID(elem)
		if id == "" || !covered[id] {
			return fault.New(fault.SignatureInvalid, "mandatory part not covered by signature").WithQName(part.Name.String())
		}
	}

	canonicalSignedInfo, err := canonicalizer.ProcessElement(signedInfo, "")
	if err != nil {
		return fault.Wrap(fault.SignatureInvalid, err, "failed to canonicalize SignedInfo")
	}
	digest := sha256.Sum256([]byte(canonicalSignedInfo))

	sigValue := childNS(sig, NsXMLDSig, "SignatureValue")
	if sigValue == nil {
		return fault.New(fault.SignatureInvalid, "signature has no SignatureValue")
	}
	sigBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sigValue.Text()))
	if err != nil {
		return fault.Wrap(fault.SignatureInvalid, err, "undecodable SignatureValue")
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fault.New(fault.SignatureInvalid, "signer certificate does not carry an RSA key")
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sigBytes); err != nil {
		return fault.Wrap(fault.SignatureInvalid, err, "signature verification failed")
	}
	return nil
}

// signerCertificate extracts the certificate from the
// BinarySecurityToken in the Security header.
func signerCertificate(security *etree.Element) (*x509.Certificate, error) {
	bst := childNS(security, NsSecExt, "BinarySecurityToken")
	if bst == nil {
		return nil, fault.New(fault.SignatureInvalid, "no binary security token")
	}
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(bst.Text()))
	if err != nil {
		return nil, fault.Wrap(fault.SignatureInvalid, err, "undecodable binary security token")
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fault.Wrap(fault.SignatureInvalid, err, "unparsable signer certificate")
	}
	return cert, nil
}

func algorithmOf(elem *etree.Element) string {
	if elem == nil {
		return ""
	}
	return elem.SelectAttrValue("Algorithm", "")
}

package wssec

import (
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml"

	"github.com/grauwen/digikoppeling-wus-cxf/pkg/envelope"
)

// sign builds a ds:Signature over the profile's signed parts and adds
// it, together with a BinarySecurityToken carrying the signing
// certificate, to the Security header.
//
// The signature is detached-style WSS: each part gets a wsu:Id, its
// exclusive canonical form is digested, and SignedInfo collects one
// reference per part before being canonicalized and signed with
// RSA-SHA256. Digests are computed from the document as it stands now,
// so signing must run before encryption.
func sign(doc *etree.Document, parts []envelope.PartReference, security *etree.Element, sc *SecurityContext) error {
	if sc.Signer == nil || sc.SignerCert == nil {
		return fmt.Errorf("signing requires a signer key and certificate")
	}

	bstID := "X509-" + generateID()
	bst := etree.NewElement("wsse:BinarySecurityToken")
	bst.CreateAttr("wsu:Id", bstID)
	bst.CreateAttr("EncodingType", encodingBase64)
	bst.CreateAttr("ValueType", valueTypeX509)
	bst.SetText(base64.StdEncoding.EncodeToString(sc.SignerCert.Raw))
	security.InsertChildAt(0, bst)

	sig := etree.NewElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", NsXMLDSig)

	signedInfo := sig.CreateElement("ds:SignedInfo")
	// Exclusive C14N only keeps namespace declarations visible on the
	// subtree, so declare ds here even though the parent declares it.
	signedInfo.CreateAttr("xmlns:ds", NsXMLDSig)

	c14nMethod := signedInfo.CreateElement("ds:CanonicalizationMethod")
	c14nMethod.CreateAttr("Algorithm", AlgorithmC14N)
	sigMethod := signedInfo.CreateElement("ds:SignatureMethod")
	sigMethod.CreateAttr("Algorithm", AlgorithmRSASHA256)

	canonicalizer := signedxml.ExclusiveCanonicalization{WithComments: false}

	for _, part := range parts {
		elem, err := resolvePart(doc, part)
		if err != nil {
			return err
		}
		id := ensureWSUID(elem)

		canonical, err := canonicalizer.ProcessElement(elem, "")
		if err != nil {
			return fmt.Errorf("failed to canonicalize %s: %w", part.Name, err)
		}
		digest := sha256.Sum256([]byte(canonical))

		ref := signedInfo.CreateElement("ds:Reference")
		ref.CreateAttr("URI", "#"+id)
		transforms := ref.CreateElement("ds:Transforms")
		transform := transforms.CreateElement("ds:Transform")
		transform.CreateAttr("Algorithm", AlgorithmC14N)
		digestMethod := ref.CreateElement("ds:DigestMethod")
		digestMethod.CreateAttr("Algorithm", AlgorithmSHA256)
		digestValue := ref.CreateElement("ds:DigestValue")
		digestValue.SetText(base64.StdEncoding.EncodeToString(digest[:]))
	}

	canonicalSignedInfo, err := canonicalizer.ProcessElement(signedInfo, "")
	if err != nil {
		return fmt.Errorf("failed to canonicalize SignedInfo: %w", err)
	}
	digest := sha256.Sum256([]byte(canonicalSignedInfo))

	signature, err := sc.Signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}
	sig.CreateElement("ds:SignatureValue").SetText(base64.StdEncoding.EncodeToString(signature))

	keyInfo := sig.CreateElement("ds:KeyInfo")
	tokenRef := keyInfo.CreateElement("wsse:SecurityTokenReference")
	ref := tokenRef.CreateElement("wsse:Reference")
	ref.CreateAttr("URI", "#"+bstID)
	ref.CreateAttr("ValueType", valueTypeX509)

	security.AddChild(sig)
	return nil
}

package wssec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/grauwen/digikoppeling-wus-cxf/pkg/envelope"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
)

// encryptBody replaces the body content with an xenc:EncryptedData and
// adds the RSA-OAEP wrapped content key to the Security header.
//
// Only the content of the body is encrypted (Content mode): the body
// element itself, its wsu:Id, and every admitted header stay legible so
// routing and correlation work on the protected message. The GCM nonce
// is prepended to the ciphertext inside the CipherValue.
func encryptBody(doc *etree.Document, version envelope.Version, security *etree.Element, sc *SecurityContext) error {
	if sc.RecipientCert == nil {
		return fmt.Errorf("encryption requires a recipient certificate")
	}
	pub, ok := sc.RecipientCert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("recipient certificate does not carry an RSA key")
	}

	body := childNS(doc.Root(), version.Namespace(), "Body")
	if body == nil {
		return fault.New(fault.UnresolvedPartReference, "envelope has no body")
	}

	content, err := serializeContent(body)
	if err != nil {
		return fmt.Errorf("failed to serialize body content: %w", err)
	}

	cek := make([]byte, 16) // AES-128
	if _, err := rand.Read(cek); err != nil {
		return fmt.Errorf("failed to generate content key: %w", err)
	}
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, cek, nil)
	if err != nil {
		return fmt.Errorf("failed to wrap content key: %w", err)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(content), nil)

	edID := "ED-" + generateID()
	ekID := "EK-" + generateID()

	encKey := etree.NewElement("xenc:EncryptedKey")
	encKey.CreateAttr("xmlns:xenc", NsXMLEnc)
	encKey.CreateAttr("Id", ekID)
	encMethod := encKey.CreateElement("xenc:EncryptionMethod")
	encMethod.CreateAttr("Algorithm", AlgorithmRSAOAEP)
	oaepDigest := encMethod.CreateElement("ds:DigestMethod")
	oaepDigest.CreateAttr("xmlns:ds", NsXMLDSig)
	oaepDigest.CreateAttr("Algorithm", AlgorithmSHA256)

	keyInfo := encKey.CreateElement("ds:KeyInfo")
	keyInfo.CreateAttr("xmlns:ds", NsXMLDSig)
	x509Data := keyInfo.CreateElement("ds:X509Data")
	issuerSerial := x509Data.CreateElement("ds:X509IssuerSerial")
	issuerSerial.CreateElement("ds:X509IssuerName").SetText(sc.RecipientCert.Issuer.String())
	issuerSerial.CreateElement("ds:X509SerialNumber").SetText(sc.RecipientCert.SerialNumber.String())

	cipherData := encKey.CreateElement("xenc:CipherData")
	cipherData.CreateElement("xenc:CipherValue").SetText(base64.StdEncoding.EncodeToString(wrapped))

	refList := encKey.CreateElement("xenc:ReferenceList")
	dataRef := refList.CreateElement("xenc:DataReference")
	dataRef.CreateAttr("URI", "#"+edID)

	security.AddChild(encKey)

	body.Child = nil
	ed := body.CreateElement("xenc:EncryptedData")
	ed.CreateAttr("xmlns:xenc", NsXMLEnc)
	ed.CreateAttr("Id", edID)
	ed.CreateAttr("Type", typeContent)
	edMethod := ed.CreateElement("xenc:EncryptionMethod")
	edMethod.CreateAttr("Algorithm", AlgorithmAES128GCM)
	edCipherData := ed.CreateElement("xenc:CipherData")
	edCipherData.CreateElement("xenc:CipherValue").SetText(base64.StdEncoding.EncodeToString(ciphertext))

	return nil
}

// serializeContent writes an element's content (children and text, not
// the element itself) to compact XML.
func serializeContent(elem *etree.Element) (string, error) {
	tmp := etree.NewDocument()
	tmp.SetRoot(elem.Copy())
	tmp.WriteSettings.CanonicalEndTags = true
	s, err := tmp.WriteToString()
	if err != nil {
		return "", err
	}
	start := strings.Index(s, ">")
	end := strings.LastIndex(s, "<")
	if start < 0 || end <= start {
		return "", fmt.Errorf("malformed serialized element")
	}
	return s[start+1 : end], nil
}

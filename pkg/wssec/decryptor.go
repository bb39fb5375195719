package wssec

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/grauwen/digikoppeling-wus-cxf/pkg/envelope"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
)

// decryptBody unwraps the content key from the Security header,
// decrypts the xenc:EncryptedData in the body and restores the
// plaintext content in place. Every failure surfaces as
// DecryptionFailed and nothing decrypted so far is retained.
func decryptBody(doc *etree.Document, version envelope.Version, security *etree.Element, sc *SecurityContext) error {
	if sc.Decrypter == nil {
		return fmt.Errorf("decryption requires a decryption key")
	}

	encKey := childNS(security, NsXMLEnc, "EncryptedKey")
	if encKey == nil {
		return fault.New(fault.DecryptionFailed, "no encrypted key in security header")
	}
	wrapped, err := cipherValue(encKey)
	if err != nil {
		return err
	}

	cek, err := sc.Decrypter.Decrypt(rand.Reader, wrapped, &rsa.OAEPOptions{Hash: crypto.SHA256})
	if err != nil {
		return fault.Wrap(fault.DecryptionFailed, err, "failed to unwrap content key")
	}

	body := childNS(doc.Root(), version.Namespace(), "Body")
	if body == nil {
		return fault.New(fault.DecryptionFailed, "envelope has no body")
	}
	ed := childNS(body, NsXMLEnc, "EncryptedData")
	if ed == nil {
		return fault.New(fault.DecryptionFailed, "no encrypted data in body")
	}
	ciphertext, err := cipherValue(ed)
	if err != nil {
		return err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return fault.Wrap(fault.DecryptionFailed, err, "unusable content key")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fault.Wrap(fault.DecryptionFailed, err, "failed to create GCM")
	}
	if len(ciphertext) < gcm.NonceSize() {
		return fault.New(fault.DecryptionFailed, "ciphertext shorter than nonce")
	}
	plaintext, err := gcm.Open(nil, ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():], nil)
	if err != nil {
		return fault.Wrap(fault.DecryptionFailed, err, "content decryption failed")
	}

	tmp := etree.NewDocument()
	if err := tmp.ReadFromString("<restored>" + string(plaintext) + "</restored>"); err != nil {
		return fault.Wrap(fault.DecryptionFailed, err, "decrypted content is not well-formed")
	}

	body.Child = nil
	children := append([]etree.Token(nil), tmp.Root().Child...)
	for _, tok := range children {
		body.AddChild(tok)
	}
	security.RemoveChild(encKey)
	return nil
}

func cipherValue(parent *etree.Element) ([]byte, error) {
	cd := childNS(parent, NsXMLEnc, "CipherData")
	cv := childNS(cd, NsXMLEnc, "CipherValue")
	if cv == nil {
		return nil, fault.New(fault.DecryptionFailed, "missing CipherValue")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cv.Text()))
	if err != nil {
		return nil, fault.Wrap(fault.DecryptionFailed, err, "undecodable CipherValue")
	}
	return raw, nil
}

package wssec

import (
	"context"
	"fmt"

	"github.com/grauwen/digikoppeling-wus-cxf/pkg/envelope"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/profile"
)

// Protect applies the profile's security steps, in the profile's
// order, to a classified envelope and returns the protected wire form.
// The envelope itself is never mutated; a transport-only profile
// returns the raw form unchanged.
func Protect(env *envelope.Envelope, desc *profile.Descriptor, sc *SecurityContext) ([]byte, error) {
	if len(desc.Steps) == 0 {
		return env.Raw(), nil
	}
	if sc == nil {
		return nil, fmt.Errorf("security context is required for profile %s", desc.ID)
	}

	doc := env.CopyDoc()
	root := doc.Root()
	ensureSecurityNamespaces(root)
	header := headerElement(root, env.Version, true)
	security := securityElement(header, env.Version, true)

	for _, step := range desc.Steps {
		var err error
		switch step {
		case profile.StepTimestamp:
			addTimestamp(security, sc)
		case profile.StepSign:
			err = sign(doc, desc.SignedParts, security, sc)
		case profile.StepEncrypt:
			err = encryptBody(doc, env.Version, security, sc)
		default:
			err = fmt.Errorf("unknown security step %v", step)
		}
		if err != nil {
			return nil, err
		}
	}

	return envelope.SerializeDoc(doc)
}

// Unprotect reverses the profile's security steps on a received
// envelope: decrypt first so the signed plaintext is restored, then
// validate the timestamp window, then verify trust and signature.
// It returns the restored wire form; the received envelope is never
// mutated and no partially decrypted tree ever escapes.
func Unprotect(ctx context.Context, env *envelope.Envelope, desc *profile.Descriptor, sc *SecurityContext) ([]byte, error) {
	if len(desc.Steps) == 0 {
		return env.Raw(), nil
	}
	if sc == nil {
		return nil, fmt.Errorf("security context is required for profile %s", desc.ID)
	}

	doc := env.CopyDoc()
	root := doc.Root()
	header := headerElement(root, env.Version, false)
	security := securityElement(header, env.Version, false)
	if security == nil {
		return nil, fault.New(fault.MissingRequiredHeader, "profile requires a security header").
			WithQName(envelope.QName{Space: NsSecExt, Local: "Security"}.String())
	}

	if desc.HasStep(profile.StepEncrypt) {
		if err := decryptBody(doc, env.Version, security, sc); err != nil {
			return nil, err
		}
	}
	if desc.HasStep(profile.StepTimestamp) {
		if err := verifyTimestamp(security, sc); err != nil {
			return nil, err
		}
	}
	if desc.HasStep(profile.StepSign) {
		if err := verifySignature(ctx, doc, desc.SignedParts, security, sc); err != nil {
			return nil, err
		}
	}

	return envelope.SerializeDoc(doc)
}

// Package profile implements the static registry of Digikoppeling WUS
// compliance profiles. A profile descriptor bundles the mandated base
// envelope version, the foreign namespaces permitted in that envelope,
// the required addressing headers, the ordered security processing
// steps, and the parts covered by the signature.
//
// The registry is a closed table: three entries, built once, never
// mutated. Runtime "disable validation" toggles are deliberately absent;
// what a profile permits is auditable from this file alone.
package profile

import (
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/addressing"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/envelope"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
)

// ID identifies a Digikoppeling WUS profile variant.
type ID string

const (
	// TransportOnly relies on mutual TLS alone (best effort).
	TransportOnly ID = "Digikoppeling 2W-be"
	// Signed adds WS-Security message signing.
	Signed ID = "Digikoppeling 2W-be-S"
	// SignedEncrypted adds body encryption on top of signing.
	SignedEncrypted ID = "Digikoppeling 2W-be-SE"
)

// Step is one security processing step. Outbound processing always
// applies steps in the canonical order Timestamp, Sign, Encrypt;
// inbound processing reverses into Decrypt, VerifyTimestamp,
// VerifySignature.
type Step int

const (
	StepTimestamp Step = iota
	StepSign
	StepEncrypt
)

func (s Step) String() string {
	switch s {
	case StepTimestamp:
		return "timestamp"
	case StepSign:
		return "sign"
	case StepEncrypt:
		return "encrypt"
	default:
		return "unknown"
	}
}

// Security vocabulary namespaces permitted in the signed profiles.
// These duplicate the constants in pkg/wssec on purpose: the permitted
// sets below are meant to be readable as a self-contained table.
const (
	nsWSSE = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	nsWSU  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	nsDS   = "http://www.w3.org/2000/09/xmldsig#"
	nsXENC = "http://www.w3.org/2001/04/xmlenc#"
)

// Descriptor describes one profile. Descriptors are shared and must be
// treated as read-only.
type Descriptor struct {
	ID          ID
	BaseVersion envelope.Version

	// PermittedForeignNamespaces lists the namespaces, beyond the
	// envelope's native one, whose headers are admissible.
	PermittedForeignNamespaces []string

	// RequiredHeaders must each be present exactly once.
	RequiredHeaders []envelope.QName

	// Steps are the security steps the profile requires, in canonical
	// outbound order.
	Steps []Step

	// SignedParts are the references covered by the signature: the
	// body, the mandatory addressing headers, and the timestamp.
	SignedParts []envelope.PartReference
}

// Permits reports whether a foreign namespace is admissible.
func (d *Descriptor) Permits(ns string) bool {
	for _, p := range d.PermittedForeignNamespaces {
		if p == ns {
			return true
		}
	}
	return false
}

// HasStep reports whether the profile requires a step.
func (d *Descriptor) HasStep(step Step) bool {
	for _, s := range d.Steps {
		if s == step {
			return true
		}
	}
	return false
}

// Registry is the process-wide profile table. It is initialized once
// and read-only thereafter, so lookups need no locking.
type Registry struct {
	profiles map[ID]*Descriptor
}

// NewRegistry builds the fixed three-profile table.
func NewRegistry() *Registry {
	requiredAddressing := []envelope.QName{
		addressing.QTo,
		addressing.QAction,
		addressing.QMessageID,
		addressing.QReplyTo,
	}

	signedParts := []envelope.PartReference{
		{Name: envelope.QName{Space: envelope.NsSOAP11, Local: "Body"}},
		{Name: addressing.QTo},
		{Name: addressing.QAction},
		{Name: addressing.QMessageID},
		{Name: addressing.QReplyTo},
		{Name: envelope.QName{Space: nsWSU, Local: "Timestamp"}},
	}

	securityNamespaces := []string{addressing.Namespace, nsWSSE, nsWSU, nsDS}

	return &Registry{profiles: map[ID]*Descriptor{
		TransportOnly: {
			ID:          TransportOnly,
			BaseVersion: envelope.VersionLegacy,
			// 2W-be admits addressing only: a security element under
			// this profile is extraneous and fails admission.
			PermittedForeignNamespaces: []string{addressing.Namespace},
			RequiredHeaders:            requiredAddressing,
			Steps:                      nil,
		},
		Signed: {
			ID:                         Signed,
			BaseVersion:                envelope.VersionLegacy,
			PermittedForeignNamespaces: securityNamespaces,
			RequiredHeaders:            requiredAddressing,
			Steps:                      []Step{StepTimestamp, StepSign},
			SignedParts:                signedParts,
		},
		SignedEncrypted: {
			ID:                         SignedEncrypted,
			BaseVersion:                envelope.VersionLegacy,
			PermittedForeignNamespaces: append(securityNamespaces[:len(securityNamespaces):len(securityNamespaces)], nsXENC),
			RequiredHeaders:            requiredAddressing,
			Steps:                      []Step{StepTimestamp, StepSign, StepEncrypt},
			SignedParts:                signedParts,
		},
	}}
}

// Lookup returns the descriptor for a profile identifier.
func (r *Registry) Lookup(id ID) (*Descriptor, error) {
	desc, ok := r.profiles[id]
	if !ok {
		return nil, fault.New(fault.UnknownProfile, "profile %q is not registered", id)
	}
	return desc, nil
}

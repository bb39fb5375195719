// Package policy implements hybrid header admission: deciding, per
// header, whether a foreign-namespace element is nonetheless admissible
// under the active compliance profile.
package policy

import (
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/envelope"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/profile"
)

// Admit checks every header of a classified envelope against the
// profile and returns the admitted header list in document order.
//
// Order of checks matters: namespace admission runs over all headers
// first, so a disallowed-namespace fault is always reported in
// preference to a missing-required-header fault for the same slot.
func Admit(version envelope.Version, headers []envelope.Header, desc *profile.Descriptor) ([]envelope.Header, error) {
	if version != desc.BaseVersion {
		return nil, fault.New(fault.VersionMismatch, "envelope version %s, profile mandates %s", version, desc.BaseVersion)
	}

	native := version.Namespace()
	admitted := make([]envelope.Header, 0, len(headers))
	for _, h := range headers {
		if h.Name.Space == native {
			// Native-namespace headers are admitted unconditionally.
			admitted = append(admitted, h)
			continue
		}
		if !desc.Permits(h.Name.Space) {
			return nil, fault.New(fault.DisallowedNamespace, "namespace %q is not permitted by the profile", h.Name.Space).
				WithQName(h.Name.String())
		}
		admitted = append(admitted, h)
	}

	for _, required := range desc.RequiredHeaders {
		count := 0
		for _, h := range admitted {
			if h.Name == required {
				count++
			}
		}
		switch {
		case count == 0:
			return nil, fault.New(fault.MissingRequiredHeader, "required header is absent").
				WithQName(required.String())
		case count > 1:
			return nil, fault.New(fault.DuplicateHeader, "required header appears %d times", count).
				WithQName(required.String())
		}
	}

	return admitted, nil
}

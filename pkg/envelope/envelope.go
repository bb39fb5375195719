// Package envelope provides the hybrid SOAP envelope data model and the
// structural classifier that determines an envelope's declared version
// and enumerates its header elements in document order.
package envelope

import (
	"fmt"

	"github.com/beevik/etree"
)

// Envelope namespaces for the two mutually exclusive versions.
const (
	// NsSOAP11 is the legacy SOAP 1.1 envelope namespace mandated by the
	// Digikoppeling WUS profiles.
	NsSOAP11 = "http://schemas.xmlsoap.org/soap/envelope/"
	// NsSOAP12 is the current SOAP 1.2 envelope namespace.
	NsSOAP12 = "http://www.w3.org/2003/05/soap-envelope"
)

// Version is the declared envelope version, determined strictly by the
// root element's namespace.
type Version int

const (
	VersionUnknown Version = iota
	// VersionLegacy is SOAP 1.1.
	VersionLegacy
	// VersionCurrent is SOAP 1.2.
	VersionCurrent
)

// Namespace returns the native namespace for the version.
func (v Version) Namespace() string {
	switch v {
	case VersionLegacy:
		return NsSOAP11
	case VersionCurrent:
		return NsSOAP12
	default:
		return ""
	}
}

func (v Version) String() string {
	switch v {
	case VersionLegacy:
		return "SOAP 1.1"
	case VersionCurrent:
		return "SOAP 1.2"
	default:
		return "unknown"
	}
}

// QName is a qualified XML name.
type QName struct {
	Space string // namespace URI
	Local string
}

func (q QName) String() string {
	return fmt.Sprintf("{%s}%s", q.Space, q.Local)
}

// Header is one top-level header entry. Headers are immutable once
// parsed; the pipeline never rewrites an admitted header in place.
type Header struct {
	Name           QName
	MustUnderstand bool
	Element        *etree.Element
}

// PartReference identifies one element selected for signing or
// encryption, relative to a specific envelope instance. It must resolve
// to exactly one element or the security operation fails.
type PartReference struct {
	Name QName
	// ContentOnly selects the element's content rather than the element
	// with its descendants (XML-Encryption "Content" mode).
	ContentOnly bool
}

// Envelope is a parsed hybrid envelope. The parsed document and the raw
// byte form as received are both retained: digests are computed before
// any mutation, and failures never return a partially rewritten tree.
type Envelope struct {
	Version Version
	Headers []Header // document order

	doc *etree.Document
	raw []byte
}

// Raw returns the canonical byte form the envelope was classified from.
func (e *Envelope) Raw() []byte {
	return e.raw
}

// Doc returns the parsed document. Callers that mutate it must work on
// a copy; see [Envelope.CopyDoc].
func (e *Envelope) Doc() *etree.Document {
	return e.doc
}

// CopyDoc returns a deep copy of the parsed document for mutation.
func (e *Envelope) CopyDoc() *etree.Document {
	return e.doc.Copy()
}

// Body returns the envelope body element, or nil if absent.
func (e *Envelope) Body() *etree.Element {
	return findChildNS(e.doc.Root(), e.Version.Namespace(), "Body")
}

// HeaderElement returns the first header element with the given name,
// or nil.
func (e *Envelope) HeaderElement(name QName) *etree.Element {
	for _, h := range e.Headers {
		if h.Name == name {
			return h.Element
		}
	}
	return nil
}

// Serialize writes the parsed document back to compact XML. Compact
// output matters: indentation whitespace changes canonical forms.
func (e *Envelope) Serialize() ([]byte, error) {
	return SerializeDoc(e.doc)
}

// SerializeDoc writes a document to compact XML bytes.
func SerializeDoc(doc *etree.Document) ([]byte, error) {
	doc.WriteSettings.CanonicalEndTags = true
	b, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize envelope: %w", err)
	}
	return b, nil
}

// findChildNS finds a direct child by namespace URI and local name.
func findChildNS(parent *etree.Element, space, local string) *etree.Element {
	if parent == nil {
		return nil
	}
	for _, child := range parent.ChildElements() {
		if child.Tag == local && child.NamespaceURI() == space {
			return child
		}
	}
	return nil
}

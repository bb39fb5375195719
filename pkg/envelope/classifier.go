package envelope

import (
	"github.com/beevik/etree"

	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
)

// Classify parses raw envelope bytes far enough to determine the
// declared version and enumerate the header elements with their
// namespaces, preserved in document order. It performs no policy
// decisions; a disallowed header is still enumerated here and rejected
// later by admission.
func Classify(raw []byte) (*Envelope, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fault.Wrap(fault.UnrecognizedEnvelopeVersion, err, "envelope is not well-formed XML")
	}

	root := doc.Root()
	if root == nil {
		return nil, fault.New(fault.UnrecognizedEnvelopeVersion, "document has no root element")
	}
	if root.Tag != "Envelope" {
		return nil, fault.New(fault.UnrecognizedEnvelopeVersion, "root element is %q, expected Envelope", root.Tag).
			WithQName(QName{Space: root.NamespaceURI(), Local: root.Tag}.String())
	}

	var version Version
	switch root.NamespaceURI() {
	case NsSOAP11:
		version = VersionLegacy
	case NsSOAP12:
		version = VersionCurrent
	default:
		return nil, fault.New(fault.UnrecognizedEnvelopeVersion, "envelope namespace %q is not recognized", root.NamespaceURI()).
			WithQName(QName{Space: root.NamespaceURI(), Local: root.Tag}.String())
	}

	if findChildNS(root, version.Namespace(), "Body") == nil {
		return nil, fault.New(fault.UnrecognizedEnvelopeVersion, "envelope has no Body element")
	}

	env := &Envelope{
		Version: version,
		doc:     doc,
		raw:     raw,
	}

	if header := findChildNS(root, version.Namespace(), "Header"); header != nil {
		for _, child := range header.ChildElements() {
			env.Headers = append(env.Headers, Header{
				Name:           QName{Space: child.NamespaceURI(), Local: child.Tag},
				MustUnderstand: mustUnderstand(child, version),
				Element:        child,
			})
		}
	}

	return env, nil
}

// mustUnderstand reads the native mustUnderstand attribute. SOAP 1.1
// uses "1", SOAP 1.2 uses "true"; both spellings are accepted for
// either version since deployed stacks mix them.
func mustUnderstand(el *etree.Element, version Version) bool {
	for _, attr := range el.Attr {
		if attr.Key != "mustUnderstand" {
			continue
		}
		if attr.NamespaceURI() != version.Namespace() {
			continue
		}
		return attr.Value == "1" || attr.Value == "true"
	}
	return false
}

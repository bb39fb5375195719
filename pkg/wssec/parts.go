package wssec

import (
	"github.com/beevik/etree"

	"github.com/grauwen/digikoppeling-wus-cxf/pkg/envelope"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
)

// resolvePart resolves a part reference against the whole document. A
// reference must match exactly one element; zero or several matches
// make the selection ambiguous and the security operation fails rather
// than guessing.
func resolvePart(doc *etree.Document, part envelope.PartReference) (*etree.Element, error) {
	matches := collectByName(doc.Root(), part.Name, nil)
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, fault.New(fault.UnresolvedPartReference,
			"part reference matched no element").WithQName(part.Name.String())
	default:
		return nil, fault.New(fault.UnresolvedPartReference,
			"part reference matched %d elements", len(matches)).WithQName(part.Name.String())
	}
}

func collectByName(elem *etree.Element, name envelope.QName, acc []*etree.Element) []*etree.Element {
	if elem == nil {
		return acc
	}
	if elem.Tag == name.Local && elem.NamespaceURI() == name.Space {
		acc = append(acc, elem)
	}
	for _, child := range elem.ChildElements() {
		acc = collectByName(child, name, acc)
	}
	return acc
}

// findByWSUID finds the element carrying the given wsu:Id. Several
// elements claiming the same id make every reference to it ambiguous.
func findByWSUID(doc *etree.Document, id string) (*etree.Element, error) {
	matches := collectByWSUID(doc.Root(), id, nil)
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, fault.New(fault.UnresolvedPartReference,
			"no element with wsu:Id %q", id)
	default:
		return nil, fault.New(fault.UnresolvedPartReference,
			"%d elements share wsu:Id %q", len(matches), id)
	}
}

func collectByWSUID(elem *etree.Element, id string, acc []*etree.Element) []*etree.Element {
	if elem == nil {
		return acc
	}
	if wsuID(elem) == id {
		acc = append(acc, elem)
	}
	for _, child := range elem.ChildElements() {
		acc = collectByWSUID(child, id, acc)
	}
	return acc
}

func wsuID(elem *etree.Element) string {
	for _, attr := range elem.Attr {
		if attr.Key == "Id" && attr.NamespaceURI() == NsSecUtil {
			return attr.Value
		}
	}
	return ""
}

// ensureWSUID ensures an element has a wsu:Id and returns it. The wsu
// namespace is declared on the element itself so the id survives
// exclusive canonicalization of the subtree.
func ensureWSUID(elem *etree.Element) string {
	if elem.SelectAttr("xmlns:wsu") == nil {
		elem.CreateAttr("xmlns:wsu", NsSecUtil)
	}
	if id := wsuID(elem); id != "" {
		return id
	}
	id := "id-" + generateID()
	elem.CreateAttr("wsu:Id", id)
	return id
}

// childNS finds a direct child by namespace URI and local name.
func childNS(parent *etree.Element, space, local string) *etree.Element {
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

// headerElement returns the envelope Header child, creating it before
// the Body when absent.
func headerElement(root *etree.Element, version envelope.Version, create bool) *etree.Element {
	header := childNS(root, version.Namespace(), "Header")
	if header != nil || !create {
		return header
	}
	tag := "Header"
	if root.Space != "" {
		tag = root.Space + ":Header"
	}
	header = etree.NewElement(tag)
	root.InsertChildAt(0, header)
	return header
}

// securityElement returns the wsse:Security header, creating it with
// the carrier version's mustUnderstand attribute when absent.
func securityElement(header *etree.Element, version envelope.Version, create bool) *etree.Element {
	security := childNS(header, NsSecExt, "Security")
	if security != nil || !create {
		return security
	}
	security = header.CreateElement("wsse:Security")
	muPrefix := header.Parent().Space
	if muPrefix == "" {
		muPrefix = "soap"
		header.Parent().CreateAttr("xmlns:soap", version.Namespace())
	}
	if version == envelope.VersionLegacy {
		security.CreateAttr(muPrefix+":mustUnderstand", "1")
	} else {
		security.CreateAttr(muPrefix+":mustUnderstand", "true")
	}
	return security
}

// ensureSecurityNamespaces declares the security vocabularies on the
// root so prefixed elements created below canonicalize consistently.
func ensureSecurityNamespaces(root *etree.Element) {
	if root.SelectAttr("xmlns:wsse") == nil {
		root.CreateAttr("xmlns:wsse", NsSecExt)
	}
	if root.SelectAttr("xmlns:wsu") == nil {
		root.CreateAttr("xmlns:wsu", NsSecUtil)
	}
}

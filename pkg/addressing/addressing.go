// Package addressing implements the WS-Addressing 1.0 header vocabulary
// carried by the hybrid envelope: construction of outbound addressing
// headers and extraction of admitted ones.
package addressing

import (
	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/grauwen/digikoppeling-wus-cxf/pkg/envelope"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
)

// Namespace is the WS-Addressing 1.0 namespace. It is foreign to the
// SOAP 1.1 envelope; admission under a profile is what makes it legal.
const Namespace = "http://www.w3.org/2005/08/addressing"

// Anonymous is the anonymous endpoint reference address, used as
// ReplyTo for synchronous exchanges.
const Anonymous = "http://www.w3.org/2005/08/addressing/anonymous"

// Qualified names of the addressing headers.
var (
	QTo        = envelope.QName{Space: Namespace, Local: "To"}
	QAction    = envelope.QName{Space: Namespace, Local: "Action"}
	QMessageID = envelope.QName{Space: Namespace, Local: "MessageID"}
	QRelatesTo = envelope.QName{Space: Namespace, Local: "RelatesTo"}
	QReplyTo   = envelope.QName{Space: Namespace, Local: "ReplyTo"}
	QFrom      = envelope.QName{Space: Namespace, Local: "From"}
)

// Properties holds the addressing fields of one message.
type Properties struct {
	To        string
	Action    string
	MessageID string
	RelatesTo string
	ReplyTo   string
	From      string
}

// NewMessageID generates a globally unique message identifier.
func NewMessageID() string {
	return "urn:uuid:" + uuid.NewString()
}

// Build constructs a complete hybrid envelope: an envelope of the given
// version whose header carries the addressing properties and whose body
// holds the payload XML fragment. MessageID is generated when empty.
func Build(version envelope.Version, props Properties, payload []byte) ([]byte, error) {
	if props.MessageID == "" {
		props.MessageID = NewMessageID()
	}
	if props.ReplyTo == "" {
		props.ReplyTo = Anonymous
	}

	prefix := "soap"
	if version == envelope.VersionCurrent {
		prefix = "env"
	}

	doc := etree.NewDocument()
	root := doc.CreateElement(prefix + ":Envelope")
	root.CreateAttr("xmlns:"+prefix, version.Namespace())
	root.CreateAttr("xmlns:wsa", Namespace)

	header := root.CreateElement(prefix + ":Header")

	to := header.CreateElement("wsa:To")
	to.CreateAttr(prefix+":mustUnderstand", mustUnderstandValue(version))
	to.SetText(props.To)

	header.CreateElement("wsa:Action").SetText(props.Action)
	header.CreateElement("wsa:MessageID").SetText(props.MessageID)

	replyTo := header.CreateElement("wsa:ReplyTo")
	replyTo.CreateElement("wsa:Address").SetText(props.ReplyTo)

	if props.From != "" {
		from := header.CreateElement("wsa:From")
		from.CreateElement("wsa:Address").SetText(props.From)
	}
	if props.RelatesTo != "" {
		header.CreateElement("wsa:RelatesTo").SetText(props.RelatesTo)
	}

	body := root.CreateElement(prefix + ":Body")
	if len(payload) > 0 {
		fragment := etree.NewDocument()
		if err := fragment.ReadFromBytes(payload); err != nil {
			return nil, fault.Wrap(fault.UnrecognizedEnvelopeVersion, err, "body payload is not well-formed XML")
		}
		if fragment.Root() != nil {
			body.AddChild(fragment.Root().Copy())
		}
	}

	return envelope.SerializeDoc(doc)
}

// Extract reads the addressing properties from a header list. It does
// no presence validation: required-header enforcement is the policy
// engine's job, extraction just reports what is there.
func Extract(headers []envelope.Header) Properties {
	var props Properties
	for _, h := range headers {
		switch h.Name {
		case QTo:
			props.To = h.Element.Text()
		case QAction:
			props.Action = h.Element.Text()
		case QMessageID:
			props.MessageID = h.Element.Text()
		case QRelatesTo:
			props.RelatesTo = h.Element.Text()
		case QReplyTo:
			props.ReplyTo = endpointAddress(h.Element)
		case QFrom:
			props.From = endpointAddress(h.Element)
		}
	}
	return props
}

// endpointAddress reads the Address child of an endpoint reference.
func endpointAddress(el *etree.Element) string {
	for _, child := range el.ChildElements() {
		if child.Tag == "Address" && child.NamespaceURI() == Namespace {
			return child.Text()
		}
	}
	return ""
}

func mustUnderstandValue(version envelope.Version) string {
	if version == envelope.VersionCurrent {
		return "true"
	}
	return "1"
}

// Package gateway wires the processing pipeline into the HTTPS transport.
//
// A Gateway implements transport.MessageHandler: it unprotects inbound
// envelopes through the orchestrator, hands the restored message to the
// application's Responder, and protects the response under the same
// profile. Processing failures are rendered as SOAP 1.1 fault envelopes
// so peers receive a structured fault instead of a bare HTTP error.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/beevik/etree"

	"github.com/grauwen/digikoppeling-wus-cxf/pkg/envelope"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/pipeline"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/profile"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/wssec"
)

// Responder produces the raw response envelope for a restored request.
// Implementations build the reply with pkg/addressing, setting RelatesTo
// to the request's MessageID.
type Responder func(ctx context.Context, req *pipeline.Result) ([]byte, error)

// Config assembles a Gateway.
type Config struct {
	// Orchestrator drives per-exchange processing. Required.
	Orchestrator *pipeline.Orchestrator

	// Profile is the Digikoppeling profile this endpoint serves.
	Profile profile.ID

	// Security supplies key material for unprotecting requests and
	// protecting responses. Nil is valid for 2W-be.
	Security *wssec.SecurityContext

	// Respond handles restored requests. Nil means the endpoint
	// acknowledges with an empty 200 response.
	Respond Responder

	Logger *slog.Logger
}

// Gateway receives WUS envelopes over the transport and drives the pipeline.
type Gateway struct {
	orch      *pipeline.Orchestrator
	profileID profile.ID
	sc        *wssec.SecurityContext
	respond   Responder
	log       *slog.Logger
}

// New creates a Gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("gateway: orchestrator is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		orch:      cfg.Orchestrator,
		profileID: cfg.Profile,
		sc:        cfg.Security,
		respond:   cfg.Respond,
		log:       log,
	}, nil
}

// HandleMessage implements transport.MessageHandler. On processing
// failure it returns the fault envelope together with the error, which
// the transport writes as a 500 response.
func (g *Gateway) HandleMessage(ctx context.Context, message []byte, action string) ([]byte, error) {
	result, err := g.orch.ProcessInbound(ctx, message, g.profileID, g.sc)
	if err != nil {
		return FaultEnvelope(err), err
	}

	if g.respond == nil {
		return nil, nil
	}

	reply, err := g.respond(ctx, result)
	if err != nil {
		g.log.Error("responder failed",
			slog.String("message_id", result.Addressing.MessageID),
			slog.String("error", err.Error()))
		return FaultEnvelope(err), err
	}

	out, err := g.orch.ProcessOutbound(ctx, reply, g.profileID, g.sc, pipeline.OutboundOptions{})
	if err != nil {
		return FaultEnvelope(err), err
	}
	return out.Wire, nil
}

// FaultEnvelope renders an error as a SOAP 1.1 fault envelope. Only the
// fault code and offending qualified name are exposed; detail text and
// anything derived from key material stay in the journal.
func FaultEnvelope(err error) []byte {
	code := "Internal"
	qname := ""
	faultcode := "soap:Server"
	var f *fault.Fault
	if errors.As(err, &f) {
		code = string(f.Code)
		qname = f.QName
		if clientFault(f.Code) {
			faultcode = "soap:Client"
		}
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", envelope.NsSOAP11)
	body := env.CreateElement("soap:Body")
	flt := body.CreateElement("soap:Fault")
	flt.CreateElement("faultcode").SetText(faultcode)
	flt.CreateElement("faultstring").SetText(code)
	if qname != "" {
		detail := flt.CreateElement("detail")
		detail.CreateElement("QName").SetText(qname)
	}

	raw, serr := envelope.SerializeDoc(doc)
	if serr != nil {
		return nil
	}
	return raw
}

// clientFault reports whether the fault is attributable to the sender.
func clientFault(code fault.Code) bool {
	switch code {
	case fault.UnknownProfile, fault.CallbackTimeout:
		return false
	default:
		return true
	}
}

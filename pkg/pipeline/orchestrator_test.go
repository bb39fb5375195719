package pipeline

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grauwen/digikoppeling-wus-cxf/internal/storage"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/addressing"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/envelope"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/profile"
	"github.com/grauwen/digikoppeling-wus-cxf/pkg/wssec"
)

// memoryJournal is an in-memory ExchangeJournal for tests.
type memoryJournal struct {
	mu      sync.Mutex
	records []storage.ExchangeRecord
}

func (m *memoryJournal) Record(_ context.Context, rec storage.ExchangeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryJournal) Find(_ context.Context, messageID string) (*storage.ExchangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].MessageID == messageID {
			rec := m.records[i]
			return &rec, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memoryJournal) ListExpired(_ context.Context, limit int) ([]storage.ExchangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ExchangeRecord
	for i := len(m.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.records[i].Outcome == storage.OutcomeExpired {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *memoryJournal) Close(context.Context) error { return nil }

func (m *memoryJournal) last(t *testing.T) storage.ExchangeRecord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.records)
	return m.records[len(m.records)-1]
}

type identity struct {
	key  *rsa.PrivateKey
	cert *x509.Certificate
}

func newIdentityPair(t *testing.T) (pool *x509.CertPool, sender, receiver *identity) {
	t.Helper()

	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Root CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	require.NoError(t, err)
	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	issue := func(name string) *identity {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		template := &x509.Certificate{
			SerialNumber: big.NewInt(time.Now().UnixNano()),
			Subject:      pkix.Name{CommonName: name},
			NotBefore:    time.Now().Add(-time.Hour),
			NotAfter:     time.Now().Add(24 * time.Hour),
			KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		}
		der, err := x509.CreateCertificate(rand.Reader, template, caCert, &key.PublicKey, caKey)
		require.NoError(t, err)
		cert, err := x509.ParseCertificate(der)
		require.NoError(t, err)
		return &identity{key: key, cert: cert}
	}

	pool = x509.NewCertPool()
	pool.AddCert(caCert)
	return pool, issue("sender"), issue("receiver")
}

func securityContext(pool *x509.CertPool, self, peer *identity) *wssec.SecurityContext {
	sc := &wssec.SecurityContext{
		Signer:       self.key,
		SignerCert:   self.cert,
		Decrypter:    self.key,
		TrustAnchors: pool,
	}
	if peer != nil {
		sc.RecipientCert = peer.cert
	}
	return sc
}

const requestPayload = `<ns:Aanvraag xmlns:ns="urn:example:aanvraag"><ns:Kenmerk>DOC-42</ns:Kenmerk></ns:Aanvraag>`

func buildRequest(t *testing.T, props addressing.Properties) []byte {
	t.Helper()
	if props.To == "" {
		props.To = "https://service.example.nl/aanvraag"
	}
	if props.Action == "" {
		props.Action = "urn:example:aanvraag:indienen"
	}
	if props.MessageID == "" {
		props.MessageID = addressing.NewMessageID()
	}
	raw, err := addressing.Build(envelope.VersionLegacy, props, []byte(requestPayload))
	require.NoError(t, err)
	return raw
}

func newOrchestrator(t *testing.T, journal storage.ExchangeJournal) *Orchestrator {
	t.Helper()
	o := New(Config{
		Journal: journal,
		Logger:  slog.New(slog.NewTextHandler(&strings.Builder{}, nil)),
	})
	t.Cleanup(o.Close)
	return o
}

func TestOutboundTransportOnly(t *testing.T) {
	o := newOrchestrator(t, nil)
	raw := buildRequest(t, addressing.Properties{})

	result, err := o.ProcessOutbound(context.Background(), raw, profile.TransportOnly, nil, OutboundOptions{})
	require.NoError(t, err)
	assert.Equal(t, raw, result.Wire, "transport-only adds no security layer")
	assert.Equal(t, profile.TransportOnly, result.ProfileID)
	assert.NotEmpty(t, result.Addressing.MessageID)
}

func TestOutboundUnknownProfile(t *testing.T) {
	o := newOrchestrator(t, nil)
	raw := buildRequest(t, addressing.Properties{})

	_, err := o.ProcessOutbound(context.Background(), raw, profile.ID("Digikoppeling 3W"), nil, OutboundOptions{})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.UnknownProfile))
}

func TestInboundTransportOnlyRejectsSecurityHeader(t *testing.T) {
	// A counterparty that signs anyway under the transport-only profile
	// is rejected at admission, not silently accepted.
	pool, sender, _ := newIdentityPair(t)
	o := newOrchestrator(t, nil)

	raw := buildRequest(t, addressing.Properties{})
	env, err := envelope.Classify(raw)
	require.NoError(t, err)
	desc, err := profile.NewRegistry().Lookup(profile.Signed)
	require.NoError(t, err)
	signed, err := wssec.Protect(env, desc, securityContext(pool, sender, nil))
	require.NoError(t, err)

	_, err = o.ProcessInbound(context.Background(), signed, profile.TransportOnly, nil)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.DisallowedNamespace))
}

func TestSignedExchangeWithCorrelation(t *testing.T) {
	pool, sender, receiver := newIdentityPair(t)
	journal := &memoryJournal{}
	o := newOrchestrator(t, journal)

	requestID := addressing.NewMessageID()
	raw := buildRequest(t, addressing.Properties{
		MessageID: requestID,
		ReplyTo:   "https://client.example.nl/antwoord",
	})

	out, err := o.ProcessOutbound(context.Background(), raw, profile.Signed,
		securityContext(pool, sender, nil),
		OutboundOptions{ExpectCallback: true, Token: "dossier-7"})
	require.NoError(t, err)
	assert.Equal(t, 1, o.Store().Pending())
	assert.Contains(t, string(out.Wire), "<ds:Signature")

	rec, err := journal.Find(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, storage.OutcomeProcessed, rec.Outcome)
	assert.Equal(t, storage.DirectionOutbound, rec.Direction)

	// The receiver answers with a message relating to the request.
	replyRaw, err := addressing.Build(envelope.VersionLegacy, addressing.Properties{
		To:        "https://client.example.nl/antwoord",
		Action:    "urn:example:aanvraag:besluit",
		MessageID: addressing.NewMessageID(),
		RelatesTo: requestID,
	}, []byte(`<ns:Besluit xmlns:ns="urn:example:aanvraag">toegekend</ns:Besluit>`))
	require.NoError(t, err)

	replyEnv, err := envelope.Classify(replyRaw)
	require.NoError(t, err)
	desc, err := profile.NewRegistry().Lookup(profile.Signed)
	require.NoError(t, err)
	protectedReply, err := wssec.Protect(replyEnv, desc, securityContext(pool, receiver, nil))
	require.NoError(t, err)

	in, err := o.ProcessInbound(context.Background(), protectedReply, profile.Signed,
		securityContext(pool, receiver, nil))
	require.NoError(t, err)
	require.NotNil(t, in.Correlated)
	assert.Equal(t, requestID, in.Correlated.MessageID)
	assert.Equal(t, "dossier-7", in.Correlated.Token)
	assert.Equal(t, 0, o.Store().Pending())

	// A replayed response finds nothing to correlate.
	_, err = o.ProcessInbound(context.Background(), protectedReply, profile.Signed,
		securityContext(pool, receiver, nil))
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.UnknownCorrelation))

	last := journal.last(t)
	assert.Equal(t, storage.OutcomeFailed, last.Outcome)
	assert.Equal(t, string(fault.UnknownCorrelation), last.FaultCode)
}

func TestSignedEncryptedInbound(t *testing.T) {
	pool, sender, receiver := newIdentityPair(t)
	o := newOrchestrator(t, nil)

	raw := buildRequest(t, addressing.Properties{})
	env, err := envelope.Classify(raw)
	require.NoError(t, err)
	desc, err := profile.NewRegistry().Lookup(profile.SignedEncrypted)
	require.NoError(t, err)
	protected, err := wssec.Protect(env, desc, securityContext(pool, sender, receiver))
	require.NoError(t, err)
	assert.NotContains(t, string(protected), "DOC-42")

	result, err := o.ProcessInbound(context.Background(), protected, profile.SignedEncrypted,
		securityContext(pool, receiver, sender))
	require.NoError(t, err)
	assert.Contains(t, string(result.Wire), "DOC-42")
	assert.Equal(t, "urn:example:aanvraag:indienen", result.Addressing.Action)
}

func TestInboundTamperedMessage(t *testing.T) {
	pool, sender, _ := newIdentityPair(t)
	journal := &memoryJournal{}
	o := newOrchestrator(t, journal)

	raw := buildRequest(t, addressing.Properties{})
	env, err := envelope.Classify(raw)
	require.NoError(t, err)
	desc, err := profile.NewRegistry().Lookup(profile.Signed)
	require.NoError(t, err)
	protected, err := wssec.Protect(env, desc, securityContext(pool, sender, nil))
	require.NoError(t, err)

	tampered := strings.Replace(string(protected), "DOC-42", "DOC-43", 1)
	_, err = o.ProcessInbound(context.Background(), []byte(tampered), profile.Signed,
		securityContext(pool, sender, nil))
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.SignatureInvalid))

	// Faults carry exchange context for diagnostics.
	var f *fault.Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, string(profile.Signed), f.ProfileID)
	assert.NotEmpty(t, f.MessageID)

	last := journal.last(t)
	assert.Equal(t, string(fault.SignatureInvalid), last.FaultCode)
}

func TestOutboundMalformedEnvelope(t *testing.T) {
	o := newOrchestrator(t, nil)

	_, err := o.ProcessOutbound(context.Background(), []byte("<not-an-envelope/>"), profile.TransportOnly, nil, OutboundOptions{})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.UnrecognizedEnvelopeVersion))
}

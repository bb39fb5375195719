package transport

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultHTTPSConfig(t *testing.T) {
	config := DefaultHTTPSConfig()

	require.NotNil(t, config)
	require.Equal(t, uint16(TLS12), config.MinTLSVersion)
	require.Equal(t, uint16(TLS13), config.MaxTLSVersion)
	require.NotEmpty(t, config.CipherSuites)
	require.Equal(t, tls.RequireAndVerifyClientCert, config.ClientAuth)
	require.Equal(t, 30*time.Second, config.Timeout)
	require.Equal(t, 90*time.Second, config.IdleConnTimeout)
}

func TestRecommendedTLS12CipherSuites(t *testing.T) {
	require.NotEmpty(t, RecommendedTLS12CipherSuites)

	for _, suite := range RecommendedTLS12CipherSuites {
		require.NotEmpty(t, tls.CipherSuiteName(suite), "unknown cipher suite %d", suite)
	}
}

func TestNewHTTPSClientNilConfig(t *testing.T) {
	client := NewHTTPSClient(nil)

	require.NotNil(t, client)
	require.NotNil(t, client.client)
	require.NotNil(t, client.config)
}

func TestSendSetsSOAP11Headers(t *testing.T) {
	const action = "urn:nl:digikoppeling:wus:submit"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, ContentTypeSOAP11, r.Header.Get("Content-Type"))
		require.Equal(t, "digikoppeling-wus/1.0", r.Header.Get("User-Agent"))
		require.Equal(t, `"`+action+`"`, r.Header.Get("SOAPAction"))

		w.Header().Set("Content-Type", ContentTypeSOAP11)
		w.Write([]byte("<Response/>"))
	}))
	defer server.Close()

	client := NewHTTPSClient(nil)

	response, err := client.Send(context.Background(), server.URL, []byte("<Request/>"), action)
	require.NoError(t, err)
	require.Equal(t, "<Response/>", string(response))
}

func TestSendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPSClient(nil)

	_, err := client.Send(context.Background(), server.URL, []byte("<Request/>"), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestSendContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
	}))
	defer server.Close()

	client := NewHTTPSClient(&HTTPSConfig{Timeout: 10 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Send(ctx, server.URL, []byte("<Request/>"), "")
	require.Error(t, err)
}

func TestNewHTTPSServerNilConfig(t *testing.T) {
	handler := &mockHandler{}
	server := NewHTTPSServer(":8443", nil, handler)

	require.NotNil(t, server)
	require.NotNil(t, server.config)
	require.Same(t, handler, server.handler)
}

func TestHandleWUSMethodNotAllowed(t *testing.T) {
	server := NewHTTPSServer(":8443", nil, &mockHandler{})

	req := httptest.NewRequest(http.MethodGet, "/wus", nil)
	w := httptest.NewRecorder()

	server.handleWUS(w, req)

	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleWUSSuccess(t *testing.T) {
	handler := &mockHandler{response: []byte("<Ack/>")}
	server := NewHTTPSServer(":8443", nil, handler)

	req := httptest.NewRequest(http.MethodPost, "/wus", nil)
	req.Header.Set("SOAPAction", `"urn:nl:digikoppeling:wus:submit"`)
	req.Body = http.NoBody
	w := httptest.NewRecorder()

	server.handleWUS(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, ContentTypeSOAP11, w.Header().Get("Content-Type"))
	require.Equal(t, "<Ack/>", w.Body.String())
	require.Equal(t, "urn:nl:digikoppeling:wus:submit", handler.lastAction)
}

func TestHandleWUSHandlerError(t *testing.T) {
	server := NewHTTPSServer(":8443", nil, &mockHandler{err: http.ErrAbortHandler})

	req := httptest.NewRequest(http.MethodPost, "/wus", nil)
	req.Body = http.NoBody
	w := httptest.NewRecorder()

	server.handleWUS(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleWUSFaultEnvelope(t *testing.T) {
	// A handler that returns both a body and an error gets the body
	// written as a SOAP fault with status 500.
	server := NewHTTPSServer(":8443", nil, &mockHandler{
		response: []byte("<soap:Fault/>"),
		err:      http.ErrAbortHandler,
	})

	req := httptest.NewRequest(http.MethodPost, "/wus", nil)
	req.Body = http.NoBody
	w := httptest.NewRecorder()

	server.handleWUS(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, ContentTypeSOAP11, w.Header().Get("Content-Type"))
	require.Equal(t, "<soap:Fault/>", w.Body.String())
}

func TestUnquoteAction(t *testing.T) {
	require.Equal(t, "urn:a", unquoteAction(`"urn:a"`))
	require.Equal(t, "urn:a", unquoteAction("urn:a"))
	require.Equal(t, "", unquoteAction(`""`))
	require.Equal(t, "", unquoteAction(""))
}

func TestStartWithoutCertificates(t *testing.T) {
	server := NewHTTPSServer(":0", &HTTPSConfig{}, nil)

	require.Error(t, server.Start())
}

type mockHandler struct {
	response   []byte
	err        error
	lastAction string
}

func (h *mockHandler) HandleMessage(ctx context.Context, message []byte, action string) ([]byte, error) {
	h.lastAction = action
	return h.response, h.err
}

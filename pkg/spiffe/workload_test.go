package spiffe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat-et/idbind/pkg/logger"
)

func captureCaller(t *testing.T, mock bool, req *http.Request) string {
	t.Helper()
	var got string
	h := IdentityMiddleware(mock)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSPIFFEIDFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestIdentityMiddlewareMockHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/verify", nil)
	req.Header.Set(MockHeader, "spiffe://idbind.example.com/wallet")
	assert.Equal(t, "spiffe://idbind.example.com/wallet", captureCaller(t, true, req))

	// the header is ignored outside mock mode
	assert.Empty(t, captureCaller(t, false, req))
}

func TestIdentityMiddlewarePeerCertificate(t *testing.T) {
	id, err := url.Parse("spiffe://idbind.example.com/wallet")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/verify", nil)
	req.TLS = &tls.ConnectionState{
		PeerCertificates: []*x509.Certificate{{URIs: []*url.URL{id}}},
	}
	assert.Equal(t, "spiffe://idbind.example.com/wallet", captureCaller(t, false, req))

	req.TLS.PeerCertificates[0].URIs = nil
	assert.Empty(t, captureCaller(t, false, req))
}

func TestWorkloadClientMockMode(t *testing.T) {
	c := NewWorkloadClient(Config{MockMode: true}, logger.NewWithWriter(logger.ComponentSPIFFE, io.Discard, false))
	require.NoError(t, c.Start(context.Background(), "spiffe://idbind.example.com/verifier"))
	assert.Equal(t, "spiffe://idbind.example.com/verifier", c.ID())

	cfg, err := c.ServerTLSConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.NoError(t, c.Close())
}

func TestServerTLSConfigBeforeStart(t *testing.T) {
	c := NewWorkloadClient(Config{TrustDomain: "idbind.example.com"}, logger.NewWithWriter(logger.ComponentSPIFFE, io.Discard, false))
	_, err := c.ServerTLSConfig()
	assert.ErrorIs(t, err, ErrNotStarted)
}

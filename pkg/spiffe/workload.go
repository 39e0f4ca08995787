package spiffe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/svid/x509svid"
	"github.com/spiffe/go-spiffe/v2/workloadapi"

	"github.com/redhat-et/idbind/pkg/logger"
)

// MockHeader carries the caller identity when mTLS is not in use
const MockHeader = "X-SPIFFE-ID"

// ErrNotStarted is returned when TLS material is requested before Start
var ErrNotStarted = errors.New("spiffe: workload source not started")

// Config holds SPIFFE-related configuration
type Config struct {
	SocketPath  string
	TrustDomain string
	MockMode    bool
}

// WorkloadClient holds the service SVID obtained from the SPIRE agent
type WorkloadClient struct {
	config Config
	log    *logger.Logger

	mu     sync.RWMutex
	source *workloadapi.X509Source
	id     string
}

// NewWorkloadClient creates a new workload client
func NewWorkloadClient(cfg Config, log *logger.Logger) *WorkloadClient {
	return &WorkloadClient{
		config: cfg,
		log:    log,
	}
}

// Start connects to the Workload API and waits for the first SVID. In mock
// mode it only records the given identity.
func (c *WorkloadClient) Start(ctx context.Context, mockID string) error {
	if c.config.MockMode {
		c.mu.Lock()
		c.id = mockID
		c.mu.Unlock()
		c.log.SVID(mockID, "Mock mode: skipping SPIRE agent connection")
		return nil
	}

	c.log.Info("Connecting to SPIRE agent", "socket", c.config.SocketPath)
	source, err := workloadapi.NewX509Source(ctx,
		workloadapi.WithClientOptions(workloadapi.WithAddr(c.config.SocketPath)),
	)
	if err != nil {
		return fmt.Errorf("failed to create X509 source: %w", err)
	}
	svid, err := source.GetX509SVID()
	if err != nil {
		source.Close()
		return fmt.Errorf("failed to get X509 SVID: %w", err)
	}

	c.mu.Lock()
	c.source = source
	c.id = svid.ID.String()
	c.mu.Unlock()
	c.log.SVID(svid.ID.String(), "Obtained X509 SVID")
	return nil
}

// ID returns the workload SPIFFE ID, empty before Start
func (c *WorkloadClient) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// ServerTLSConfig returns an mTLS config accepting only clients from the
// configured trust domain. It returns nil in mock mode.
func (c *WorkloadClient) ServerTLSConfig() (*tls.Config, error) {
	if c.config.MockMode {
		return nil, nil
	}
	c.mu.RLock()
	source := c.source
	c.mu.RUnlock()
	if source == nil {
		return nil, ErrNotStarted
	}
	td, err := spiffeid.TrustDomainFromString(c.config.TrustDomain)
	if err != nil {
		return nil, fmt.Errorf("invalid trust domain %q: %w", c.config.TrustDomain, err)
	}
	return tlsconfig.MTLSServerConfig(source, source, tlsconfig.AuthorizeMemberOf(td)), nil
}

// Close releases the Workload API connection
func (c *WorkloadClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == nil {
		return nil
	}
	err := c.source.Close()
	c.source = nil
	return err
}

// IdentityMiddleware records the caller SPIFFE ID in the request context,
// taken from the peer certificate or, in mock mode, from MockHeader
func IdentityMiddleware(mockMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := callerID(r, mockMode); id != "" {
				r = r.WithContext(context.WithValue(r.Context(), spiffeIDKey, id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerID(r *http.Request, mockMode bool) string {
	if mockMode {
		return r.Header.Get(MockHeader)
	}
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return ""
	}
	id, err := x509svid.IDFromCert(r.TLS.PeerCertificates[0])
	if err != nil {
		return ""
	}
	return id.String()
}

type contextKey string

const spiffeIDKey contextKey = "spiffe-id"

// GetSPIFFEIDFromContext extracts the caller SPIFFE ID from the context
func GetSPIFFEIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(spiffeIDKey).(string); ok {
		return id
	}
	return ""
}

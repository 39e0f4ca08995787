package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/redhat-et/idbind/pkg/accounts"
	"github.com/redhat-et/idbind/pkg/idtoken"
	"github.com/redhat-et/idbind/pkg/keys"
	"github.com/redhat-et/idbind/pkg/logger"
	"github.com/redhat-et/idbind/pkg/metrics"
	"github.com/redhat-et/idbind/pkg/policy"
	"github.com/redhat-et/idbind/pkg/spiffe"
	"github.com/redhat-et/idbind/pkg/telemetry"
	"github.com/redhat-et/idbind/verifier-service/internal/verifier"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the verifier service",
	Long:  `Start the ID token verification and account binding API on the configured port.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

const requestIDHeader = "X-Request-ID"

// VerifyRequest is the body of POST /v1/verify
type VerifyRequest struct {
	Token string `json:"token"`
}

// VerifyResponse is returned for a token that could be checked
type VerifyResponse struct {
	RequestID string           `json:"request_id"`
	Valid     bool             `json:"valid"`
	Kid       string           `json:"kid"`
	Header    any              `json:"header"`
	Payload   any              `json:"payload"`
	Policy    *policy.Decision `json:"policy,omitempty"`
}

// AccountRequest is the body of POST /v1/accounts. Salt may be given
// instead of Name.
type AccountRequest struct {
	Token string `json:"token"`
	Owner string `json:"owner"`
	Name  string `json:"name,omitempty"`
	Salt  string `json:"salt,omitempty"`
}

// AccountResponse describes one account
type AccountResponse struct {
	RequestID  string            `json:"request_id,omitempty"`
	Salt       accounts.Hash     `json:"salt"`
	Address    accounts.Address  `json:"address"`
	Registered bool              `json:"registered"`
	Owner      *accounts.Address `json:"owner,omitempty"`
	CreatedAt  *time.Time        `json:"created_at,omitempty"`
	Created    bool              `json:"created,omitempty"`
}

// VerifierService serves the verification and account API
type VerifierService struct {
	verifier *verifier.Verifier
	log      *logger.Logger
	maxBody  int64
}

func newVerifierService(v *verifier.Verifier, log *logger.Logger, maxBody int64) *VerifierService {
	if maxBody <= 0 {
		maxBody = 64 << 10
	}
	return &VerifierService{verifier: v, log: log, maxBody: maxBody}
}

// routes returns the API mux
func (s *VerifierService) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/verify", s.handleVerify)
	mux.HandleFunc("/v1/accounts", s.handleAccounts)
	return mux
}

// healthRoutes returns the plain HTTP probe and metrics mux
func (s *VerifierService) healthRoutes(metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", metricsHandler)
	return mux
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := context.Background()
	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:       "idbind-verifier",
		Enabled:           cfg.OTel.Enabled,
		CollectorEndpoint: cfg.OTel.CollectorEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer otelShutdown(ctx)

	log := logger.New(logger.ComponentVerifier)

	workloadClient := spiffe.NewWorkloadClient(spiffe.Config{
		SocketPath:  cfg.SPIFFE.SocketPath,
		TrustDomain: cfg.SPIFFE.TrustDomain,
		MockMode:    cfg.Service.MockSPIFFE,
	}, logger.New(logger.ComponentSPIFFE))
	if err := workloadClient.Start(ctx, "spiffe://"+cfg.SPIFFE.TrustDomain+"/service/idbind-verifier"); err != nil {
		return fmt.Errorf("failed to fetch SPIFFE identity: %w", err)
	}

	reg, err := newKeyRegistry(cfg.Keys, logger.New(logger.ComponentKeys))
	if err != nil {
		return err
	}
	if reg.Len() == 0 {
		log.Warn("No signing keys configured; every token will fail with an unknown key")
	}
	engine, err := newPolicyEngine(ctx, cfg.Policy)
	if err != nil {
		return err
	}
	factory, err := newFactory(ctx, cfg.Accounts, logger.New(logger.ComponentAccounts))
	if err != nil {
		return err
	}

	collectors := metrics.New(prometheus.DefaultRegisterer)
	svc := newVerifierService(
		verifier.New(reg, engine, factory, collectors, log),
		log,
		cfg.Limits.MaxBodyBytes,
	)

	var handler http.Handler = spiffe.IdentityMiddleware(cfg.Service.MockSPIFFE)(svc.routes())
	if cfg.OTel.Enabled {
		handler = telemetry.WrapHandler(handler, "idbind-verifier")
	}

	tlsConfig, err := workloadClient.ServerTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to build mTLS config: %w", err)
	}
	server := &http.Server{
		Addr:         cfg.Service.Addr(),
		Handler:      handler,
		TLSConfig:    tlsConfig,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	healthServer := &http.Server{
		Addr:         cfg.Service.HealthAddr(),
		Handler:      svc.healthRoutes(promhttp.Handler()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		log.Info("Shutting down verifier service...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Shutdown error", "error", err)
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Health server shutdown error", "error", err)
		}
		if err := workloadClient.Close(); err != nil {
			log.Error("Failed to close SPIFFE workload client", "error", err)
		}
		close(done)
	}()

	log.Section("STARTING IDBIND VERIFIER")
	log.Info("Verifier service starting", "addr", cfg.Service.Addr())
	log.Info("Health server starting", "addr", cfg.Service.HealthAddr())
	log.Info("Signing keys loaded", "kids", reg.Kids())
	log.Info("mTLS mode", "enabled", tlsConfig != nil)

	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Health server error", "error", err)
		}
	}()

	var serverErr error
	if tlsConfig != nil {
		serverErr = server.ListenAndServeTLS("", "")
	} else {
		serverErr = server.ListenAndServe()
	}
	if serverErr != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", serverErr)
	}

	<-done
	log.Info("Verifier service stopped")
	return nil
}

// jsonResponse writes v as JSON with status code
func jsonResponse(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response; kind is omitted when empty
func jsonError(w http.ResponseWriter, message, kind string, code int) {
	body := map[string]any{
		"error":      message,
		"request_id": w.Header().Get(requestIDHeader),
	}
	if kind != "" {
		body["kind"] = kind
	}
	jsonResponse(w, code, body)
}

// requestID echoes or assigns the request ID and returns a logger carrying it
func (s *VerifierService) requestID(w http.ResponseWriter, r *http.Request) (string, *logger.Logger) {
	id := r.Header.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, id)

	log := s.log.With("request_id", id)
	if caller := spiffe.GetSPIFFEIDFromContext(r.Context()); caller != "" {
		log = log.With("caller", caller)
	}
	return id, log
}

func (s *VerifierService) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "Request body too large", "", http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "Invalid request body", "", http.StatusBadRequest)
		return false
	}
	return true
}

// writeVerifyError maps verification errors to status codes
func writeVerifyError(w http.ResponseWriter, log *logger.Logger, err error) {
	if errors.Is(err, keys.ErrUnknownKey) {
		log.Deny("Unknown signing key", "error", err)
		jsonError(w, "Unknown signing key", "UnknownKey", http.StatusNotFound)
		return
	}
	if kind := idtoken.Kind(err); kind != "" {
		log.Deny("Malformed token", "kind", kind, "error", err)
		jsonError(w, err.Error(), kind, http.StatusBadRequest)
		return
	}
	log.Error("Verification failed", "error", err)
	jsonError(w, "Verification failed", "", http.StatusInternalServerError)
}

func (s *VerifierService) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *VerifierService) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.verifier.Ready(r.Context()); err != nil {
		s.log.Warn("Readiness check failed", "error", err)
		jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *VerifierService) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, log := s.requestID(w, r)

	var req VerifyRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, span := telemetry.StartSpan(r.Context(), "verify.request", telemetry.AttrRequestID.String(id))
	defer span.End()

	out, err := s.verifier.Verify(ctx, req.Token)
	if err != nil {
		writeVerifyError(w, log, err)
		return
	}

	jsonResponse(w, http.StatusOK, VerifyResponse{
		RequestID: id,
		Valid:     out.Result.Valid,
		Kid:       out.Kid,
		Header:    out.Result.Header,
		Payload:   out.Result.Payload,
		Policy:    out.Policy,
	})
}

func (s *VerifierService) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateAccount(w, r)
	case http.MethodGet:
		s.handleGetAccount(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// saltFrom derives the salt from a name or parses an explicit one
func saltFrom(name, salt string) (accounts.Hash, error) {
	switch {
	case name != "" && salt != "":
		return accounts.Hash{}, errors.New("give either name or salt, not both")
	case name != "":
		return accounts.NameSalt(name), nil
	case salt != "":
		return accounts.ParseHash(salt)
	}
	return accounts.Hash{}, errors.New("name or salt required")
}

func (s *VerifierService) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	id, log := s.requestID(w, r)

	var req AccountRequest
	if !s.decode(w, r, &req) {
		return
	}
	owner, err := accounts.ParseAddress(req.Owner)
	if err != nil {
		jsonError(w, "Invalid owner address", "", http.StatusBadRequest)
		return
	}
	salt, err := saltFrom(req.Name, req.Salt)
	if err != nil {
		jsonError(w, err.Error(), "", http.StatusBadRequest)
		return
	}

	ctx, span := telemetry.StartSpan(r.Context(), "accounts.request", telemetry.AttrRequestID.String(id))
	defer span.End()

	b, err := s.verifier.Bind(ctx, req.Token, owner, salt)
	switch {
	case errors.Is(err, verifier.ErrSignatureInvalid):
		jsonResponse(w, http.StatusUnauthorized, map[string]any{
			"error":      "Token signature invalid",
			"request_id": id,
			"valid":      false,
		})
		return
	case errors.Is(err, verifier.ErrPolicyDenied):
		jsonResponse(w, http.StatusForbidden, map[string]any{
			"error":      "Token denied by claim policy",
			"request_id": id,
			"valid":      true,
			"policy":     b.Outcome.Policy,
		})
		return
	case errors.Is(err, accounts.ErrAlreadyRegistered):
		jsonResponse(w, http.StatusConflict, map[string]any{
			"error":      "Name already registered to another owner",
			"request_id": id,
			"salt":       salt,
			"address":    b.Record.Address,
		})
		return
	case err != nil:
		writeVerifyError(w, log, err)
		return
	}

	code := http.StatusOK
	if b.Created {
		code = http.StatusCreated
	}
	rec := b.Record
	jsonResponse(w, code, AccountResponse{
		RequestID:  id,
		Salt:       rec.Salt,
		Address:    rec.Address,
		Registered: true,
		Owner:      &rec.Owner,
		CreatedAt:  &rec.CreatedAt,
		Created:    b.Created,
	})
}

func (s *VerifierService) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, log := s.requestID(w, r)

	q := r.URL.Query()
	salt, err := saltFrom(q.Get("name"), q.Get("salt"))
	if err != nil {
		jsonError(w, err.Error(), "", http.StatusBadRequest)
		return
	}

	addr, rec, err := s.verifier.Address(r.Context(), salt)
	if err != nil {
		log.Error("Account lookup failed", "error", err)
		jsonError(w, "Account lookup failed", "", http.StatusInternalServerError)
		return
	}

	resp := AccountResponse{RequestID: id, Salt: salt, Address: addr}
	if rec != nil {
		resp.Registered = true
		resp.Owner = &rec.Owner
		resp.CreatedAt = &rec.CreatedAt
	}
	jsonResponse(w, http.StatusOK, resp)
}

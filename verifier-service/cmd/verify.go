package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/redhat-et/idbind/pkg/claims"
	"github.com/redhat-et/idbind/pkg/idtoken"
	"github.com/redhat-et/idbind/pkg/keys"
	"github.com/redhat-et/idbind/pkg/logger"
	"github.com/redhat-et/idbind/pkg/metrics"
	"github.com/redhat-et/idbind/pkg/oidcref"
	"github.com/redhat-et/idbind/pkg/policy"
	"github.com/redhat-et/idbind/verifier-service/internal/verifier"
)

var (
	verifyToken      string
	verifyTokenFile  string
	verifyKeyN       string
	verifyKeyE       string
	verifyCrossCheck bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify one ID token",
	Long: `Verify an ID token against a key given on the command line or the
configured keys and print the decoded claims, the policy decision and,
with --cross-check, the verdict of the go-oidc reference verifier.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	flags := verifyCmd.Flags()
	flags.StringVar(&verifyToken, "token", "", "Compact ID token")
	flags.StringVar(&verifyTokenFile, "token-file", "", "File holding the token, - for stdin")
	flags.StringVar(&verifyKeyN, "key-n", "", "RSA modulus (base64url); overrides configured keys")
	flags.StringVar(&verifyKeyE, "key-e", "AQAB", "RSA exponent (base64url)")
	flags.BoolVar(&verifyCrossCheck, "cross-check", false, "Also verify with the go-oidc reference verifier")
}

var (
	errSignatureInvalid = errors.New("token signature invalid")
	errDisagreement     = errors.New("reference verifier disagrees")
)

type referenceReport struct {
	Valid  bool   `json:"valid"`
	Agrees bool   `json:"agrees"`
	Error  string `json:"error,omitempty"`
}

type verifyReport struct {
	Valid     bool             `json:"valid"`
	Kid       string           `json:"kid"`
	Header    claims.Header    `json:"header"`
	Payload   claims.Payload   `json:"payload"`
	Policy    *policy.Decision `json:"policy,omitempty"`
	Reference *referenceReport `json:"reference,omitempty"`
}

func readToken(token, path string, stdin io.Reader) (string, error) {
	switch {
	case token != "" && path != "":
		return "", errors.New("use either --token or --token-file")
	case token != "":
		return strings.TrimSpace(token), nil
	case path == "-":
		data, err := io.ReadAll(io.LimitReader(stdin, idtoken.MaxTokenLength+2))
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", errors.New("--token or --token-file required")
}

// withKind prefixes input errors with their kind name
func withKind(err error) error {
	if kind := idtoken.Kind(err); kind != "" {
		return fmt.Errorf("%s: %w", kind, err)
	}
	return err
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	token, err := readToken(verifyToken, verifyTokenFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := context.Background()
	log := logger.NewWithWriter(logger.ComponentCLI, cmd.ErrOrStderr(), false)

	var reg *keys.Registry
	if verifyKeyN != "" {
		header, err := idtoken.ParseHeader(token)
		if err != nil {
			return withKind(err)
		}
		key, err := idtoken.ParsePublicKey(verifyKeyN, verifyKeyE)
		if err != nil {
			return err
		}
		reg = keys.NewRegistry()
		reg.Add(header.Kid, key)
	} else if reg, err = newKeyRegistry(cfg.Keys, log); err != nil {
		return err
	}

	engine, err := newPolicyEngine(ctx, cfg.Policy)
	if err != nil {
		return err
	}
	v := verifier.New(reg, engine, nil, metrics.New(prometheus.NewRegistry()), log)

	out, err := v.Verify(ctx, token)
	if err != nil {
		return withKind(err)
	}

	report := verifyReport{
		Valid:   out.Result.Valid,
		Kid:     out.Kid,
		Header:  out.Result.Header,
		Payload: out.Result.Payload,
		Policy:  out.Policy,
	}
	if verifyCrossCheck {
		key, err := reg.Lookup(out.Kid)
		if err != nil {
			return err
		}
		ok, refErr := oidcref.New(key, nil).Verify(ctx, token)
		report.Reference = &referenceReport{Valid: ok, Agrees: ok == out.Result.Valid}
		if refErr != nil {
			report.Reference.Error = refErr.Error()
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}

	if report.Reference != nil && !report.Reference.Agrees {
		return errDisagreement
	}
	if !report.Valid {
		return errSignatureInvalid
	}
	return nil
}

// Package policy evaluates the claim policy that decides whether a
// signature-valid ID token may be bound to an account.
package policy

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/redhat-et/idbind/pkg/claims"
)

//go:embed binding.rego
var bindingModule string

const query = "data.idbind.binding.decision"

// Options configures the claim checks
type Options struct {
	Issuers              []string
	Audiences            []string
	Leeway               time.Duration
	RequireEmailVerified bool
	SkipTimeChecks       bool
	// Now defaults to time.Now
	Now func() time.Time
}

// Decision is the policy outcome
type Decision struct {
	Allow      bool     `json:"allow"`
	Reason     string   `json:"reason"`
	Violations []string `json:"violations,omitempty"`
}

// Engine holds the prepared policy query. It is safe for concurrent use.
type Engine struct {
	query  rego.PreparedEvalQuery
	config map[string]any
	now    func() time.Time
}

// New compiles the binding policy
func New(ctx context.Context, opts Options) (*Engine, error) {
	q, err := rego.New(
		rego.Query(query),
		rego.Module("binding.rego", bindingModule),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy query: %w", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		query: q,
		config: map[string]any{
			"issuers":                stringList(opts.Issuers),
			"audiences":              stringList(opts.Audiences),
			"leeway":                 int64(opts.Leeway / time.Second),
			"require_email_verified": opts.RequireEmailVerified,
			"skip_time_checks":       opts.SkipTimeChecks,
		},
		now: now,
	}, nil
}

func stringList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// Evaluate applies the policy to the claims of a verified token
func (e *Engine) Evaluate(ctx context.Context, header claims.Header, payload claims.Payload) (Decision, error) {
	input := map[string]any{
		"header": map[string]any{
			"alg": header.Alg,
			"kid": header.Kid,
			"typ": header.Typ,
		},
		"payload": map[string]any{
			"iss":            payload.Iss,
			"azp":            payload.Azp,
			"aud":            payload.Aud,
			"sub":            payload.Sub,
			"email":          payload.Email,
			"email_verified": payload.EmailVerified,
			"nbf":            payload.Nbf,
			"iat":            payload.Iat,
			"exp":            payload.Exp,
		},
		"now":    e.now().Unix(),
		"config": e.config,
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("policy evaluation error: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Reason: "no policy decision available"}, nil
	}

	result, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return Decision{Reason: "invalid policy result format"}, nil
	}

	var d Decision
	if allow, ok := result["allow"].(bool); ok {
		d.Allow = allow
	}
	if reason, ok := result["reason"].(string); ok {
		d.Reason = reason
	}
	if list, ok := result["violations"].([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				d.Violations = append(d.Violations, s)
			}
		}
	}
	return d, nil
}

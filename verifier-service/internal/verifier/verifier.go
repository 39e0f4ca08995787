// Package verifier ties key selection, signature verification, the claim
// policy and account registration together for the service and CLI.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redhat-et/idbind/pkg/accounts"
	"github.com/redhat-et/idbind/pkg/idtoken"
	"github.com/redhat-et/idbind/pkg/keys"
	"github.com/redhat-et/idbind/pkg/logger"
	"github.com/redhat-et/idbind/pkg/metrics"
	"github.com/redhat-et/idbind/pkg/policy"
	"github.com/redhat-et/idbind/pkg/telemetry"
)

var (
	// ErrSignatureInvalid is returned by Bind for a token whose signature
	// does not verify
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrPolicyDenied is returned by Bind when the claim policy denies
	ErrPolicyDenied = errors.New("claim policy denied")
)

// Outcome is the result of verifying one token
type Outcome struct {
	Kid    string
	Result *idtoken.Result
	// Policy is nil when the signature did not verify
	Policy *policy.Decision
}

// Allowed reports whether the token verified and passed the policy
func (o *Outcome) Allowed() bool {
	return o.Result.Valid && o.Policy != nil && o.Policy.Allow
}

// Binding is the result of binding a token to an account
type Binding struct {
	Outcome *Outcome
	Record  accounts.Record
	Created bool
}

// Verifier is safe for concurrent use
type Verifier struct {
	keys    *keys.Registry
	policy  *policy.Engine
	factory *accounts.Factory
	metrics *metrics.Collectors
	log     *logger.Logger
}

// New creates a verifier. factory may be nil when account binding is not
// needed.
func New(reg *keys.Registry, engine *policy.Engine, factory *accounts.Factory, m *metrics.Collectors, log *logger.Logger) *Verifier {
	return &Verifier{
		keys:    reg,
		policy:  engine,
		factory: factory,
		metrics: m,
		log:     log,
	}
}

// Verify selects the key by kid, checks the signature and, for a valid
// signature, evaluates the claim policy
func (v *Verifier) Verify(ctx context.Context, token string) (*Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "idtoken.verify")
	defer span.End()

	start := time.Now()
	kid, key, err := v.keys.Resolve(token)
	span.SetAttributes(telemetry.AttrKid.String(kid))
	if err != nil {
		v.observe(resultLabel(err), start)
		telemetry.SetSpanError(span, err)
		return nil, err
	}

	res, err := idtoken.VerifyToken(token, key)
	if err != nil {
		v.observe(resultLabel(err), start)
		span.SetAttributes(telemetry.AttrErrorKind.String(idtoken.Kind(err)))
		telemetry.SetSpanError(span, err)
		return nil, err
	}

	out := &Outcome{Kid: kid, Result: res}
	span.SetAttributes(
		telemetry.AttrValid.Bool(res.Valid),
		telemetry.AttrIssuer.String(res.Payload.Iss),
		telemetry.AttrAudience.String(res.Payload.Aud),
	)
	if !res.Valid {
		v.observe(metrics.ResultInvalid, start)
		v.log.Verification(kid, false)
		telemetry.SetSpanOK(span)
		return out, nil
	}
	v.observe(metrics.ResultValid, start)
	v.log.Verification(kid, true, "sub", res.Payload.Sub, "iss", res.Payload.Iss)

	decision, err := v.policy.Evaluate(ctx, res.Header, res.Payload)
	if err != nil {
		telemetry.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	out.Policy = &decision
	v.metrics.ObservePolicy(decision.Allow)
	v.log.Policy(decision.Allow, decision.Reason, "sub", res.Payload.Sub)
	span.SetAttributes(
		telemetry.AttrDecision.Bool(decision.Allow),
		telemetry.AttrReason.String(decision.Reason),
	)
	telemetry.SetSpanOK(span)
	return out, nil
}

func (v *Verifier) observe(result string, start time.Time) {
	v.metrics.ObserveVerification(result, time.Since(start))
}

func resultLabel(err error) string {
	if errors.Is(err, keys.ErrUnknownKey) {
		return "UnknownKey"
	}
	if kind := idtoken.Kind(err); kind != "" {
		return kind
	}
	return "Error"
}

// Bind verifies token and, when it is valid and allowed, registers salt for
// owner. A salt held by another owner yields accounts.ErrAlreadyRegistered.
func (v *Verifier) Bind(ctx context.Context, token string, owner accounts.Address, salt accounts.Hash) (*Binding, error) {
	if v.factory == nil {
		return nil, errors.New("account binding not configured")
	}

	out, err := v.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if !out.Result.Valid {
		v.metrics.ObserveAccount(metrics.OutcomeUnverified)
		return &Binding{Outcome: out}, ErrSignatureInvalid
	}
	if !out.Policy.Allow {
		v.metrics.ObserveAccount(metrics.OutcomeDenied)
		return &Binding{Outcome: out}, fmt.Errorf("%w: %s", ErrPolicyDenied, out.Policy.Reason)
	}

	ctx, span := telemetry.StartSpan(ctx, "accounts.register",
		telemetry.AttrAccountSalt.String(salt.Hex()),
	)
	defer span.End()

	log := v.log.With("salt", salt.Hex(), "owner", owner.Hex(), "sub", out.Result.Payload.Sub)
	rec, created, err := v.factory.Register(ctx, owner, salt)
	switch {
	case errors.Is(err, accounts.ErrAlreadyRegistered):
		v.metrics.ObserveAccount(metrics.OutcomeConflict)
		span.SetAttributes(telemetry.AttrAccountOutcome.String(metrics.OutcomeConflict))
		telemetry.SetSpanError(span, err)
		log.Deny("Salt already registered to another owner", "existing_owner", rec.Owner.Hex())
		return &Binding{Outcome: out, Record: rec}, err
	case err != nil:
		v.metrics.ObserveAccount(metrics.OutcomeError)
		telemetry.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to register account: %w", err)
	}

	outcome := metrics.OutcomeExisting
	if created {
		outcome = metrics.OutcomeCreated
	}
	v.metrics.ObserveAccount(outcome)
	span.SetAttributes(
		telemetry.AttrAccountAddress.String(rec.Address.Hex()),
		telemetry.AttrAccountOutcome.String(outcome),
	)
	telemetry.SetSpanOK(span)
	log.Success("Account bound", "address", rec.Address.Hex(), "created", created)
	return &Binding{Outcome: out, Record: rec, Created: created}, nil
}

// Address returns the deterministic account address and registration for
// salt; the record is nil when the salt is unregistered
func (v *Verifier) Address(ctx context.Context, salt accounts.Hash) (accounts.Address, *accounts.Record, error) {
	if v.factory == nil {
		return accounts.Address{}, nil, errors.New("account binding not configured")
	}
	addr := v.factory.GetAddress(salt)
	rec, err := v.factory.Lookup(ctx, salt)
	if errors.Is(err, accounts.ErrNotFound) {
		return addr, nil, nil
	}
	if err != nil {
		return addr, nil, err
	}
	return addr, &rec, nil
}

// Ready checks the account store when one is configured
func (v *Verifier) Ready(ctx context.Context) error {
	if v.factory == nil {
		return nil
	}
	return v.factory.Ping(ctx)
}

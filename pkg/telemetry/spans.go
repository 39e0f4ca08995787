package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/redhat-et/idbind"

// Span attribute keys
var (
	AttrKid            = attribute.Key("idbind.jwt.kid")
	AttrIssuer         = attribute.Key("idbind.jwt.issuer")
	AttrAudience       = attribute.Key("idbind.jwt.audience")
	AttrValid          = attribute.Key("idbind.signature.valid")
	AttrErrorKind      = attribute.Key("idbind.error.kind")
	AttrDecision       = attribute.Key("idbind.policy.decision")
	AttrReason         = attribute.Key("idbind.policy.reason")
	AttrAccountSalt    = attribute.Key("idbind.account.salt")
	AttrAccountAddress = attribute.Key("idbind.account.address")
	AttrAccountOutcome = attribute.Key("idbind.account.outcome")
	AttrCallerSPIFFEID = attribute.Key("idbind.caller.spiffe_id")
	AttrRequestID      = attribute.Key("idbind.request.id")
)

// Tracer returns the module tracer
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span carrying the given attributes
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetSpanError records err and marks the span failed
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span successful
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// untraced paths are probes and scrapes
func traced(r *http.Request) bool {
	switch r.URL.Path {
	case "/health", "/ready", "/healthz", "/readyz", "/metrics":
		return false
	}
	return true
}

// WrapHandler instruments an inbound handler
func WrapHandler(handler http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(handler, operation, otelhttp.WithFilter(traced))
}

// WrapTransport instruments an outbound transport, defaulting to
// http.DefaultTransport
func WrapTransport(transport http.RoundTripper) http.RoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return otelhttp.NewTransport(transport)
}

package guardrail

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Masterminds/semver/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/whylabs/openllmtelemetry/pkg/version"
)

// Header names the evaluation endpoint uses to report its container version
// and the client-version range it requires. Newer containers send the x-wls
// variants; older ones the long-form names.
var (
	versionHeaderNames           = []string{"x-wls-version", "whylabssecureheaders.version"}
	versionConstraintHeaderNames = []string{"x-wls-verconstr", "whylabssecureheaders.client_version_constraint"}
)

// containerCompatibilityConstraint is the container version range this client
// supports.
const containerCompatibilityConstraint = ">=1.0.23, <3.0.0"

// compatChecker verifies version-compatibility headers on evaluation
// responses. Incompatibilities are logged and recorded on the active span;
// they never fail the evaluation call.
type compatChecker struct {
	clientVersion string
	logger        *slog.Logger
}

func newCompatChecker(logger *slog.Logger) *compatChecker {
	return &compatChecker{
		clientVersion: version.Version,
		logger:        logger,
	}
}

// check inspects the response headers and annotates the span in ctx with
// guardrail.response.* attributes describing compatibility.
func (cc *compatChecker) check(ctx context.Context, headers http.Header) {
	span := trace.SpanFromContext(ctx)

	constraintRaw := firstHeader(headers, versionConstraintHeaderNames, span)
	containerRaw := firstHeader(headers, versionHeaderNames, span)

	if constraintRaw == "" {
		cc.logger.Warn("no client version constraint in evaluation endpoint response; " +
			"upgrade the container to 2.0.0 or later to enable compatibility checks")
		span.SetAttributes(attribute.String("guardrail.response.version_constraint", "empty"))
		return
	}

	constraint, err := semver.NewConstraint(constraintRaw)
	if err != nil {
		cc.logger.Warn("unparseable client version constraint from evaluation endpoint",
			"constraint", constraintRaw,
			"error", err,
		)
		return
	}

	span.SetAttributes(
		attribute.String("guardrail.response.client_version_constraint", constraintRaw),
		attribute.String("guardrail.response.client_version", cc.clientVersion),
	)

	clientVersion, err := semver.NewVersion(cc.clientVersion)
	if err != nil {
		// Development builds carry a non-semver version; nothing to verify.
		cc.logger.Debug("client version is not semver, skipping constraint check",
			"version", cc.clientVersion)
	} else if !constraint.Check(clientVersion) {
		cc.logger.Warn("evaluation endpoint requires an incompatible client version",
			"required", constraintRaw,
			"client_version", cc.clientVersion,
			"container_version", containerRaw,
		)
	}

	if containerRaw == "" {
		cc.logger.Warn("no container version header in evaluation endpoint response, unknown compatibility")
		span.SetAttributes(attribute.String("guardrail.response.container_version", "empty"))
		return
	}

	supported, err := semver.NewConstraint(containerCompatibilityConstraint)
	if err != nil {
		return
	}
	containerVersion, err := semver.NewVersion(containerRaw)
	if err != nil {
		cc.logger.Warn("unparseable container version from evaluation endpoint",
			"container_version", containerRaw,
			"error", err,
		)
		return
	}
	if !supported.Check(containerVersion) {
		cc.logger.Warn("evaluation endpoint container version is outside the supported range",
			"container_version", containerRaw,
			"supported", containerCompatibilityConstraint,
		)
		span.SetAttributes(
			attribute.String("guardrail.response.container_version", containerRaw),
			attribute.String("guardrail.container_version_constraint", containerCompatibilityConstraint),
		)
	}
}

// firstHeader returns the first present header among names, recording it as a
// guardrail.headers.<name> span attribute.
func firstHeader(headers http.Header, names []string, span trace.Span) string {
	for _, name := range names {
		if v := headers.Get(name); v != "" {
			span.SetAttributes(attribute.String("guardrail.headers."+name, v))
			return v
		}
	}
	return ""
}

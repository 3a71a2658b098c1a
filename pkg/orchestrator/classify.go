package orchestrator

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/matzehuels/stackrank/pkg/ecosystem"
	apperrors "github.com/matzehuels/stackrank/pkg/errors"
	"github.com/matzehuels/stackrank/pkg/httputil"
	"github.com/matzehuels/stackrank/pkg/integrations"
)

// IsNotFound reports whether err means the package does not exist. Besides
// the sentinel it accepts any error whose message contains "not found", the
// convention registry clients follow.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, integrations.ErrNotFound) || apperrors.Is(err, apperrors.ErrCodePackageNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// Classify converts a fetch failure into a coded error. Errors that already
// carry a code keep it.
func Classify(err error) *apperrors.Error {
	if err == nil {
		return nil
	}
	var coded *apperrors.Error
	if errors.As(err, &coded) {
		return coded
	}

	var netErr net.Error
	switch {
	case errors.Is(err, integrations.ErrRateLimited):
		return apperrors.Wrap(apperrors.ErrCodeRateLimited, err, "rate limited")
	case IsNotFound(err):
		return apperrors.Wrap(apperrors.ErrCodePackageNotFound, err, "package not found")
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return apperrors.Wrap(apperrors.ErrCodeTimeout, err, "request timed out")
	case errors.Is(err, integrations.ErrNetwork), httputil.IsRetryable(err):
		return apperrors.Wrap(apperrors.ErrCodeNetwork, err, "upstream request failed")
	case errors.Is(err, ecosystem.ErrUnsupportedEcosystem):
		return apperrors.Wrap(apperrors.ErrCodeUnsupported, err, "unsupported ecosystem")
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(apperrors.ErrCodeInternal, err, "request canceled")
	default:
		return apperrors.Wrap(apperrors.ErrCodeInternal, err, "unexpected failure")
	}
}

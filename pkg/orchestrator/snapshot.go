package orchestrator

import (
	"errors"

	"github.com/matzehuels/stackrank/pkg/compare"
	"github.com/matzehuels/stackrank/pkg/ecosystem"
	"github.com/matzehuels/stackrank/pkg/ecosystem/npm"
	apperrors "github.com/matzehuels/stackrank/pkg/errors"
	"github.com/matzehuels/stackrank/pkg/httputil"
	"github.com/matzehuels/stackrank/pkg/integrations"
	"github.com/matzehuels/stackrank/pkg/stats"
)

// Layers named in [PackageError].
const (
	LayerRegistry   = "registry"
	LayerSourceHost = "source-host"
)

// PackageError describes one failed fetch.
type PackageError struct {
	Package   string         `json:"package"`
	Layer     string         `json:"layer"`
	Code      apperrors.Code `json:"code"`
	Message   string         `json:"message"`
	NotFound  bool           `json:"notFound"`
	Retryable bool           `json:"retryable"`

	Err error `json:"-"`
}

func (e *PackageError) Error() string { return e.Package + ": " + e.Message }

func (e *PackageError) Unwrap() error { return e.Err }

func newPackageError(req ecosystem.Request, layer string, err error) *PackageError {
	coded := Classify(err)
	return &PackageError{
		Package:   req.Key(),
		Layer:     layer,
		Code:      coded.Code,
		Message:   err.Error(),
		NotFound:  layer == LayerRegistry && IsNotFound(err),
		Retryable: coded.Code != apperrors.ErrCodePackageNotFound && (httputil.IsRetryable(err) || coded.Code == apperrors.ErrCodeTimeout),
		Err:       coded,
	}
}

// PackageState is the state of one request.
type PackageState struct {
	Request ecosystem.Request `json:"request"`

	// Stats is the merged record. It is nil until the registry fetch has
	// succeeded once.
	Stats *stats.PackageStats `json:"stats,omitempty"`

	Loading              bool `json:"loading"`
	RegistryRefreshing   bool `json:"registryRefreshing"`
	SourceHostLoading    bool `json:"sourceHostLoading"`
	SourceHostRefreshing bool `json:"sourceHostRefreshing"`

	Error           *PackageError `json:"error,omitempty"`
	SourceHostError *PackageError `json:"sourceHostError,omitempty"`
}

// NotFound reports whether the registry does not know the package.
func (p PackageState) NotFound() bool { return p.Error != nil && p.Error.NotFound }

// Snapshot is a consistent view of a session.
type Snapshot struct {
	SessionID string         `json:"sessionId"`
	Packages  []PackageState `json:"packages"`

	Loading  bool           `json:"loading"`
	HasError bool           `json:"hasError"`
	Errors   []PackageError `json:"errors,omitempty"`

	// Keyed by request key ("npm:react").
	RegistryRefreshing   map[string]bool `json:"registryRefreshing"`
	SourceHostRefreshing map[string]bool `json:"sourceHostRefreshing"`

	// Comparison covers the resolved packages in request order.
	Comparison compare.Result `json:"comparison"`
}

// Results returns the resolved records in request order.
func (s Snapshot) Results() []*stats.PackageStats {
	return s.Comparison.Packages
}

// NotFound returns the requests the registry does not know.
func (s Snapshot) NotFound() []ecosystem.Request {
	var out []ecosystem.Request
	for _, p := range s.Packages {
		if p.NotFound() {
			out = append(out, p.Request)
		}
	}
	return out
}

// Package returns the state of req.
func (s Snapshot) Package(req ecosystem.Request) (PackageState, bool) {
	for _, p := range s.Packages {
		if p.Request.Key() == req.Key() {
			return p, true
		}
	}
	return PackageState{}, false
}

// Snapshot returns the current state with the comparison of every resolved
// package.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:            s.ID,
		Packages:             make([]PackageState, 0, len(s.order)),
		RegistryRefreshing:   make(map[string]bool, len(s.order)),
		SourceHostRefreshing: make(map[string]bool, len(s.order)),
	}
	results := make([]*stats.PackageStats, 0, len(s.order))

	for _, r := range s.order {
		e := s.entries[r.Key()]
		if e == nil {
			continue
		}
		ps := PackageState{
			Request:              r,
			Loading:              e.registryRun && e.registry == nil,
			RegistryRefreshing:   e.registryRef,
			SourceHostLoading:    e.hostRun && e.host == nil,
			SourceHostRefreshing: e.hostRef,
		}
		if e.registryErr != nil {
			ps.Error = newPackageError(r, LayerRegistry, e.registryErr)
			snap.Errors = append(snap.Errors, *ps.Error)
		}
		if e.hostErr != nil {
			ps.SourceHostError = newPackageError(r, LayerSourceHost, e.hostErr)
			if errors.Is(e.hostErr, integrations.ErrRateLimited) {
				snap.Errors = append(snap.Errors, *ps.SourceHostError)
			}
		}
		if e.registry != nil {
			ps.Stats = merge(e)
			results = append(results, ps.Stats)
		}

		snap.Loading = snap.Loading || ps.Loading
		snap.RegistryRefreshing[r.Key()] = ps.RegistryRefreshing
		snap.SourceHostRefreshing[r.Key()] = ps.SourceHostRefreshing
		snap.Packages = append(snap.Packages, ps)
	}

	snap.HasError = len(snap.Errors) > 0
	snap.Comparison = compare.CompareMany(results)
	return snap
}

// merge builds the final record from the registry and source-host layers.
// Scoring-service repository figures fill what the source host did not.
func merge(e *entry) *stats.PackageStats {
	s := e.registry.Clone()
	switch {
	case e.host != nil:
		ecosystem.ApplySourceHost(s, e.host)
	case e.hostErr != nil:
		s.AddWarning(ecosystem.WarningFor(e.hostErr), e.hostErr)
	}
	if s.GitHub == nil {
		npm.ApplyMirrored(s)
	}
	return s
}

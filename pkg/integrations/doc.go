// Package integrations provides HTTP clients for package registry APIs.
//
// # Overview
//
// Each upstream service has its own subpackage:
//
//   - [npm]: the npms.io scoring API (npm package data plus quality scores)
//   - [pypi]: Python Package Index JSON API and package index listings
//   - [github]: GitHub REST API for repository enrichment
//
// # Client Pattern
//
// All registry clients follow a consistent pattern:
//
//	client := npm.NewClient()
//	rec, err := client.FetchPackage(ctx, "react")
//
// Clients return raw upstream records; conversion to the unified
// statistics record lives in the ecosystem adapters.
//
// # Errors
//
// Failures wrap one of the sentinel errors so callers can classify them:
//
//   - [ErrNotFound]: the package or repository does not exist
//   - [ErrRateLimited]: a quota is exhausted
//   - [ErrNetwork]: transport failures and unexpected status codes
//   - [ErrInvalidRepoURL]: a repository URL that no source host understands
//
// Transient failures (5xx, connection errors) are additionally wrapped in
// [httputil.RetryableError].
//
// [npm]: github.com/matzehuels/stackrank/pkg/integrations/npm
// [pypi]: github.com/matzehuels/stackrank/pkg/integrations/pypi
// [github]: github.com/matzehuels/stackrank/pkg/integrations/github
// [httputil.RetryableError]: github.com/matzehuels/stackrank/pkg/httputil.RetryableError
package integrations

// Package pkg provides the libraries behind stackrank, a side-by-side
// comparison tool for npm and PyPI packages.
//
// # Overview
//
// A comparison runs in three stages:
//
//	package requests ("npm:react", "pypi:flask")
//	         ↓
//	    [orchestrator] session (parallel, cached, stale-aware fetches)
//	         ↓
//	    [ecosystem] adapters → registry clients in [integrations]
//	         ↓                  + GitHub repository enrichment
//	    [stats.PackageStats] records
//	         ↓
//	    [compare] winners and percentage differences per metric
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/stackrank/pkg/ecosystem"
//	    npmadapter "github.com/matzehuels/stackrank/pkg/ecosystem/npm"
//	    "github.com/matzehuels/stackrank/pkg/integrations/npm"
//	    "github.com/matzehuels/stackrank/pkg/orchestrator"
//	)
//
//	reg := ecosystem.NewRegistry(npmadapter.New(npm.NewClient(), nil, logger))
//	orch := orchestrator.New(reg)
//	reqs := []ecosystem.Request{{Name: "react", Ecosystem: "npm"}, {Name: "vue", Ecosystem: "npm"}}
//	snap, err := orch.Compare(ctx, reqs)
//	for _, mc := range snap.Comparison.Metrics {
//	    fmt.Println(mc.Label, mc.Winners())
//	}
//
// # Main Packages
//
// Domain:
//   - [stats]: the normalized PackageStats record and its ecosystem extensions
//   - [compare]: n-way comparison and the legacy pairwise comparison
//   - [ecosystem]: adapter contract, request parsing, GitHub enrichment
//   - [orchestrator]: sessions, snapshots, refetch and prune
//   - [catalog]: package name suggestions
//
// Infrastructure:
//   - [integrations]: npm (npms.io), PyPI and GitHub API clients
//   - [cache]: file, memory, Redis and MongoDB backends plus the stale-aware query layer
//   - [httputil]: retrying, rate-limited HTTP transport
//   - [settings]: stored GitHub credentials
//   - [observability]: fetch, cache and HTTP hooks with a Prometheus implementation
//   - [errors]: coded errors shared by the CLI and the HTTP API
//   - [buildinfo]: version information set at link time
package pkg

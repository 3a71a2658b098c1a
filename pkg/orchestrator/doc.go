// Package orchestrator runs comparison sessions.
//
// A [Session] holds an ordered list of package requests. For every request it
// issues one cache-backed registry fetch through the ecosystem adapters and,
// once the registry record names a GitHub repository, a second independently
// cached source-host fetch. All fetches run concurrently; results are merged
// by request key, never by completion order.
//
// Sessions never fail as a whole. [Session.Snapshot] always returns the
// current result set together with per-package loading, refreshing and error
// state, and the comparison of every package resolved so far:
//
//	o := orchestrator.New(adapters, orchestrator.WithSourceHost(host), orchestrator.WithQuery(q))
//	s := o.NewSession(ctx)
//	defer s.Close()
//	s.SetPackages(reqs)
//	_ = s.Wait(ctx)
//	snap := s.Snapshot()
//
// Registry failures are classified with [Classify]. Only not-found failures
// are pruned by [Session.PruneNotFound]; transient failures stay in the
// session and can be retried with [Session.Refetch].
package orchestrator

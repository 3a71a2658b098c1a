// Package npm provides an HTTP client for the npms.io package analysis API.
//
// # Overview
//
// npms.io wraps the npm registry and adds download series, mirrored GitHub
// figures and three scores (quality, popularity, maintenance) in [0,1].
//
// # Usage
//
//	client := npm.NewClient()
//
//	rec, err := client.FetchPackage(ctx, "express")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(rec.Collected.Metadata.Version, rec.Score.Detail.Quality)
//
// [Client.FetchPackages] resolves many names in one request and silently
// omits names npms does not know. [Client.FetchSuggestions] powers
// autocomplete and returns an empty slice rather than an error when nothing
// matches.
//
// # Caching
//
// The client does not cache. Records are cached by the comparison
// orchestrator through [cache.Query].
//
// [cache.Query]: github.com/matzehuels/stackrank/pkg/cache.Query
package npm

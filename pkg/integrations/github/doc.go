// Package github provides a client for the GitHub REST API.
//
// # Overview
//
// The client enriches package statistics with repository figures (stars,
// forks, open issues, watchers, timestamps) and the README. It is built on
// go-github; requests go through a rate-limited, instrumented transport.
//
// # Usage
//
//	client, err := github.NewClient(github.WithToken(token))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	repo, err := client.FetchRepository(ctx, "git+https://github.com/pallets/flask.git")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Stars:", repo.Stars)
//
// # Authentication
//
// A token is optional. Without one GitHub allows 60 requests per hour; with
// one, 5000. [NewLimiter] sizes the client-side limiter accordingly.
// [DeviceFlow] obtains a token through the OAuth device authorization flow.
//
// # Errors
//
// 404 responses wrap [integrations.ErrNotFound]; 403, 429 and quota errors
// wrap [integrations.ErrRateLimited], so callers can tell a missing
// repository from an exhausted quota. [Client.FetchReadme] treats a missing
// README as absent rather than as an error.
//
// [integrations.ErrNotFound]: github.com/matzehuels/stackrank/pkg/integrations.ErrNotFound
// [integrations.ErrRateLimited]: github.com/matzehuels/stackrank/pkg/integrations.ErrRateLimited
package github

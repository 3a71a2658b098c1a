package github

import (
	"fmt"
	"regexp"
)

var (
	// Logins are 1-39 alphanumerics or hyphens and cannot start with a hyphen.
	validOwner = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,38}$`)
	validRepo  = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,100}$`)
)

// reservedOwners are github.com path roots that are not accounts. Package
// metadata points at them for funding and docs links, e.g.
// "https://github.com/sponsors/sindresorhus".
var reservedOwners = map[string]bool{
	"about":       true,
	"apps":        true,
	"collections": true,
	"features":    true,
	"marketplace": true,
	"orgs":        true,
	"settings":    true,
	"sponsors":    true,
	"topics":      true,
}

// validateRepoPath checks the owner and name taken from a repository URL.
func validateRepoPath(owner, repo string) error {
	switch {
	case !validOwner.MatchString(owner):
		return fmt.Errorf("invalid owner %q", owner)
	case reservedOwners[owner]:
		return fmt.Errorf("%q is not a repository owner", owner)
	case repo == "." || repo == "..", !validRepo.MatchString(repo):
		return fmt.Errorf("invalid repository name %q", repo)
	}
	return nil
}

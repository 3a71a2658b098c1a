package github

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/matzehuels/stackrank/pkg/integrations"
)

// ParseRepoURL extracts owner and repository from the URL shapes found in
// package metadata:
//
//	https://github.com/owner/repo
//	https://github.com/owner/repo.git
//	git+https://github.com/owner/repo.git
//	git@github.com:owner/repo.git
//	git://github.com/owner/repo
//	github.com/owner/repo/tree/main
//	github:owner/repo
//	owner/repo
//
// Anything that does not point at a github.com repository wraps
// [integrations.ErrInvalidRepoURL].
func ParseRepoURL(raw string) (owner, repo string, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", "", fmt.Errorf("github: %w: empty url", integrations.ErrInvalidRepoURL)
	}

	switch {
	case strings.HasPrefix(s, "github:"):
		s = "https://github.com/" + strings.TrimPrefix(s, "github:")
	case strings.HasPrefix(s, "github.com/"), strings.HasPrefix(s, "www.github.com/"):
		s = "https://" + s
	case isShorthand(s):
		s = "https://github.com/" + s
	}

	u, err := url.Parse(integrations.NormalizeRepoURL(s))
	if err != nil {
		return "", "", fmt.Errorf("github: %w: %q", integrations.ErrInvalidRepoURL, raw)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", "", fmt.Errorf("github: %w: %q", integrations.ErrInvalidRepoURL, raw)
	}
	if host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."); host != "github.com" {
		return "", "", fmt.Errorf("github: %w: unsupported host %q", integrations.ErrInvalidRepoURL, u.Hostname())
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("github: %w: %q", integrations.ErrInvalidRepoURL, raw)
	}
	owner, repo = parts[0], strings.TrimSuffix(parts[1], ".git")
	if err := validateRepoPath(owner, repo); err != nil {
		return "", "", fmt.Errorf("github: %w: %v", integrations.ErrInvalidRepoURL, err)
	}
	return owner, repo, nil
}

// CanonicalURL returns https://github.com/owner/repo for any URL accepted by
// [ParseRepoURL].
func CanonicalURL(raw string) (string, error) {
	owner, repo, err := ParseRepoURL(raw)
	if err != nil {
		return "", err
	}
	return "https://github.com/" + owner + "/" + repo, nil
}

// isShorthand matches the npm "owner/repo" repository shorthand.
func isShorthand(s string) bool {
	return !strings.ContainsAny(s, ":@") && strings.Count(s, "/") == 1
}

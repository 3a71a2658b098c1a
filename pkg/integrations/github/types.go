package github

import "time"

// RepoRecord is the subset of repository metadata used for enrichment.
type RepoRecord struct {
	Owner         string     `json:"owner"`
	Name          string     `json:"name"`
	FullName      string     `json:"fullName"`
	Stars         int64      `json:"stars"`
	Forks         int64      `json:"forks"`
	OpenIssues    int64      `json:"openIssues"`
	Subscribers   int64      `json:"subscribers"`
	SizeKB        int64      `json:"sizeKb"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
	PushedAt      *time.Time `json:"pushedAt,omitempty"`
	DefaultBranch string     `json:"defaultBranch"`
	Homepage      string     `json:"homepage,omitempty"`
	Language      string     `json:"language,omitempty"`
	Archived      bool       `json:"archived"`
}

// User represents a GitHub user.
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
}

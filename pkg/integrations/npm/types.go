package npm

import "time"

// PackageRecord is the npms.io analysis of one package.
type PackageRecord struct {
	AnalyzedAt time.Time  `json:"analyzedAt"`
	Collected  Collected  `json:"collected"`
	Evaluation Evaluation `json:"evaluation"`
	Score      Score      `json:"score"`
}

// Collected holds the raw data npms gathered from each source.
type Collected struct {
	Metadata Metadata    `json:"metadata"`
	NPM      NPMData     `json:"npm"`
	GitHub   *GitHubData `json:"github,omitempty"`
}

// Metadata is the package.json-derived part of the record.
type Metadata struct {
	Name             string            `json:"name"`
	Scope            string            `json:"scope"`
	Version          string            `json:"version"`
	Description      string            `json:"description"`
	Keywords         []string          `json:"keywords"`
	Date             *time.Time        `json:"date"`
	License          string            `json:"license"`
	Links            Links             `json:"links"`
	Repository       *Repository       `json:"repository"`
	Dependencies     map[string]string `json:"dependencies"`
	DevDependencies  map[string]string `json:"devDependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
	Releases         []Window          `json:"releases"`
}

// Links are the canonical URLs npms resolved for the package.
type Links struct {
	NPM        string `json:"npm"`
	Homepage   string `json:"homepage"`
	Repository string `json:"repository"`
	Bugs       string `json:"bugs"`
}

// Repository is the package.json repository field.
type Repository struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// NPMData holds registry usage figures.
type NPMData struct {
	Downloads       []Window `json:"downloads"`
	DependentsCount int64    `json:"dependentsCount"`
	StarsCount      int64    `json:"starsCount"`
}

// Window is a count over a date range.
type Window struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Count int64     `json:"count"`
}

// Days returns the length of the window in whole days.
func (w Window) Days() int {
	return int(w.To.Sub(w.From).Hours() / 24)
}

// GitHubData is the repository snapshot npms mirrors from GitHub.
type GitHubData struct {
	Homepage         string        `json:"homepage"`
	StarsCount       int64         `json:"starsCount"`
	ForksCount       int64         `json:"forksCount"`
	SubscribersCount int64         `json:"subscribersCount"`
	Issues           Issues        `json:"issues"`
	Contributors     []Contributor `json:"contributors"`
	Commits          []Window      `json:"commits"`
}

// Issues summarises the repository issue tracker.
type Issues struct {
	Count     int64 `json:"count"`
	OpenCount int64 `json:"openCount"`
}

// Contributor is a committer and their commit count.
type Contributor struct {
	Username     string `json:"username"`
	CommitsCount int64  `json:"commitsCount"`
}

// Evaluation holds the npms sub-scores that feed the final score.
type Evaluation struct {
	Quality     map[string]float64 `json:"quality"`
	Popularity  map[string]float64 `json:"popularity"`
	Maintenance map[string]float64 `json:"maintenance"`
}

// Score is the npms final score and its three components, each in [0,1].
type Score struct {
	Final  float64     `json:"final"`
	Detail ScoreDetail `json:"detail"`
}

// ScoreDetail breaks the final score down.
type ScoreDetail struct {
	Quality     float64 `json:"quality"`
	Popularity  float64 `json:"popularity"`
	Maintenance float64 `json:"maintenance"`
}

// Suggestion is one autocomplete hit.
type Suggestion struct {
	Package     SuggestionPackage `json:"package"`
	Score       Score             `json:"score"`
	SearchScore float64           `json:"searchScore"`
	Highlight   string            `json:"highlight,omitempty"`
}

// SuggestionPackage is the package summary embedded in a [Suggestion].
type SuggestionPackage struct {
	Name        string     `json:"name"`
	Scope       string     `json:"scope"`
	Version     string     `json:"version"`
	Description string     `json:"description"`
	Keywords    []string   `json:"keywords"`
	Date        *time.Time `json:"date"`
	Links       Links      `json:"links"`
}

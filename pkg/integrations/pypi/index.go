package pypi

import (
	"context"
	"fmt"
	"strings"

	"github.com/matzehuels/stackrank/pkg/integrations"
)

// Index locations.
const (
	DefaultIndexURL   = "https://pypi.org/simple"
	DefaultPopularURL = "https://hugovk.github.io/top-pypi-packages/top-pypi-packages.min.json"
)

// Dataset selects a bulk package list.
type Dataset string

const (
	// DatasetFull is every project on the index (several hundred thousand names).
	DatasetFull Dataset = "full"
	// DatasetPopular is the curated list of the most downloaded projects.
	DatasetPopular Dataset = "popular"
)

// IndexEntry is one project in a bulk list. Downloads is zero for the full dataset.
type IndexEntry struct {
	Name      string `json:"name"`
	Downloads int64  `json:"downloads,omitempty"`
}

// IndexClient downloads bulk package lists for client-side search.
type IndexClient struct {
	*integrations.Client
	indexURL   string
	popularURL string
}

// NewIndexClient creates a bulk-list client.
func NewIndexClient(opts ...Option) *IndexClient {
	o := options{baseURL: DefaultIndexURL, popularURL: DefaultPopularURL}
	for _, opt := range opts {
		opt(&o)
	}
	return &IndexClient{
		Client:     integrations.NewClient("pypi-index", o.http, nil),
		indexURL:   o.baseURL,
		popularURL: o.popularURL,
	}
}

type simpleIndex struct {
	Projects []struct {
		Name string `json:"name"`
	} `json:"projects"`
}

type topPackages struct {
	Rows []struct {
		Project       string `json:"project"`
		DownloadCount int64  `json:"download_count"`
	} `json:"rows"`
}

// FetchIndex downloads the given dataset.
func (c *IndexClient) FetchIndex(ctx context.Context, ds Dataset) ([]IndexEntry, error) {
	switch ds {
	case DatasetFull:
		var idx simpleIndex
		err := c.GetWithHeaders(ctx, c.indexURL+"/", map[string]string{
			"Accept": "application/vnd.pypi.simple.v1+json",
		}, &idx)
		if err != nil {
			return nil, err
		}
		out := make([]IndexEntry, 0, len(idx.Projects))
		for _, p := range idx.Projects {
			if name := strings.TrimSpace(p.Name); name != "" {
				out = append(out, IndexEntry{Name: name})
			}
		}
		return out, nil

	case DatasetPopular:
		var top topPackages
		if err := c.Get(ctx, c.popularURL, &top); err != nil {
			return nil, err
		}
		out := make([]IndexEntry, 0, len(top.Rows))
		for _, r := range top.Rows {
			if r.Project != "" {
				out = append(out, IndexEntry{Name: r.Project, Downloads: r.DownloadCount})
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("pypi-index: unknown dataset %q", ds)
	}
}

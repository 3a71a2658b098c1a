//go:build integration

package npm

import (
	"context"
	"testing"
	"time"
)

func TestFetchPackage_Integration(t *testing.T) {
	client := NewClient()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tests := []struct {
		name    string
		pkg     string
		wantErr bool
	}{
		{"express", "express", false},
		{"scoped", "@babel/core", false},
		{"nonexistent", "this-package-should-not-exist-12345", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := client.FetchPackage(ctx, tt.pkg)
			if (err != nil) != tt.wantErr {
				t.Errorf("FetchPackage(%q) error = %v, wantErr %v", tt.pkg, err, tt.wantErr)
				return
			}
			if !tt.wantErr && rec.Collected.Metadata.Name == "" {
				t.Error("package name should not be empty")
			}
		})
	}
}

func TestFetchSuggestions_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	got, err := NewClient().FetchSuggestions(ctx, "reac", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Error("expected suggestions for 'reac'")
	}
}

package integrations_test

import (
	"fmt"

	"github.com/matzehuels/stackrank/pkg/integrations"
)

func ExampleNormalizePkgName() {
	// Package names are normalized to lowercase with hyphens
	fmt.Println(integrations.NormalizePkgName("FastAPI"))
	fmt.Println(integrations.NormalizePkgName("my_package"))
	fmt.Println(integrations.NormalizePkgName("  Spaces  "))
	// Output:
	// fastapi
	// my-package
	// spaces
}

func ExampleNormalizeRepoURL() {
	// Various repository URL formats are normalized to HTTPS
	fmt.Println(integrations.NormalizeRepoURL("git@github.com:user/repo.git"))
	fmt.Println(integrations.NormalizeRepoURL("git://github.com/user/repo"))
	fmt.Println(integrations.NormalizeRepoURL("git+https://github.com/user/repo.git"))
	fmt.Println(integrations.NormalizeRepoURL("https://github.com/user/repo"))
	// Output:
	// https://github.com/user/repo
	// https://github.com/user/repo
	// https://github.com/user/repo
	// https://github.com/user/repo
}

func ExampleURLEncode() {
	fmt.Println(integrations.URLEncode("@scope/package"))
	fmt.Println(integrations.URLEncode("package name"))
	// Output:
	// %40scope%2Fpackage
	// package+name
}

func Example_errors() {
	// Standard errors for registry operations
	fmt.Println("ErrNotFound:", integrations.ErrNotFound)
	fmt.Println("ErrNetwork:", integrations.ErrNetwork)
	fmt.Println("ErrRateLimited:", integrations.ErrRateLimited)
	// Output:
	// ErrNotFound: resource not found
	// ErrNetwork: network error
	// ErrRateLimited: rate limited
}

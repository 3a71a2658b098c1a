// Package pypi provides HTTP clients for the Python Package Index.
//
// # Overview
//
// [Client] reads the PyPI JSON API (https://pypi.org/pypi/<name>/json) and
// returns the raw [PackageRecord]: project info, every release with its
// upload timestamps, and the files of the latest release.
//
// [IndexClient] downloads bulk package lists for autocomplete. Two datasets
// exist: [DatasetFull] from the PEP 691 simple index and the much smaller
// [DatasetPopular]. The full list is large and slow; callers should fall
// back to the popular list when it fails.
//
// # Usage
//
//	client := pypi.NewClient()
//
//	rec, err := client.FetchPackage(ctx, "fastapi")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(rec.Info.Name, rec.Info.Version, rec.Info.LicenseType())
//
// Package names are normalized following PEP 503 before the request.
package pypi

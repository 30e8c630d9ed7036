package storage

import "strings"

type Family string

const (
	FamilyHTTP        Family = "http"
	FamilyDistributed Family = "distributed"
	FamilyLocal       Family = "local"
)

var (
	httpPrefixes        = []string{"http://", "https://"}
	distributedPrefixes = []string{"hdfs://", "s3a://", "s3://"}
)

// Classify picks the transport family from the path prefix alone. Matching is
// case-sensitive and anything unrecognised is a local file.
func Classify(path string) Family {
	if hasAnyPrefix(path, httpPrefixes) {
		return FamilyHTTP
	}
	if hasAnyPrefix(path, distributedPrefixes) {
		return FamilyDistributed
	}
	return FamilyLocal
}

func hasAnyPrefix(value string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

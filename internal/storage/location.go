package storage

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var authorityPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,252}(:[0-9]{1,5})?$`)

// Location is a distributed-storage path split into its parts. For s3 and
// s3a the authority is the bucket; for hdfs it is the namenode address.
type Location struct {
	Scheme    string
	Authority string
	Path      string
}

func (l Location) String() string {
	return l.Scheme + "://" + l.Authority + l.Path
}

func ParseLocation(raw string) (Location, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse location: %w", err)
	}
	if parsed.Scheme == "" {
		return Location{}, fmt.Errorf("location %q has no scheme", raw)
	}
	if parsed.Opaque != "" {
		return Location{}, fmt.Errorf("location %q must be hierarchical", raw)
	}
	if parsed.Host != "" {
		if err := validateAuthority(parsed.Host); err != nil {
			return Location{}, err
		}
	}
	cleaned := parsed.Path
	if cleaned != "" {
		cleaned = path.Clean("/" + strings.TrimPrefix(cleaned, "/"))
	}
	return Location{Scheme: parsed.Scheme, Authority: parsed.Host, Path: cleaned}, nil
}

func validateAuthority(value string) error {
	if !authorityPattern.MatchString(value) {
		return fmt.Errorf("invalid authority: %q", value)
	}
	return nil
}

package registryclient

import "github.com/Masterminds/semver/v3"

func parseVersion(s string) (*semver.Version, error) {
	return semver.NewVersion(s)
}

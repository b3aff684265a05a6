package server

import (
	"github.com/Masterminds/semver/v3"
)

// Version is the shipledger release.
const Version = "0.3.0"

// APIVersion is the version of the admin HTTP API.
const APIVersion = "v1"

// clientConstraint accepts clients built from the same minor release.
var clientConstraint *semver.Constraints

func init() {
	var err error
	clientConstraint, err = semver.NewConstraint("~" + Version)
	if err != nil {
		panic(err)
	}
}

// IsVersionCompatible reports whether a client of the given version may talk to
// this server. Invalid versions are not compatible.
func IsVersionCompatible(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return clientConstraint.Check(v)
}

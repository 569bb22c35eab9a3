// Package version holds the node's software and protocol versions.
package version

import (
	"fmt"
	"runtime"
)

// Version is a semantic protocol version.
type Version struct {
	Major uint16 `json:"major,omitempty"`
	Minor uint16 `json:"minor,omitempty"`
	Patch uint16 `json:"patch,omitempty"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible returns true iff both sides of a protocol speaking v and other
// can talk to each other, that is iff the major versions match.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major
}

var (
	// SoftwareVersion is the software version, set at build time with
	// -ldflags "-X github.com/encointer/personhood-oracle/common/version.SoftwareVersion=...".
	SoftwareVersion = "0.0.0-unset"

	// RuntimeHostProtocol versions the protocol between the untrusted host
	// and the enclave.
	RuntimeHostProtocol = Version{Major: 1}

	// Toolchain is the version of the Go toolchain the node was built with.
	Toolchain = runtime.Version()
)

// Versions groups all versions, for display.
var Versions = struct {
	RuntimeHostProtocol Version
	Software            string
	Toolchain           string
}{
	RuntimeHostProtocol,
	SoftwareVersion,
	Toolchain,
}

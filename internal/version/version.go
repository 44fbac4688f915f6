// Package version provides build and version information for protoflow.
package version

// Version is the current release version of protoflow.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/protoflow/internal/version.Version=x.y.z"
var Version = "0.3.0"

// ProjectFormat is the version of the project JSON document this build
// reads and writes.
const ProjectFormat = 1

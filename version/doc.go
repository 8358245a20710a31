// Package version carries build metadata for appcore binaries.
//
// Values are stamped at link time and fall back to what the Go toolchain
// records in the binary:
//
//	go build -ldflags "-X github.com/kbukum/appcore/version.Version=1.4.0"
package version

//go:build mage

// Package main provides build targets for affinity using Mage.
//
// Usage:
//
//	mage build     Compile the affinity CLI to bin/
//	mage test      Run all tests
//	mage testS3    Run the S3 integration tests (needs S3_BUCKET)
//	mage lint      Run golangci-lint
//	mage clean     Remove build artifacts
//	mage install   Install the CLI to GOPATH/bin
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "affinity"
	binaryDir  = "bin"
	cmdDir     = "./cmd/affinity"
)

// version is stamped into the binary; override with AFFINITY_VERSION.
func version() string {
	if v := os.Getenv("AFFINITY_VERSION"); v != "" {
		return v
	}
	if v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty"); err == nil && v != "" {
		return v
	}
	return "dev"
}

// Build compiles the affinity binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-v",
		"-ldflags", "-X main.version="+version(),
		"-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// TestS3 runs the S3 blob store tests against the bucket in S3_BUCKET.
func TestS3() error {
	if os.Getenv("S3_BUCKET") == "" {
		return mg.Fatal(1, "S3_BUCKET is not set")
	}
	return sh.RunV("go", "test", "-run", "Integration", "./blobstore/s3/...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV("go", "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	return sh.Copy(filepath.Join(gopath, "bin", binaryName), filepath.Join(binaryDir, binaryName))
}

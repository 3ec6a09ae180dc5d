//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binBase = "pesterchum-tui"
	pkgPath = "./cmd/pesterchum-tui"
	distDir = "dist"
)

var (
	goexe   = "go"
	version = "dev"
	commit  = "local"
	date    string
	ldFlags string
)

func init() {
	if runtime.GOOS == "windows" {
		goexe = "go.exe"
	}

	if v, err := sh.Output("git", "describe", "--tags", "--abbrev=0"); err == nil && v != "" {
		version = v
	}
	if c, err := sh.Output("git", "rev-parse", "--short", "HEAD"); err == nil && c != "" {
		commit = c
	}

	date = time.Now().UTC().Format(time.RFC3339)
	ldFlags = fmt.Sprintf("-s -w -X main.version=%s -X main.commit=%s -X main.date=%s",
		version, commit, date)
}

var Default = Build

// Build the binary for the host platform
func Build() error {
	out := binBase
	if runtime.GOOS == "windows" {
		out += ".exe"
	}
	return build(runtime.GOOS, runtime.GOARCH, out)
}

// Cross-compile release binaries into dist/
func Release() {
	mg.Deps(Test)
	mg.Deps(
		func() error { return build("linux", "amd64", dist(binBase+"-linux-amd64")) },
		func() error { return build("linux", "arm64", dist(binBase+"-linux-arm64")) },
		func() error { return build("windows", "amd64", dist(binBase+".exe")) },
		func() error { return build("darwin", "amd64", dist(binBase+"-macos-intel")) },
		func() error { return build("darwin", "arm64", dist(binBase+"-macos-arm")) },
	)
}

// Run the test suite with the race detector
func Test() error {
	return sh.RunV(goexe, "test", "-race", "-count=1", "./...")
}

// Run go vet
func Vet() error {
	return sh.RunV(goexe, "vet", "./...")
}

// Remove build output
func Clean() error {
	if err := os.RemoveAll(distDir); err != nil {
		return err
	}
	return sh.Rm(binBase)
}

func dist(name string) string {
	return filepath.Join(distDir, name)
}

func build(goos, goarch string, out string) error {
	env := map[string]string{
		"GOOS":        goos,
		"GOARCH":      goarch,
		"CGO_ENABLED": "0",
	}
	fmt.Printf("Building %s/%s → %s\n", goos, goarch, out)
	return sh.RunWithV(env, goexe, "build", "-trimpath", "-ldflags", ldFlags, "-o", out, pkgPath)
}

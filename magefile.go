//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "clara"
	mainPkg    = "./cmd/clara"
)

var Default = Build

func ldflags() string {
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || version == "" {
		version = "dev"
	}
	return fmt.Sprintf("-X github.com/mannyrayner/C-LARA-2/internal.Version=%s", version)
}

// Build compiles the clara binary into the repository root.
func Build() error {
	return sh.RunV("go", "build", "-ldflags", ldflags(), "-o", binaryName, mainPkg)
}

// Test runs all unit tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Race runs the tests with the race detector enabled.
func Race() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Vet runs go vet on all packages.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Check runs vet and the tests.
func Check() {
	mg.SerialDeps(Vet, Test)
}

// Install installs the binary into $GOPATH/bin.
func Install() error {
	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	fmt.Println("Installing to", filepath.Join(gopath, "bin", binaryName))
	return sh.RunV("go", "install", "-ldflags", ldflags(), mainPkg)
}

// Clean removes the build output.
func Clean() error {
	return os.RemoveAll(binaryName)
}

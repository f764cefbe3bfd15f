//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Extract builds the CLI and prints the fragments of path as YAML.
func Extract(path string) error {
	mg.Deps(Build)
	return sh.RunV("./bin/curt", "extract", "--format", "yaml", path)
}

//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Index builds the CLI and indexes the fragments of path into curt.db.
func Index(path string) error {
	mg.Deps(Build)
	return sh.RunV("./bin/curt", "store", "index", path)
}

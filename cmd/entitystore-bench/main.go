// Package main provides entitystore-bench, a CLI that provisions a backend and runs concurrent
// workload sessions against the entity store.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

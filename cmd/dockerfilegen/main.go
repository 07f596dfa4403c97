// SPDX-License-Identifier: MIT

// Command dockerfilegen regenerates the repository's Dockerfile from
// the typed recipe in internal/dockerfile.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/koski/dealsearch/internal/dockerfile"
)

func main() {
	out := flag.String("out", "Dockerfile", "output path")
	check := flag.Bool("check", false, "verify the file is up to date instead of writing")
	flag.Parse()

	recipe := dockerfile.Default()

	if *check {
		want, err := recipe.Render()
		if err != nil {
			fail(err)
		}
		// #nosec G304 -- CLI tool, path provided by user argument
		got, err := os.ReadFile(*out)
		if err != nil {
			fail(fmt.Errorf("read %s: %w", *out, err))
		}
		if string(want) != string(got) {
			fail(fmt.Errorf("%s is out of date, rerun dockerfilegen", *out))
		}
		return
	}

	if err := recipe.WriteFile(*out); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "dockerfilegen: %v\n", err)
	os.Exit(1)
}

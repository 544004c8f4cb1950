// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

// Command opine-validate checks survey definition files without
// starting the bot. It prints every issue found and exits nonzero if
// any file fails, which makes it suitable for CI and pre-deploy
// checks.
//
// Usage:
//
//	opine-validate surveys/
//	opine-validate surveys/psychotype.jsonc surveys/burnout.jsonc
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/pflag"

	"github.com/opine-hq/opine/bot"
	"github.com/opine-hq/opine/lib/version"
	"github.com/opine-hq/opine/surveydef"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		quiet       bool
		showVersion bool
	)
	pflag.BoolVar(&quiet, "quiet", false, "print only files that fail validation")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("opine-validate %s\n", version.Info())
		return 0
	}

	args := pflag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: opine-validate <dir-or-file>...")
		return 2
	}

	paths, err := collectPaths(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "error: no survey definition files found")
		return 2
	}

	seen := make(map[string]string)
	failed := 0
	for _, path := range paths {
		issues := validateFile(path, seen)
		if len(issues) == 0 {
			if !quiet {
				fmt.Printf("%s: ok\n", path)
			}
			continue
		}
		failed++
		fmt.Printf("%s:\n", path)
		for _, issue := range issues {
			fmt.Printf("  %s\n", issue)
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files failed validation\n", failed, len(paths))
		return 1
	}
	return 0
}

// collectPaths expands directory arguments into their definition
// files and passes file arguments through unchanged.
func collectPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		for _, pattern := range []string{"*.json", "*.jsonc"} {
			matches, err := filepath.Glob(filepath.Join(arg, pattern))
			if err != nil {
				return nil, err
			}
			paths = append(paths, matches...)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// validateFile parses and validates one definition. seen maps survey
// keys to the file that first declared them, so duplicates across
// files are reported too.
func validateFile(path string, seen map[string]string) []string {
	survey, err := surveydef.ReadFile(path)
	if err != nil {
		return []string{err.Error()}
	}

	issues := surveydef.Validate(survey, bot.Locales)

	if survey.Key != "" {
		if previous, ok := seen[survey.Key]; ok {
			issues = append(issues, fmt.Sprintf("duplicate survey key %q (already declared in %s)", survey.Key, previous))
		} else {
			seen[survey.Key] = path
		}
	}
	return issues
}

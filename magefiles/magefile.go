//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the dossier project using Mage.
//
// Usage:
//
//	mage build        Compile the dossier binary to bin/
//	mage install      Install dossier to GOPATH/bin
//	mage test:all     Run all tests
//	mage test:race    Run all tests with the race detector
//	mage test:cover   Write coverage.out and print a per-function summary
//	mage lint         Run gofmt, go vet and golangci-lint
//	mage clean        Remove build artifacts
//	mage stats        Print per-package Go LOC and test counts
package main

//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// sourceRoots are the trees that hold product code.
var sourceRoots = []string{"cmd", "internal", "pkg"}

// pkgStats is the line and test count for one package directory.
type pkgStats struct {
	Package string `json:"package"`
	Prod    int    `json:"go_loc_prod"`
	Test    int    `json:"go_loc_test"`
	Tests   int    `json:"tests"`
}

// Stats prints one JSON line per package followed by a total line.
func Stats() error {
	byDir := map[string]*pkgStats{}
	for _, root := range sourceRoots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") {
				return nil
			}
			lines, tests, err := scanGoFile(path)
			if err != nil {
				return err
			}
			dir := filepath.ToSlash(filepath.Dir(path))
			s, ok := byDir[dir]
			if !ok {
				s = &pkgStats{Package: dir}
				byDir[dir] = s
			}
			if strings.HasSuffix(path, "_test.go") {
				s.Test += lines
				s.Tests += tests
			} else {
				s.Prod += lines
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	total := pkgStats{Package: "total"}
	for _, d := range dirs {
		s := byDir[d]
		total.Prod += s.Prod
		total.Test += s.Test
		total.Tests += s.Tests
		if err := printJSON(s); err != nil {
			return err
		}
	}
	return printJSON(total)
}

// scanGoFile counts lines and top-level Test functions.
func scanGoFile(path string) (lines, tests int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		lines++
		if strings.HasPrefix(sc.Text(), "func Test") {
			tests++
		}
	}
	return lines, tests, sc.Err()
}

func printJSON(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(line))
	return nil
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package fileutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// scriptExtensions are the interpreter-run script types recognized when
// normalizing directory arguments. A path ending in one of these names a
// script file, not a directory.
var scriptExtensions = []string{".py", ".js"}

// IsScriptPath reports whether path names a Python or JavaScript script.
func IsScriptPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range scriptExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// NormalizeDirectoryArg validates a value that is expected to name a
// directory. A common misconfiguration points such arguments at a script
// file instead; when the path names an existing script file it is silently
// rewritten to the file's parent directory. An error naming the missing
// path is returned when the resulting path does not exist.
func NormalizeDirectoryArg(path string) (string, error) {
	dir := path
	if IsScriptPath(path) {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			dir = filepath.Dir(path)
		}
	}

	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return dir, fmt.Errorf("directory does not exist: %s", dir)
		}
		return dir, fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	return dir, nil
}

// Copyright 2025 Cabinet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package common holds the path conventions shared by the hierarchy store
// and the physical storage mapper. Stored relative paths always use forward
// slashes, never start or end with one, and "" means the owner's root.
package common

import (
	"path"
	"strings"
)

// NormalizePath cleans a stored relative path: forward slashes only, no
// leading or trailing separator, "" for the root.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimSuffix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// SplitPath splits a stored path into its components.
func SplitPath(p string) []string {
	p = NormalizePath(p)
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// JoinPath joins components into a normalized stored path.
func JoinPath(parts ...string) string {
	return NormalizePath(path.Join(parts...))
}

// ParentPath returns the parent of a stored path ("" at the root).
func ParentPath(p string) string {
	p = NormalizePath(p)
	if p == "" {
		return ""
	}
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

// BaseName returns the last component of a stored path.
func BaseName(p string) string {
	p = NormalizePath(p)
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// RebasePath rewrites p so that the oldPrefix ancestor segment becomes
// newPrefix. Used when a folder is renamed or moved: every descendant
// file's stored path must reflect the new ancestor location. Returns p
// unchanged when it is not under oldPrefix.
func RebasePath(p, oldPrefix, newPrefix string) string {
	p = NormalizePath(p)
	oldPrefix = NormalizePath(oldPrefix)
	newPrefix = NormalizePath(newPrefix)
	if oldPrefix == "" {
		return JoinPath(newPrefix, p)
	}
	if p == oldPrefix {
		return newPrefix
	}
	if strings.HasPrefix(p, oldPrefix+"/") {
		return JoinPath(newPrefix, strings.TrimPrefix(p, oldPrefix+"/"))
	}
	return p
}

// Extension returns the lowercase extension of a name without the dot,
// or "" when the name has none.
func Extension(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// EscapesRoot reports whether a relative path climbs out of its root once
// cleaned. A defense against "../" traversal in user-influenced names.
func EscapesRoot(p string) bool {
	p = strings.ReplaceAll(p, "\\", "/")
	cleaned := path.Clean("/" + p)
	// After rooting and cleaning, any remaining ".." means the original
	// tried to climb above the root.
	return cleaned == "/.." || strings.HasPrefix(cleaned, "/../")
}

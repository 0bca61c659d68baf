// Package projects is the external-collaborator seam the spec calls out
// for Maven/Gradle project discovery (§1 Out of scope: "the walk's output
// is merely a set of candidate project roots"). This package does not
// walk build files; it normalizes and deduplicates whatever root paths the
// caller (an IDE integration, a CLI flag, a workspace config) already
// knows about, plus the multi-module "core" submodule heuristic §4.7 asks
// request-candidate inference to apply when searching for controllers.
package projects

import (
	"path/filepath"
	"strings"
)

// RootProvider supplies the candidate project roots a planner call should
// search. The default implementation below treats the configured roots as
// authoritative; a real IDE/build-tool integration can implement the same
// interface with an actual Maven/Gradle reactor walk without requiring any
// planner code to change.
type RootProvider interface {
	Roots() []string
}

// StaticRoots is a RootProvider that always returns a fixed, deduplicated
// list — the planner's default when no build-tool walk is wired in.
type StaticRoots []string

// Roots returns the deduplicated, cleaned root list.
func (s StaticRoots) Roots() []string {
	return Dedupe([]string(s))
}

// Dedupe cleans and deduplicates a list of filesystem paths while
// preserving first-seen order.
func Dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		p = filepath.Clean(strings.TrimSpace(p))
		if p == "" || p == "." || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// SearchRoots builds the §4.7 search-root list for one project root: the
// project root itself, its parent when the project directory name
// suggests a multi-module "core" submodule, and workspaceRoot as a
// deduplicated last resort.
func SearchRoots(projectRoot, workspaceRoot string) []string {
	roots := []string{projectRoot}
	if suggestsCoreSubmodule(projectRoot) {
		roots = append(roots, filepath.Dir(projectRoot))
	}
	if workspaceRoot != "" {
		roots = append(roots, workspaceRoot)
	}
	return Dedupe(roots)
}

// coreSubmoduleNames are directory-name suffixes that suggest the project
// root is one module of a multi-module build whose siblings (service/web
// layers) live under the parent directory.
var coreSubmoduleNames = []string{"-core", "core", "-domain", "-model"}

func suggestsCoreSubmodule(projectRoot string) bool {
	name := strings.ToLower(filepath.Base(projectRoot))
	for _, suffix := range coreSubmoduleNames {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

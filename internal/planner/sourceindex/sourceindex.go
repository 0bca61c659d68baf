// Package sourceindex builds a heuristic, regex-based index of a source
// tree: per file, the declared package, the primary type name, and method
// declarations with their 1-based starting line. It is intentionally not a
// parser — recall on well-formatted source is its only guarantee, and
// callers are expected to tolerate false positives.
package sourceindex

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Method is one heuristically recognized method declaration.
type Method struct {
	Name      string
	Line      int // 1-based
	Signature string
}

// FileEntry is the per-file extraction result.
type FileEntry struct {
	Path        string
	Package     string
	PrimaryType string
	Methods     []Method
}

// Index is the ephemeral, per-call result of a source walk. It is never
// persisted; callers rebuild it on demand.
type Index struct {
	Files []FileEntry
}

// defaultExcludeDirs are skipped during the breadth-first walk: version
// control metadata and build output directories that never contain source
// worth indexing.
var defaultExcludeDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
	"node_modules": true, "target": true, "build": true,
	"out": true, "dist": true, ".idea": true, ".gradle": true,
	".settings": true, "bin": true,
}

var (
	packageRe = regexp.MustCompile(`^\s*package\s+([\w.]+)\s*;`)
	typeRe    = regexp.MustCompile(`^\s*(?:@\w+(?:\([^)]*\))?\s*)*(?:public|private|protected)?\s*(?:static\s+|final\s+|abstract\s+)*(?:class|interface|enum|record)\s+(\w+)`)
	// methodRe recognizes a method declaration terminating in "{" or
	// "throws": optional annotations/modifiers, a return type, a name, a
	// parenthesized parameter list, optional throws clause.
	methodRe = regexp.MustCompile(`^\s*(?:@\w+(?:\([^)]*\))?\s*)*(?:public|private|protected)\s+(?:static\s+|final\s+|synchronized\s+|abstract\s+|default\s+)*[\w<>\[\],.?\s]+?\s+(\w+)\s*\([^)]*\)\s*(?:throws\s+[\w.,\s]+)?\s*\{?\s*$`)
)

// controlKeywords are rejected even when methodRe otherwise matches, since
// the regex has no real grammar and will happily match a control-flow
// statement that merely resembles a method header.
var controlKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
}

// Build walks root breadth-first, skipping excludeDirs (merged with the
// built-in VCS/build-output set), and indexes every ".java" file found.
// Per-file read failures are skipped, not fatal.
func Build(root string, excludeDirs []string, logger zerolog.Logger) (*Index, error) {
	excludes := make(map[string]bool, len(defaultExcludeDirs)+len(excludeDirs))
	for k := range defaultExcludeDirs {
		excludes[k] = true
	}
	for _, d := range excludeDirs {
		excludes[d] = true
	}

	idx := &Index{}
	queue := []string{root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Warn().Str("dir", dir).Err(err).Msg("skipping unreadable directory")
			continue
		}
		for _, e := range entries {
			name := e.Name()
			full := filepath.Join(dir, name)
			if e.IsDir() {
				if excludes[name] || strings.HasPrefix(name, ".") {
					continue
				}
				queue = append(queue, full)
				continue
			}
			if !strings.HasSuffix(name, ".java") {
				continue
			}
			entry, err := indexFile(full)
			if err != nil {
				logger.Warn().Str("file", full).Err(err).Msg("skipping unreadable file")
				continue
			}
			idx.Files = append(idx.Files, entry)
		}
	}
	return idx, nil
}

func indexFile(path string) (FileEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileEntry{}, err
	}
	defer f.Close()

	entry := FileEntry{Path: path}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()

		if entry.Package == "" {
			if m := packageRe.FindStringSubmatch(text); m != nil {
				entry.Package = m[1]
			}
		}
		if entry.PrimaryType == "" {
			if m := typeRe.FindStringSubmatch(text); m != nil {
				entry.PrimaryType = m[1]
			}
		}
		if m := methodRe.FindStringSubmatch(text); m != nil {
			name := m[1]
			if controlKeywords[name] {
				continue
			}
			entry.Methods = append(entry.Methods, Method{
				Name:      name,
				Line:      line,
				Signature: strings.TrimSpace(text),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return entry, err
	}
	return entry, nil
}

// Package targetinfer scores indexed methods against coarse textual hints
// (class name, method name, optional source line) and ranks the results
// into probe keys the runtime and verifier can act on.
package targetinfer

import (
	"sort"
	"strings"

	"github.com/rcourtman/reprod-probe/internal/planner/sourceindex"
)

// Hints are the caller-supplied coarse identifiers for the target code
// path. LineHint is nil when no line was supplied.
type Hints struct {
	ClassHint  string
	MethodHint string
	LineHint   *int
}

// Target is one scored candidate. ReturnsBoolean is a signature-text
// heuristic, not a type-checked fact.
type Target struct {
	File           string
	Package        string
	Class          string
	Method         string
	Line           int
	Signature      string
	ReturnsBoolean bool
	Key            string
	Confidence     int
	Reasons        []string
}

const maxConfidence = 100

// Infer scores every indexed method against hints and returns the top N by
// confidence descending, ties broken by smaller starting line. Per §4.6's
// guardrail: when a textual hint (class or method) was supplied but neither
// matched a given candidate, that candidate is dropped entirely rather than
// falling back to a line-only match.
func Infer(idx *sourceindex.Index, hints Hints, topN int) []Target {
	hintGiven := hints.ClassHint != "" || hints.MethodHint != ""

	var out []Target
	for _, file := range idx.Files {
		fileBase := baseNameNoExt(file.Path)
		for _, m := range file.Methods {
			score := 0
			var reasons []string
			classMatched, methodMatched := false, false

			if hints.ClassHint != "" {
				switch {
				case file.PrimaryType == hints.ClassHint:
					score += 45
					classMatched = true
					reasons = append(reasons, "exact class name match")
				case strings.Contains(file.PrimaryType, hints.ClassHint) || strings.Contains(fileBase, hints.ClassHint):
					score += 25
					classMatched = true
					reasons = append(reasons, "substring class/file name match")
				}
			}

			if hints.MethodHint != "" {
				switch {
				case m.Name == hints.MethodHint:
					score += 40
					methodMatched = true
					reasons = append(reasons, "exact method name match")
				case strings.Contains(m.Name, hints.MethodHint) || strings.Contains(hints.MethodHint, m.Name):
					score += 22
					methodMatched = true
					reasons = append(reasons, "substring method name match")
				}
			}

			if hintGiven && !classMatched && !methodMatched {
				continue
			}

			if hints.LineHint != nil {
				d := *hints.LineHint - m.Line
				if d < 0 {
					d = -d
				}
				switch {
				case d == 0:
					score += 25
					reasons = append(reasons, "exact line match")
				case d <= 3:
					score += 16
					reasons = append(reasons, "line within 3")
				case d <= 12:
					score += 8
					reasons = append(reasons, "line within 12")
				}
			}

			if score > maxConfidence {
				score = maxConfidence
			}

			key := m.Name
			class := file.PrimaryType
			if file.Package != "" && file.PrimaryType != "" {
				class = file.Package + "." + file.PrimaryType
				key = class + "#" + m.Name
			}

			out = append(out, Target{
				File:           file.Path,
				Package:        file.Package,
				Class:          class,
				Method:         m.Name,
				Line:           m.Line,
				Signature:      m.Signature,
				ReturnsBoolean: strings.Contains(m.Signature, "boolean "),
				Key:            key,
				Confidence:     score,
				Reasons:        reasons,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Line < out[j].Line
	})

	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func baseNameNoExt(path string) string {
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	return strings.TrimSuffix(base, ".java")
}

// Package openapi loads the first available OpenAPI/Swagger document under
// a project root and exposes just enough of it — operations, security
// requirements — for the request-candidate inference and auth-resolution
// components to consult.
package openapi

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// candidatePaths are tried in order, relative to the project root, the way
// the planner's OpenAPI fallback is specified.
var candidatePaths = []string{
	"docs/openapi/openapi.yaml",
	"docs/openapi/openapi.yml",
	"openapi.yaml",
	"openapi.yml",
	"swagger.yaml",
	"swagger.yml",
}

// SecurityScheme is the minimal shape of a components.securitySchemes
// entry this package understands.
type SecurityScheme struct {
	Type   string // "http", "apiKey", ...
	Scheme string // "bearer", "basic" (when Type == "http")
	In     string // "cookie", "header", "query" (when Type == "apiKey")
}

// Operation is one (method, path) entry from the "paths" section.
type Operation struct {
	Method         string
	Path           string
	OperationID    string
	Security       bool // true when this operation or the document's global security applies
	SecuritySchemes []string
	RequestBody    map[string]any
}

// Document is the minimal OpenAPI shape this package understands.
type Document struct {
	Operations      []Operation
	SecuritySchemes map[string]SecurityScheme
}

// Strategy classifies op's declared security scheme as "bearer", "basic",
// "cookie", or "unknown" when no recognized scheme is attached.
func (d Document) Strategy(op Operation) string {
	for _, name := range op.SecuritySchemes {
		scheme, ok := d.SecuritySchemes[name]
		if !ok {
			continue
		}
		switch {
		case scheme.Type == "http" && scheme.Scheme == "bearer":
			return "bearer"
		case scheme.Type == "http" && scheme.Scheme == "basic":
			return "basic"
		case scheme.Type == "apiKey" && scheme.In == "cookie":
			return "cookie"
		}
	}
	return "unknown"
}

// Find locates the first candidate OpenAPI file under root and parses it.
// ok is false when no candidate path holds a parseable document.
func Find(root string) (doc Document, path string, ok bool) {
	for _, rel := range candidatePaths {
		full := filepath.Join(root, rel)
		if data, err := os.ReadFile(full); err == nil {
			if d, parseErr := parse(data); parseErr == nil {
				return d, full, true
			}
		}
	}
	return Document{}, "", false
}

func parse(data []byte) (Document, error) {
	var raw struct {
		Security   []map[string]any `yaml:"security"`
		Components struct {
			SecuritySchemes map[string]struct {
				Type   string `yaml:"type"`
				Scheme string `yaml:"scheme"`
				In     string `yaml:"in"`
			} `yaml:"securitySchemes"`
		} `yaml:"components"`
		Paths map[string]map[string]struct {
			OperationID string           `yaml:"operationId"`
			Security    []map[string]any `yaml:"security"`
			RequestBody map[string]any   `yaml:"requestBody"`
		} `yaml:"paths"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Document{}, err
	}

	doc := Document{SecuritySchemes: make(map[string]SecurityScheme, len(raw.Components.SecuritySchemes))}
	for name, s := range raw.Components.SecuritySchemes {
		doc.SecuritySchemes[name] = SecurityScheme{Type: s.Type, Scheme: s.Scheme, In: s.In}
	}

	globalNames := securityNames(raw.Security)
	for path, methods := range raw.Paths {
		for method, op := range methods {
			names := securityNames(op.Security)
			if len(names) == 0 {
				names = globalNames
			}
			doc.Operations = append(doc.Operations, Operation{
				Method:          strings.ToUpper(method),
				Path:            path,
				OperationID:     op.OperationID,
				Security:        len(globalNames) > 0 || len(names) > 0,
				SecuritySchemes: names,
				RequestBody:     op.RequestBody,
			})
		}
	}
	return doc, nil
}

func securityNames(reqs []map[string]any) []string {
	var names []string
	for _, req := range reqs {
		for name := range req {
			names = append(names, name)
		}
	}
	return names
}

// FindOperationByID returns the first operation whose operationId matches
// id, trying each candidate in candidateIDs in order.
func (d Document) FindOperationByID(candidateIDs ...string) (Operation, bool) {
	for _, id := range candidateIDs {
		if id == "" {
			continue
		}
		for _, op := range d.Operations {
			if op.OperationID == id {
				return op, true
			}
		}
	}
	return Operation{}, false
}

// FindOperationByPath returns the first operation matching path exactly.
func (d Document) FindOperationByPath(path string) (Operation, bool) {
	for _, op := range d.Operations {
		if op.Path == path {
			return op, true
		}
	}
	return Operation{}, false
}

// loginKeywords are the substrings a login-hint discovery pass looks for in
// an operation's path.
var loginKeywords = []string{"login", "signin", "sign-in", "token", "auth", "authenticate", "session"}

// FindLoginHint walks POST operations looking for one whose path matches a
// login keyword and whose request body mentions a password field.
func (d Document) FindLoginHint() (Operation, bool) {
	for _, op := range d.Operations {
		if op.Method != "POST" {
			continue
		}
		lowerPath := strings.ToLower(op.Path)
		matchesKeyword := false
		for _, kw := range loginKeywords {
			if strings.Contains(lowerPath, kw) {
				matchesKeyword = true
				break
			}
		}
		if !matchesKeyword {
			continue
		}
		if requestBodyMentionsPassword(op.RequestBody) {
			return op, true
		}
	}
	return Operation{}, false
}

func requestBodyMentionsPassword(body map[string]any) bool {
	if body == nil {
		return false
	}
	return strings.Contains(strings.ToLower(toYAMLString(body)), "password")
}

func toYAMLString(v any) string {
	b, err := yaml.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// HasEmailField reports whether op's request body declares an "email"
// property, used to decide the login-hint template's field names.
func HasEmailField(op Operation) bool {
	return strings.Contains(strings.ToLower(toYAMLString(op.RequestBody)), "email")
}

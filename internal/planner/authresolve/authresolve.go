// Package authresolve combines OpenAPI security declarations, controller
// security annotations, and explicitly supplied credentials into an auth
// status the execution-plan builder can act on. No ambient environment
// variable is ever consulted: credentials arrive only through Credentials.
package authresolve

import (
	"encoding/base64"
	"regexp"

	"github.com/rcourtman/reprod-probe/internal/planner/openapi"
	"golang.org/x/oauth2"
)

// Strategy is the auth mechanism a resolved endpoint expects.
type Strategy string

const (
	StrategyNone    Strategy = "none"
	StrategyBearer  Strategy = "bearer"
	StrategyBasic   Strategy = "basic"
	StrategyCookie  Strategy = "cookie"
	StrategyUnknown Strategy = "unknown"
)

// Status is the outcome of auth resolution.
type Status string

const (
	StatusNotRequired    Status = "not_required"
	StatusAutoResolved   Status = "auto_resolved"
	StatusNeedsUserInput Status = "needs_user_input"
	StatusUnknown        Status = "unknown"
)

// Credentials are the only source of secret material this package ever
// consults — deliberately never an environment variable.
type Credentials struct {
	Username  string
	Password  string
	AuthToken string
}

// LoginHint points to the operation most likely to issue credentials.
type LoginHint struct {
	Method      string
	Path        string
	BodyTemplate map[string]string
}

// Result is the fully resolved auth decision for one endpoint.
type Result struct {
	Required       bool
	Status         Status
	Strategy       Strategy
	RequestHeaders map[string]string
	Missing        []string
	LoginHint      *LoginHint
	Notes          []string
}

var securityAnnotationPattern = regexp.MustCompile(`(?i)@(PreAuthorize|Secured|RolesAllowed|SecurityRequirement)\b`)

// Resolve determines the auth requirement for endpointPath using the first
// OpenAPI document found under projectRoot, the controller source text,
// and creds. discoverLoginHint additionally runs the OpenAPI login-hint
// walk described in §4.8 step 5.
func Resolve(projectRoot, endpointPath, controllerSource string, creds Credentials, discoverLoginHint bool) Result {
	doc, _, hasOpenAPI := openapi.Find(projectRoot)

	required := false
	strategy := StrategyUnknown

	if hasOpenAPI {
		if op, ok := doc.FindOperationByPath(endpointPath); ok && op.Security {
			required = true
			strategy = Strategy(doc.Strategy(op))
		}
	}
	if securityAnnotationPattern.MatchString(controllerSource) {
		required = true
	}

	result := Result{Required: required}

	switch {
	case !required:
		result.Status = StatusNotRequired
		result.Strategy = StrategyNone

	case strategy == StrategyBasic:
		if creds.Username != "" && creds.Password != "" {
			token := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password))
			result.Status = StatusAutoResolved
			result.Strategy = StrategyBasic
			result.RequestHeaders = map[string]string{"Authorization": "Basic " + token}
		} else {
			result.Status = StatusNeedsUserInput
			result.Strategy = StrategyBasic
			result.Missing = missingBasicFields(creds)
		}

	case creds.AuthToken != "":
		result.Status = StatusAutoResolved
		result.Strategy = strategy
		if strategy == StrategyCookie {
			result.RequestHeaders = map[string]string{"Cookie": "session=" + creds.AuthToken}
		} else {
			tok := &oauth2.Token{AccessToken: creds.AuthToken, TokenType: "Bearer"}
			result.RequestHeaders = map[string]string{"Authorization": "Bearer " + tok.AccessToken}
		}

	default:
		result.Status = StatusNeedsUserInput
		result.Strategy = strategy
		result.Missing = missingBearerFields(creds)
	}

	if discoverLoginHint && hasOpenAPI {
		if op, ok := doc.FindLoginHint(); ok {
			hint := &LoginHint{Method: op.Method, Path: op.Path}
			if openapi.HasEmailField(op) {
				hint.BodyTemplate = map[string]string{"email": "value", "password": "value"}
			} else {
				hint.BodyTemplate = map[string]string{"username": "value", "password": "value"}
			}
			result.LoginHint = hint
		}
	}

	return result
}

func missingBasicFields(creds Credentials) []string {
	var missing []string
	if creds.Username == "" {
		missing = append(missing, "username")
	}
	if creds.Password == "" {
		missing = append(missing, "password")
	}
	return missing
}

func missingBearerFields(creds Credentials) []string {
	missing := []string{"authToken"}
	if creds.Username == "" {
		missing = append(missing, "username")
	}
	if creds.Password == "" {
		missing = append(missing, "password")
	}
	return missing
}

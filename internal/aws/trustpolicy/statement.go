package trustpolicy

import (
	"regexp"
	"strings"
)

type PrincipalType string

const (
	PrincipalTypeAny       PrincipalType = "*"
	PrincipalTypeAWS       PrincipalType = "AWS"
	PrincipalTypeService   PrincipalType = "Service"
	PrincipalTypeFederated PrincipalType = "Federated"
)

type Principal struct {
	Type PrincipalType
	ID   string
}

type Statement struct {
	Effect     Decision
	Actions    []string
	Principals []Principal
	Conditions []*Condition
}

// Evaluate returns the statement's effect when it applies to the request, and
// no decision otherwise
func (s *Statement) Evaluate(request *Request) Decision {
	if !s.matchesAction(request.Action) || !s.matchesPrincipal(request.Principal) {
		return DecisionNoDecision
	}
	// conditions are AND'ed
	for _, condition := range s.Conditions {
		if !condition.Matches(request.ContextKeys) {
			return DecisionNoDecision
		}
	}
	return s.Effect
}

func (s *Statement) matchesAction(action string) bool {
	for _, candidate := range s.Actions {
		if wildcardMatch(strings.ToLower(candidate), strings.ToLower(action)) {
			return true
		}
	}
	return false
}

func (s *Statement) matchesPrincipal(principal Principal) bool {
	for _, candidate := range s.Principals {
		if candidate.Type == PrincipalTypeAny {
			return true
		}
		if candidate.Type == principal.Type && wildcardMatch(candidate.ID, principal.ID) {
			return true
		}
	}
	return false
}

// wildcardMatch implements IAM wildcards: '*' matches any sequence of characters
// (including '/' and ':'), '?' matches exactly one character
func wildcardMatch(pattern string, value string) bool {
	if !strings.ContainsAny(pattern, "*?") {
		return pattern == value
	}
	var expression strings.Builder
	expression.WriteString("^")
	for _, char := range pattern {
		switch char {
		case '*':
			expression.WriteString(".*")
		case '?':
			expression.WriteString(".")
		default:
			expression.WriteString(regexp.QuoteMeta(string(char)))
		}
	}
	expression.WriteString("$")
	matched, err := regexp.MatchString(expression.String(), value)
	return err == nil && matched
}

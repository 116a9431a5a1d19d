// Package trustpolicy evaluates IAM role trust policies, i.e. decides whether a
// principal may assume a role. It covers what IAM Roles for Service Accounts
// (IRSA) trust policies use: Allow/Deny statements, actions, principals and
// string conditions.
package trustpolicy

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

type Decision string

const (
	DecisionAllow      Decision = "ALLOW"
	DecisionDeny       Decision = "DENY"
	DecisionNoDecision Decision = ""
)

// Request describes an attempt to assume a role
type Request struct {
	Action      string
	Principal   Principal
	ContextKeys map[string]string
}

type Policy struct {
	Statements []*Statement
}

// Evaluate applies IAM evaluation logic: an explicit deny wins over any allow,
// and no matching allow is an implicit deny.
func (p *Policy) Evaluate(request *Request) Decision {
	allowed := false
	for _, statement := range p.Statements {
		switch statement.Evaluate(request) {
		case DecisionDeny:
			return DecisionDeny
		case DecisionAllow:
			allowed = true
		}
	}
	if allowed {
		return DecisionAllow
	}
	return DecisionDeny
}

type rawStatement struct {
	Effect    string                            `json:"Effect"`
	Action    interface{}                       `json:"Action"`
	Principal interface{}                       `json:"Principal"`
	Condition map[string]map[string]interface{} `json:"Condition"`
}

type rawPolicy struct {
	Statement json.RawMessage `json:"Statement"`
}

// Parse parses a trust policy document. IAM returns documents URL-encoded, those
// are decoded first.
func Parse(document string) (*Policy, error) {
	if !strings.HasPrefix(strings.TrimSpace(document), "{") {
		decoded, err := url.QueryUnescape(document)
		if err != nil {
			return nil, fmt.Errorf("unable to decode trust policy: %w", err)
		}
		document = decoded
	}

	var raw rawPolicy
	if err := json.Unmarshal([]byte(document), &raw); err != nil {
		return nil, fmt.Errorf("unable to parse trust policy from JSON: %w", err)
	}

	// "Statement" is either a single object or a list of objects
	var rawStatements []rawStatement
	if err := json.Unmarshal(raw.Statement, &rawStatements); err != nil {
		var single rawStatement
		if errSingle := json.Unmarshal(raw.Statement, &single); errSingle != nil {
			return nil, fmt.Errorf("unable to parse trust policy statements: %w", err)
		}
		rawStatements = []rawStatement{single}
	}

	policy := &Policy{}
	for i := range rawStatements {
		statement, err := parseStatement(&rawStatements[i])
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		policy.Statements = append(policy.Statements, statement)
	}
	return policy, nil
}

func parseStatement(raw *rawStatement) (*Statement, error) {
	statement := &Statement{}
	switch strings.ToLower(raw.Effect) {
	case "allow":
		statement.Effect = DecisionAllow
	case "deny":
		statement.Effect = DecisionDeny
	default:
		return nil, fmt.Errorf("invalid effect: %q", raw.Effect)
	}

	actions, err := toStringSlice(raw.Action)
	if err != nil {
		return nil, fmt.Errorf("invalid action: %w", err)
	}
	statement.Actions = actions

	principals, err := parsePrincipals(raw.Principal)
	if err != nil {
		return nil, err
	}
	statement.Principals = principals

	for operator, keys := range raw.Condition {
		for key, rawValues := range keys {
			values, err := toStringSlice(rawValues)
			if err != nil {
				return nil, fmt.Errorf("invalid values for condition %s on %s: %w", operator, key, err)
			}
			statement.Conditions = append(statement.Conditions, &Condition{Operator: operator, Key: key, Values: values})
		}
	}
	return statement, nil
}

func parsePrincipals(raw interface{}) ([]Principal, error) {
	switch principal := raw.(type) {
	case string:
		if principal != "*" {
			return nil, fmt.Errorf("invalid principal: %q", principal)
		}
		return []Principal{{Type: PrincipalTypeAny}}, nil
	case map[string]interface{}:
		var principals []Principal
		for principalType, rawIDs := range principal {
			ids, err := toStringSlice(rawIDs)
			if err != nil {
				return nil, fmt.Errorf("invalid %s principal: %w", principalType, err)
			}
			for _, id := range ids {
				principals = append(principals, Principal{Type: PrincipalType(principalType), ID: id})
			}
		}
		return principals, nil
	default:
		return nil, fmt.Errorf("invalid principal: %v", raw)
	}
}

func toStringSlice(value interface{}) ([]string, error) {
	switch typed := value.(type) {
	case string:
		return []string{typed}, nil
	case []interface{}:
		values := make([]string, 0, len(typed))
		for _, item := range typed {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%v is not a string", item)
			}
			values = append(values, s)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("%v is neither a string nor a list of strings", value)
	}
}

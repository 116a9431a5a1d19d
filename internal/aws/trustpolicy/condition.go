package trustpolicy

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

type Condition struct {
	Operator string
	Key      string
	Values   []string
}

type operator struct {
	match   func(input string, value string) bool
	negated bool
}

var operators = map[string]operator{
	"stringequals":              {match: func(input, value string) bool { return input == value }},
	"stringequalsignorecase":    {match: strings.EqualFold},
	"stringlike":                {match: stringLike},
	"stringnotequals":           {match: func(input, value string) bool { return input == value }, negated: true},
	"stringnotequalsignorecase": {match: strings.EqualFold, negated: true},
	"stringnotlike":             {match: stringLike, negated: true},
}

const (
	forAnyValuePrefix  = "foranyvalue:"
	forAllValuesPrefix = "forallvalues:"
	ifExistsSuffix     = "ifexists"
)

func stringLike(input string, pattern string) bool {
	return wildcardMatch(pattern, input)
}

// Matches reports whether the request context satisfies the condition. Values of a
// single condition are OR'ed; condition keys are case-insensitive. Context keys are
// single-valued, so ForAnyValue and ForAllValues only differ on missing keys.
// Unsupported operators never match.
func (c *Condition) Matches(contextKeys map[string]string) bool {
	name := strings.ToLower(c.Operator)
	forAllValues := strings.HasPrefix(name, forAllValuesPrefix)
	name = strings.TrimPrefix(strings.TrimPrefix(name, forAnyValuePrefix), forAllValuesPrefix)
	ifExists := strings.HasSuffix(name, ifExistsSuffix)
	name = strings.TrimSuffix(name, ifExistsSuffix)

	op, known := operators[name]
	if !known {
		log.Debugf("Trust policy condition operator %s is not evaluated", c.Operator)
		return false
	}
	input, present := lookupCaseInsensitive(contextKeys, c.Key)
	if !present {
		// a missing key only satisfies negated, IfExists and ForAllValues operators
		return op.negated || ifExists || forAllValues
	}

	for _, value := range c.Values {
		if op.match(input, value) {
			return !op.negated
		}
	}
	return op.negated
}

func lookupCaseInsensitive(entries map[string]string, key string) (string, bool) {
	if value, ok := entries[key]; ok {
		return value, true
	}
	for candidate, value := range entries {
		if strings.EqualFold(candidate, key) {
			return value, true
		}
	}
	return "", false
}

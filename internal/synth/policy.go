package synth

import "fmt"

// DefaultPolicy decides what Build does with an unset optional parameter.
type DefaultPolicy uint8

const (
	// PolicyDeclared substitutes the declaration's own default expression.
	PolicyDeclared DefaultPolicy = iota
	// PolicyExplicit ignores declared defaults: every parameter is required.
	PolicyExplicit
)

func (p DefaultPolicy) String() string {
	if p == PolicyExplicit {
		return "explicit"
	}
	return "declared"
}

func ParseDefaultPolicy(s string) (DefaultPolicy, error) {
	switch s {
	case "", "declared":
		return PolicyDeclared, nil
	case "explicit":
		return PolicyExplicit, nil
	}
	return PolicyDeclared, fmt.Errorf("unknown default policy %q (want declared or explicit)", s)
}

package eventguard

import (
	"fmt"
	"strings"
)

// ParseStatus validates a lifecycle status name, tolerating case.
func ParseStatus(s string) (Status, error) {
	v := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Statuses() {
		if v == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// ParseAction validates an action name, tolerating case.
func ParseAction(s string) (Action, error) {
	v := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Actions() {
		if v == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// ParseCapability validates a capability name, tolerating case.
func ParseCapability(s string) (Capability, error) {
	v := Capability(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Capabilities() {
		if v == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown capability %q", s)
}

// ParseOutcome validates an audit outcome name, tolerating case.
func ParseOutcome(s string) (Outcome, error) {
	v := Outcome(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case OutcomeAllowed, OutcomeDenied, OutcomeApproved, OutcomeAttempted:
		return v, nil
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

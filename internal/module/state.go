package module

import (
	"fmt"
	"strings"
)

// ModuleState is the runtime state of a module name.
type ModuleState int

const (
	StateUnknown ModuleState = iota
	StateEnabled
	StateDisabled
	// StateDefault is never set explicitly; resolution assigns it to
	// streams that match the default stream of a module with no explicit
	// enable or disable.
	StateDefault
)

func (s ModuleState) String() string {
	switch s {
	case StateEnabled:
		return "ENABLED"
	case StateDisabled:
		return "DISABLED"
	case StateDefault:
		return "DEFAULT"
	default:
		return "UNKNOWN"
	}
}

// ParseModuleState is the inverse of ModuleState.String. It accepts any case.
func ParseModuleState(s string) (ModuleState, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "UNKNOWN":
		return StateUnknown, nil
	case "ENABLED":
		return StateEnabled, nil
	case "DISABLED":
		return StateDisabled, nil
	case "DEFAULT":
		return StateDefault, nil
	}
	return StateUnknown, fmt.Errorf("invalid module state %q", s)
}

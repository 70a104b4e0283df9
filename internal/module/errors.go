package module

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// NoSuchModuleError is returned for a module name that was never observed.
type NoSuchModuleError struct {
	Name string
}

func (e *NoSuchModuleError) Error() string {
	return "no such module: " + e.Name
}

type NoSuchStreamError struct {
	Name   string
	Stream string
}

func (e *NoSuchStreamError) Error() string {
	return fmt.Sprintf("no such stream: %s:%s", e.Name, e.Stream)
}

type NoEnabledStreamError struct {
	Name string
}

func (e *NoEnabledStreamError) Error() string {
	return "no enabled stream for module: " + e.Name
}

type NoSuchProfileError struct {
	Name    string
	Stream  string
	Profile string
}

func (e *NoSuchProfileError) Error() string {
	return fmt.Sprintf("no such profile: %s:%s/%s", e.Name, e.Stream, e.Profile)
}

// NoMatchingStreamError is raised by enable, disable and friends when the
// request matches no module package. It is a warning: batch callers may
// continue, single commands usually should not.
type NoMatchingStreamError struct {
	Name   string
	Stream string
}

func (e *NoMatchingStreamError) Error() string {
	if e.Stream == "" {
		return "no module packages match " + e.Name
	}
	return fmt.Sprintf("no module packages match %s:%s", e.Name, e.Stream)
}

func (e *NoMatchingStreamError) Warning() bool { return true }

// DefaultsConflictError reports defaults documents that declare different
// default streams for one module at the same top priority.
type DefaultsConflictError struct {
	Module   string
	Priority int
	Streams  []string
}

func (e *DefaultsConflictError) Error() string {
	return fmt.Sprintf("conflicting default streams for module %s at priority %d: %s",
		e.Module, e.Priority, strings.Join(e.Streams, ", "))
}

// NotYetResolvedError is returned by defaults queries made before Resolve.
type NotYetResolvedError struct{}

func (e *NotYetResolvedError) Error() string {
	return "module defaults queried before resolve"
}

type InvalidSpecError struct {
	Spec string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid module spec %q", e.Spec)
}

type warning interface {
	Warning() bool
}

// IsWarning reports whether err is non-nil and every error aggregated in it
// is a warning.
func IsWarning(err error) bool {
	if err == nil {
		return false
	}
	for _, e := range multierr.Errors(err) {
		var w warning
		if !errors.As(e, &w) || !w.Warning() {
			return false
		}
	}
	return true
}

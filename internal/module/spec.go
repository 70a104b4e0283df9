package module

import (
	"regexp"
	"strconv"
)

// Spec is a parsed module specification of the form
// NAME[:STREAM[:VERSION[:CONTEXT]]][::ARCH][/PROFILE]. Empty fields and a
// Version of -1 match anything.
type Spec struct {
	Name    string
	Stream  string
	Version int64
	Context string
	Arch    string
	Profile string
}

const (
	reName    = `(?P<name>[-\w.+]+)`
	reStream  = `(?P<stream>[-\w.+]+)`
	reVersion = `(?P<version>[0-9]+)`
	reContext = `(?P<context>[0-9a-zA-Z]+)`
	reArch    = `(?P<arch>[-\w.+]+)`
	reProfile = `(?P<profile>[-\w.+]*)`
)

// most specific form first
var specForms = []*regexp.Regexp{
	regexp.MustCompile(`^` + reName + `:` + reStream + `:` + reVersion + `:` + reContext + `:` + reArch + `/` + reProfile + `$`),
	regexp.MustCompile(`^` + reName + `:` + reStream + `:` + reVersion + `:` + reContext + `:` + reArch + `$`),
	regexp.MustCompile(`^` + reName + `:` + reStream + `:` + reVersion + `::` + reArch + `/` + reProfile + `$`),
	regexp.MustCompile(`^` + reName + `:` + reStream + `:` + reVersion + `::` + reArch + `$`),
	regexp.MustCompile(`^` + reName + `:` + reStream + `::` + reArch + `/` + reProfile + `$`),
	regexp.MustCompile(`^` + reName + `:` + reStream + `::` + reArch + `$`),
	regexp.MustCompile(`^` + reName + `:` + reStream + `:` + reVersion + `:` + reContext + `/` + reProfile + `$`),
	regexp.MustCompile(`^` + reName + `:` + reStream + `:` + reVersion + `:` + reContext + `$`),
	regexp.MustCompile(`^` + reName + `:` + reStream + `:` + reVersion + `/` + reProfile + `$`),
	regexp.MustCompile(`^` + reName + `:` + reStream + `:` + reVersion + `$`),
	regexp.MustCompile(`^` + reName + `:` + reStream + `/` + reProfile + `$`),
	regexp.MustCompile(`^` + reName + `:` + reStream + `$`),
	regexp.MustCompile(`^` + reName + `::` + reArch + `/` + reProfile + `$`),
	regexp.MustCompile(`^` + reName + `::` + reArch + `$`),
	regexp.MustCompile(`^` + reName + `/` + reProfile + `$`),
	regexp.MustCompile(`^` + reName + `$`),
}

// ParseSpec parses s using the first form that matches.
func ParseSpec(s string) (Spec, error) {
	for _, re := range specForms {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		spec := Spec{Version: -1}
		for i, group := range re.SubexpNames() {
			switch group {
			case "name":
				spec.Name = m[i]
			case "stream":
				spec.Stream = m[i]
			case "version":
				v, err := strconv.ParseInt(m[i], 10, 64)
				if err != nil {
					return Spec{}, &InvalidSpecError{Spec: s}
				}
				spec.Version = v
			case "context":
				spec.Context = m[i]
			case "arch":
				spec.Arch = m[i]
			case "profile":
				spec.Profile = m[i]
			}
		}
		return spec, nil
	}
	return Spec{}, &InvalidSpecError{Spec: s}
}

// Matches reports whether p satisfies every field set in s.
func (s Spec) Matches(p *ModulePackage) bool {
	if s.Name != "" && s.Name != p.Name() {
		return false
	}
	if s.Stream != "" && s.Stream != p.Stream() {
		return false
	}
	if s.Version >= 0 && s.Version != p.Version() {
		return false
	}
	if s.Context != "" && s.Context != p.Context() {
		return false
	}
	if s.Arch != "" && s.Arch != p.Arch() {
		return false
	}
	return true
}

func (s Spec) String() string {
	out := s.Name
	if s.Stream != "" {
		out += ":" + s.Stream
		if s.Version >= 0 {
			out += ":" + strconv.FormatInt(s.Version, 10)
			if s.Context != "" {
				out += ":" + s.Context
			}
		}
	}
	if s.Arch != "" {
		if s.Context != "" && s.Version >= 0 && s.Stream != "" {
			out += ":" + s.Arch
		} else {
			out += "::" + s.Arch
		}
	}
	if s.Profile != "" {
		out += "/" + s.Profile
	}
	return out
}

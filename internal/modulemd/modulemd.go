// Package modulemd reads module metadata documents.
//
// A metadata stream is a multi-document YAML file. Two document kinds are
// understood:
//
//	document: modulemd            (version 2) one module stream build
//	document: modulemd-defaults   (version 1) default stream and profiles
//
// Other document kinds are skipped. Documents that fail validation are
// reported as *InvalidMetadataError; the remaining documents are still
// returned.
package modulemd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	KindModule   = "modulemd"
	KindDefaults = "modulemd-defaults"
)

// Profile is a named subset of a stream's packages.
type Profile struct {
	Name        string
	Description string
	RPMs        []string
}

// Dependencies is one alternative set of runtime module requirements.
// Requires maps a module name to acceptable streams; a stream prefixed
// with "-" excludes that stream.
type Dependencies struct {
	Requires map[string][]string
}

// ModuleNames returns the required module names in sorted order.
func (d Dependencies) ModuleNames() []string {
	out := make([]string, 0, len(d.Requires))
	for name := range d.Requires {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Module is one parsed modulemd document.
type Module struct {
	Name         string
	Stream       string
	Version      int64
	Context      string
	Arch         string
	Summary      string
	Description  string
	Profiles     []Profile
	Dependencies []Dependencies
	Artifacts    []string
}

// Profile looks up a profile by name.
func (m *Module) Profile(name string) (Profile, bool) {
	for _, p := range m.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Defaults is one parsed modulemd-defaults document. An empty Stream means
// the document declares no default stream.
type Defaults struct {
	Module   string
	Stream   string
	Profiles map[string][]string
}

// Index holds every valid document of a metadata stream.
type Index struct {
	Modules  []Module
	Defaults []Defaults
}

// InvalidMetadataError reports a rejected document. Document is the
// zero-based position of the document in the stream.
type InvalidMetadataError struct {
	Document int
	Kind     string
	Reason   string
}

func (e *InvalidMetadataError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("invalid module metadata in document %d: %s", e.Document, e.Reason)
	}
	return fmt.Sprintf("invalid %s metadata in document %d: %s", e.Kind, e.Document, e.Reason)
}

type header struct {
	Document string    `yaml:"document"`
	Version  int       `yaml:"version"`
	Data     yaml.Node `yaml:"data"`
}

type moduleData struct {
	Name         string                 `yaml:"name"`
	Stream       string                 `yaml:"stream"`
	Version      int64                  `yaml:"version"`
	Context      string                 `yaml:"context"`
	Arch         string                 `yaml:"arch"`
	Summary      string                 `yaml:"summary"`
	Description  string                 `yaml:"description"`
	Profiles     map[string]profileData `yaml:"profiles"`
	Dependencies []dependencyData       `yaml:"dependencies"`
	Artifacts    artifactsData          `yaml:"artifacts"`
}

type artifactsData struct {
	RPMs []string `yaml:"rpms"`
}

type profileData struct {
	Description string   `yaml:"description"`
	RPMs        []string `yaml:"rpms"`
}

type dependencyData struct {
	Requires map[string][]string `yaml:"requires"`
}

type defaultsData struct {
	Module   string              `yaml:"module"`
	Stream   string              `yaml:"stream"`
	Profiles map[string][]string `yaml:"profiles"`
}

// Parse decodes every document in raw. The returned error, if any, is a
// multierr aggregate of *InvalidMetadataError values; the Index still
// carries all documents that were valid.
func Parse(raw []byte) (*Index, error) {
	idx := &Index{}
	var errs error

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	for n := 0; ; n++ {
		var h header
		err := dec.Decode(&h)
		if errors.Is(err, io.EOF) {
			break
		}
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			errs = multierr.Append(errs, &InvalidMetadataError{Document: n, Reason: err.Error()})
			continue
		}
		if err != nil {
			// the decoder cannot resynchronise after a syntax error
			errs = multierr.Append(errs, &InvalidMetadataError{Document: n, Reason: err.Error()})
			break
		}

		switch h.Document {
		case KindModule:
			m, err := decodeModule(n, &h)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			idx.Modules = append(idx.Modules, m)
		case KindDefaults:
			d, err := decodeDefaults(n, &h)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			idx.Defaults = append(idx.Defaults, d)
		case "":
			if h.Version == 0 && h.Data.Kind == 0 {
				// empty document, e.g. a trailing "---"
				continue
			}
			errs = multierr.Append(errs, &InvalidMetadataError{Document: n, Reason: "missing document type"})
		}
	}
	return idx, errs
}

func decodeModule(n int, h *header) (Module, error) {
	invalid := func(reason string) error {
		return &InvalidMetadataError{Document: n, Kind: KindModule, Reason: reason}
	}
	if h.Version != 2 {
		return Module{}, invalid(fmt.Sprintf("unsupported version %d", h.Version))
	}
	if h.Data.Kind == 0 {
		return Module{}, invalid("missing data")
	}
	var d moduleData
	if err := h.Data.Decode(&d); err != nil {
		return Module{}, invalid(err.Error())
	}
	if d.Name == "" {
		return Module{}, invalid("missing name")
	}
	if d.Stream == "" {
		return Module{}, invalid(fmt.Sprintf("module %s: missing stream", d.Name))
	}
	if d.Version < 0 {
		return Module{}, invalid(fmt.Sprintf("module %s:%s: negative version %d", d.Name, d.Stream, d.Version))
	}

	m := Module{
		Name:        d.Name,
		Stream:      d.Stream,
		Version:     d.Version,
		Context:     d.Context,
		Arch:        d.Arch,
		Summary:     d.Summary,
		Description: d.Description,
		Artifacts:   d.Artifacts.RPMs,
	}

	profileNames := make([]string, 0, len(d.Profiles))
	for name := range d.Profiles {
		profileNames = append(profileNames, name)
	}
	sort.Strings(profileNames)
	for _, name := range profileNames {
		p := d.Profiles[name]
		m.Profiles = append(m.Profiles, Profile{Name: name, Description: p.Description, RPMs: p.RPMs})
	}

	for _, dep := range d.Dependencies {
		requires := make(map[string][]string, len(dep.Requires))
		for name, streams := range dep.Requires {
			requires[name] = append([]string(nil), streams...)
		}
		m.Dependencies = append(m.Dependencies, Dependencies{Requires: requires})
	}
	return m, nil
}

func decodeDefaults(n int, h *header) (Defaults, error) {
	invalid := func(reason string) error {
		return &InvalidMetadataError{Document: n, Kind: KindDefaults, Reason: reason}
	}
	if h.Version != 1 {
		return Defaults{}, invalid(fmt.Sprintf("unsupported version %d", h.Version))
	}
	if h.Data.Kind == 0 {
		return Defaults{}, invalid("missing data")
	}
	var d defaultsData
	if err := h.Data.Decode(&d); err != nil {
		return Defaults{}, invalid(err.Error())
	}
	if d.Module == "" {
		return Defaults{}, invalid("missing module name")
	}
	return Defaults{Module: d.Module, Stream: d.Stream, Profiles: d.Profiles}, nil
}

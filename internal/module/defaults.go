package module

import (
	"sort"

	"go.uber.org/multierr"

	"github.com/rpm-software-management/libdnf-sub006/internal/modulemd"
)

type prioritizedDefaults struct {
	doc      modulemd.Defaults
	priority int
}

type resolvedDefaults struct {
	stream   string
	profiles map[string][]string
}

// Defaults merges modulemd-defaults documents from several repositories.
// When documents disagree, the numerically highest priority wins.
type Defaults struct {
	docs     []prioritizedDefaults
	resolved map[string]resolvedDefaults
}

func NewDefaults() *Defaults {
	return &Defaults{}
}

// Add records doc. Any previous resolution is discarded.
func (d *Defaults) Add(doc modulemd.Defaults, priority int) {
	d.docs = append(d.docs, prioritizedDefaults{doc: doc, priority: priority})
	d.resolved = nil
}

// AddIndex records every defaults document of idx.
func (d *Defaults) AddIndex(idx *modulemd.Index, priority int) {
	if idx == nil {
		return
	}
	for _, doc := range idx.Defaults {
		d.Add(doc, priority)
	}
}

// Resolve merges the recorded documents. Modules whose top-priority
// documents disagree on the stream get no default; they are reported as
// *DefaultsConflictError while every other module still resolves.
func (d *Defaults) Resolve() error {
	byName := make(map[string][]prioritizedDefaults)
	for _, pd := range d.docs {
		byName[pd.doc.Module] = append(byName[pd.doc.Module], pd)
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	resolved := make(map[string]resolvedDefaults, len(names))
	var errs error
	for _, name := range names {
		docs := byName[name]

		top, found := 0, false
		for _, pd := range docs {
			if pd.doc.Stream == "" {
				continue
			}
			if !found || pd.priority > top {
				top, found = pd.priority, true
			}
		}

		var stream string
		if found {
			var streams []string
			for _, pd := range docs {
				if pd.doc.Stream != "" && pd.priority == top && !contains(streams, pd.doc.Stream) {
					streams = append(streams, pd.doc.Stream)
				}
			}
			if len(streams) > 1 {
				sort.Strings(streams)
				errs = multierr.Append(errs, &DefaultsConflictError{Module: name, Priority: top, Streams: streams})
				continue
			}
			stream = streams[0]
		}

		profiles := make(map[string][]string)
		for _, pd := range docs {
			for s, ps := range pd.doc.Profiles {
				for _, p := range ps {
					if !contains(profiles[s], p) {
						profiles[s] = append(profiles[s], p)
					}
				}
			}
		}
		resolved[name] = resolvedDefaults{stream: stream, profiles: profiles}
	}

	d.resolved = resolved
	return errs
}

// Resolved reports whether Resolve ran since the last Add.
func (d *Defaults) Resolved() bool { return d.resolved != nil }

// GetDefaultStreamFor returns the default stream of name, or "" if it has none.
func (d *Defaults) GetDefaultStreamFor(name string) (string, error) {
	if d.resolved == nil {
		return "", &NotYetResolvedError{}
	}
	return d.resolved[name].stream, nil
}

// GetDefaultProfiles returns the default profiles of name:stream.
func (d *Defaults) GetDefaultProfiles(name, stream string) ([]string, error) {
	if d.resolved == nil {
		return nil, &NotYetResolvedError{}
	}
	return append([]string(nil), d.resolved[name].profiles[stream]...), nil
}

// GetDefaultStreams maps every module that has a default stream to it.
func (d *Defaults) GetDefaultStreams() (map[string]string, error) {
	if d.resolved == nil {
		return nil, &NotYetResolvedError{}
	}
	out := make(map[string]string, len(d.resolved))
	for name, r := range d.resolved {
		if r.stream != "" {
			out[name] = r.stream
		}
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

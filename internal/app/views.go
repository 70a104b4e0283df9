package app

import (
	"github.com/rpm-software-management/libdnf-sub006/internal/module"
)

// ModuleSummary is the listing view of one module name. State is the display
// state: ENABLED or DISABLED as persisted, otherwise DEFAULT when the module
// has a default stream and UNKNOWN when it has none.
type ModuleSummary struct {
	Name              string   `json:"name"`
	Streams           []string `json:"streams"`
	State             string   `json:"state"`
	EnabledStream     string   `json:"enabled_stream,omitempty"`
	DefaultStream     string   `json:"default_stream,omitempty"`
	InstalledProfiles []string `json:"installed_profiles,omitempty"`
}

// PackageView is the detailed view of one module package.
type PackageView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Stream      string   `json:"stream"`
	Version     int64    `json:"version"`
	Context     string   `json:"context"`
	Arch        string   `json:"arch"`
	Repo        string   `json:"repo"`
	Summary     string   `json:"summary,omitempty"`
	State       string   `json:"state"`
	Active      bool     `json:"active"`
	Profiles    []string `json:"profiles,omitempty"`
	Artifacts   []string `json:"artifacts,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Modules summarizes the given module names, or every module if none are
// given. Unknown names are skipped.
func (s *Session) Modules(names ...string) []ModuleSummary {
	if len(names) == 0 {
		names = s.Container.GetModuleNames()
	}
	out := make([]ModuleSummary, 0, len(names))
	for _, name := range names {
		state, err := s.Container.GetModuleState(name)
		if err != nil {
			continue
		}
		streams := s.Container.GetStreams(name)
		if len(streams) == 0 {
			continue
		}
		enabled, _ := s.Container.GetEnabledStream(name)
		profiles, _ := s.Container.GetInstalledProfiles(name)
		def := s.DefaultStream(name)
		// neither enabled nor disabled: DEFAULT when a default stream applies
		if state != module.StateEnabled && state != module.StateDisabled {
			state = module.StateUnknown
			if def != "" {
				state = module.StateDefault
			}
		}
		out = append(out, ModuleSummary{
			Name:              name,
			Streams:           streams,
			State:             state.String(),
			EnabledStream:     enabled,
			DefaultStream:     def,
			InstalledProfiles: profiles,
		})
	}
	return out
}

// View renders p.
func (s *Session) View(p *module.ModulePackage) PackageView {
	v := PackageView{
		ID:          p.FullIdentifier(),
		Name:        p.Name(),
		Stream:      p.Stream(),
		Version:     p.Version(),
		Context:     p.Context(),
		Arch:        p.Arch(),
		Repo:        p.RepoID(),
		Summary:     p.Summary(),
		Description: p.Description(),
		State:       p.State().String(),
		Active:      s.Container.IsModuleActive(p.ID()),
		Artifacts:   p.Artifacts(),
	}
	for _, profile := range p.Profiles() {
		v.Profiles = append(v.Profiles, profile.Name)
	}
	return v
}

// Views renders every package of pkgs.
func (s *Session) Views(pkgs []*module.ModulePackage) []PackageView {
	out := make([]PackageView, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, s.View(p))
	}
	return out
}

package module

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// RuntimeState is the persisted state of one module name.
type RuntimeState struct {
	State             ModuleState
	EnabledStream     string
	InstalledProfiles []string
	Locked            bool
	// StreamChanges counts stream switches. It is stored but not consulted.
	StreamChanges int
}

func (s RuntimeState) clone() RuntimeState {
	s.InstalledProfiles = append([]string(nil), s.InstalledProfiles...)
	return s
}

func (s RuntimeState) equal(o RuntimeState) bool {
	if s.State != o.State || s.EnabledStream != o.EnabledStream || s.Locked != o.Locked ||
		s.StreamChanges != o.StreamChanges || len(s.InstalledProfiles) != len(o.InstalledProfiles) {
		return false
	}
	for i := range s.InstalledProfiles {
		if s.InstalledProfiles[i] != o.InstalledProfiles[i] {
			return false
		}
	}
	return true
}

func (s RuntimeState) isZero() bool {
	return s.equal(RuntimeState{})
}

// StateStore is the durable backend of a Persistor.
type StateStore interface {
	Load(ctx context.Context) (map[string]RuntimeState, error)
	Save(ctx context.Context, states map[string]RuntimeState) error
}

// Persistor keeps a working copy of module runtime states on top of the
// last durable snapshot.
type Persistor struct {
	store StateStore
	log   *zap.Logger

	states   map[string]RuntimeState
	snapshot map[string]RuntimeState
}

// NewPersistor loads the durable states from store.
func NewPersistor(ctx context.Context, store StateStore, log *zap.Logger) (*Persistor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load module states: %w", err)
	}
	p := &Persistor{
		store:    store,
		log:      log,
		states:   make(map[string]RuntimeState, len(loaded)),
		snapshot: make(map[string]RuntimeState, len(loaded)),
	}
	for name, s := range loaded {
		p.states[name] = s.clone()
		p.snapshot[name] = s.clone()
	}
	log.Debug("loaded module states", zap.Int("count", len(loaded)))
	return p, nil
}

// AddModule makes name known. Names without stored state start UNKNOWN.
func (p *Persistor) AddModule(name string) {
	if _, ok := p.states[name]; !ok {
		p.states[name] = RuntimeState{}
	}
}

func (p *Persistor) get(name string) (RuntimeState, error) {
	s, ok := p.states[name]
	if !ok {
		return RuntimeState{}, &NoSuchModuleError{Name: name}
	}
	return s, nil
}

func (p *Persistor) GetState(name string) (ModuleState, error) {
	s, err := p.get(name)
	return s.State, err
}

func (p *Persistor) GetEnabledStream(name string) (string, error) {
	s, err := p.get(name)
	return s.EnabledStream, err
}

func (p *Persistor) GetInstalledProfiles(name string) ([]string, error) {
	s, err := p.get(name)
	return append([]string(nil), s.InstalledProfiles...), err
}

func (p *Persistor) IsLocked(name string) (bool, error) {
	s, err := p.get(name)
	return s.Locked, err
}

// GetAllModuleNames returns every known name in sorted order.
func (p *Persistor) GetAllModuleNames() []string {
	out := make([]string, 0, len(p.states))
	for name := range p.states {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ChangeState sets the state of name. DEFAULT is derived during resolution
// and cannot be set.
func (p *Persistor) ChangeState(name string, state ModuleState) (bool, error) {
	if state == StateDefault {
		return false, fmt.Errorf("module %s: state %s cannot be set", name, state)
	}
	s, err := p.get(name)
	if err != nil {
		return false, err
	}
	if s.State == state {
		return false, nil
	}
	s.State = state
	p.states[name] = s
	return true, nil
}

func (p *Persistor) ChangeStream(name, stream string) (bool, error) {
	s, err := p.get(name)
	if err != nil {
		return false, err
	}
	if s.EnabledStream == stream {
		return false, nil
	}
	s.EnabledStream = stream
	s.StreamChanges++
	p.states[name] = s
	return true, nil
}

func (p *Persistor) AddProfile(name, profile string) (bool, error) {
	s, err := p.get(name)
	if err != nil {
		return false, err
	}
	if contains(s.InstalledProfiles, profile) {
		return false, nil
	}
	s = s.clone()
	s.InstalledProfiles = append(s.InstalledProfiles, profile)
	p.states[name] = s
	return true, nil
}

func (p *Persistor) RemoveProfile(name, profile string) (bool, error) {
	s, err := p.get(name)
	if err != nil {
		return false, err
	}
	kept := make([]string, 0, len(s.InstalledProfiles))
	for _, v := range s.InstalledProfiles {
		if v != profile {
			kept = append(kept, v)
		}
	}
	if len(kept) == len(s.InstalledProfiles) {
		return false, nil
	}
	s.InstalledProfiles = kept
	p.states[name] = s
	return true, nil
}

// Save writes the working copy to the store and makes it the new snapshot.
// On failure the working copy is left as is.
func (p *Persistor) Save(ctx context.Context) error {
	out := make(map[string]RuntimeState)
	for name, s := range p.states {
		if s.isZero() {
			continue
		}
		out[name] = s.clone()
	}
	if err := p.store.Save(ctx, out); err != nil {
		return fmt.Errorf("save module states: %w", err)
	}
	p.snapshot = make(map[string]RuntimeState, len(p.states))
	for name, s := range p.states {
		p.snapshot[name] = s.clone()
	}
	p.log.Debug("saved module states", zap.Int("count", len(out)))
	return nil
}

// Rollback discards unsaved changes. Names first observed after the
// snapshot remain known, in state UNKNOWN.
func (p *Persistor) Rollback() {
	for name := range p.states {
		p.states[name] = p.snapshot[name].clone()
	}
}

// HasChanges reports whether the working copy differs from the snapshot.
func (p *Persistor) HasChanges() bool {
	for name, s := range p.states {
		if !s.equal(p.snapshot[name]) {
			return true
		}
	}
	return false
}

// NewlyEnabledStreams maps modules that became ENABLED since the snapshot
// to their stream.
func (p *Persistor) NewlyEnabledStreams() map[string]string {
	out := make(map[string]string)
	for name, s := range p.states {
		if s.State == StateEnabled && p.snapshot[name].State != StateEnabled {
			out[name] = s.EnabledStream
		}
	}
	return out
}

// SwitchedStreams maps modules that stayed ENABLED on a different stream to
// the old and new stream.
func (p *Persistor) SwitchedStreams() map[string][2]string {
	out := make(map[string][2]string)
	for name, s := range p.states {
		old := p.snapshot[name]
		if s.State == StateEnabled && old.State == StateEnabled && s.EnabledStream != old.EnabledStream {
			out[name] = [2]string{old.EnabledStream, s.EnabledStream}
		}
	}
	return out
}

func (p *Persistor) NewlyDisabledModules() []string {
	var out []string
	for name, s := range p.states {
		if s.State == StateDisabled && p.snapshot[name].State != StateDisabled {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// NewlyResetModules lists modules that returned to UNKNOWN since the snapshot.
func (p *Persistor) NewlyResetModules() []string {
	var out []string
	for name, s := range p.states {
		if s.State == StateUnknown && p.snapshot[name].State != StateUnknown {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (p *Persistor) NewlyInstalledProfiles() map[string][]string {
	out := make(map[string][]string)
	for name, s := range p.states {
		before := p.snapshot[name].InstalledProfiles
		for _, profile := range s.InstalledProfiles {
			if !contains(before, profile) {
				out[name] = append(out[name], profile)
			}
		}
	}
	return out
}

func (p *Persistor) NewlyRemovedProfiles() map[string][]string {
	out := make(map[string][]string)
	for name, s := range p.states {
		for _, profile := range p.snapshot[name].InstalledProfiles {
			if !contains(s.InstalledProfiles, profile) {
				out[name] = append(out[name], profile)
			}
		}
	}
	return out
}

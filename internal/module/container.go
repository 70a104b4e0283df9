// Package module resolves which module streams are active.
//
// A Container holds every module package loaded from repository metadata,
// the runtime states of module names and the dependency pool the packages
// are solved in. ResolveActiveModules computes the active set from the
// states and the resolved defaults.
package module

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rpm-software-management/libdnf-sub006/internal/modulemd"
	"github.com/rpm-software-management/libdnf-sub006/internal/solv"
)

// Repo identifies a metadata source. Lower priority values are preferred
// by the solver.
type Repo struct {
	ID       string
	Priority int
}

// Container is not safe for concurrent use.
type Container struct {
	log       *zap.Logger
	pool      *solv.Pool
	repos     map[string]*solv.Repo
	persistor *Persistor

	packages []*ModulePackage
	byID     map[solv.ID]*ModulePackage
	byName   map[string][]*ModulePackage

	defaults *Defaults
	active   map[solv.ID]struct{}
	resolved bool
}

// NewContainer loads runtime states from store.
func NewContainer(ctx context.Context, store StateStore, log *zap.Logger) (*Container, error) {
	if log == nil {
		log = zap.NewNop()
	}
	persistor, err := NewPersistor(ctx, store, log.Named("persistor"))
	if err != nil {
		return nil, err
	}
	return &Container{
		log:       log,
		pool:      solv.NewPool(),
		repos:     make(map[string]*solv.Repo),
		persistor: persistor,
		byID:      make(map[solv.ID]*ModulePackage),
		byName:    make(map[string][]*ModulePackage),
	}, nil
}

func (c *Container) Persistor() *Persistor { return c.persistor }

func (c *Container) repo(r Repo) *solv.Repo {
	if sr, ok := c.repos[r.ID]; ok {
		return sr
	}
	sr := c.pool.AddRepo(r.ID, r.Priority)
	c.repos[r.ID] = sr
	return sr
}

// Add parses raw metadata of repo and registers its module packages. The
// parsed index is returned so callers can feed its defaults documents to a
// Defaults. Invalid documents are reported as an aggregate of
// *modulemd.InvalidMetadataError; valid documents are registered anyway.
func (c *Container) Add(repo Repo, raw []byte) (*modulemd.Index, error) {
	idx, err := modulemd.Parse(raw)
	if err != nil {
		c.log.Warn("invalid module metadata", zap.String("repo", repo.ID), zap.Error(err))
	}
	c.AddIndex(repo, idx)
	return idx, err
}

// AddIndex registers every module document of idx under repo.
func (c *Container) AddIndex(repo Repo, idx *modulemd.Index) {
	if idx == nil {
		return
	}
	sr := c.repo(repo)
	for _, md := range idx.Modules {
		c.register(newModulePackage(c.pool, sr, md))
	}
	c.log.Debug("added module metadata", zap.String("repo", repo.ID), zap.Int("modules", len(idx.Modules)))
}

func (c *Container) register(p *ModulePackage) {
	c.packages = append(c.packages, p)
	c.byID[p.id] = p
	c.byName[p.Name()] = append(c.byName[p.Name()], p)
	c.persistor.AddModule(p.Name())
}

// AddPlatform registers the platform pseudo-module described by platformID
// ("name:stream") in the PlatformRepoID repository.
func (c *Container) AddPlatform(platformID, arch string) (*ModulePackage, error) {
	name, stream, err := ParsePlatformID(platformID)
	if err != nil {
		return nil, err
	}
	md := modulemd.Module{
		Name:    name,
		Stream:  stream,
		Version: platformVersion,
		Context: platformContext,
		Arch:    arch,
	}
	p := newModulePackage(c.pool, c.repo(Repo{ID: PlatformRepoID}), md)
	c.register(p)
	c.log.Debug("added platform module", zap.String("platform", p.FullIdentifier()))
	return p, nil
}

// CreateConflictsBetweenStreams makes every package conflict with all other
// streams of its module. It is safe to call more than once.
func (c *Container) CreateConflictsBetweenStreams() {
	for _, pkgs := range c.byName {
		for _, a := range pkgs {
			for _, b := range pkgs {
				if a.Stream() != b.Stream() {
					a.conflictWithStream(c.pool, b)
				}
			}
		}
	}
}

// Enable enables stream of module name. Enabling a different stream
// replaces the previously enabled one. Zero matching packages yields a
// *NoMatchingStreamError warning.
func (c *Container) Enable(name, stream string) (bool, error) {
	if len(c.match(name, stream)) == 0 {
		err := &NoMatchingStreamError{Name: name, Stream: stream}
		c.log.Warn("cannot enable module", zap.Error(err))
		return false, err
	}
	stateChanged, err := c.persistor.ChangeState(name, StateEnabled)
	if err != nil {
		return false, err
	}
	streamChanged, err := c.persistor.ChangeStream(name, stream)
	if err != nil {
		return false, err
	}
	c.refreshStates()
	return stateChanged || streamChanged, nil
}

// Disable disables module name. A non-empty stream must match at least one
// package but the whole module is disabled.
func (c *Container) Disable(name, stream string) (bool, error) {
	if len(c.match(name, stream)) == 0 {
		err := &NoMatchingStreamError{Name: name, Stream: stream}
		c.log.Warn("cannot disable module", zap.Error(err))
		return false, err
	}
	stateChanged, err := c.persistor.ChangeState(name, StateDisabled)
	if err != nil {
		return false, err
	}
	streamChanged, err := c.persistor.ChangeStream(name, "")
	if err != nil {
		return false, err
	}
	c.refreshStates()
	return stateChanged || streamChanged, nil
}

// Reset returns module name to UNKNOWN and forgets its stream and profiles.
func (c *Container) Reset(name string) (bool, error) {
	if len(c.byName[name]) == 0 {
		err := &NoMatchingStreamError{Name: name}
		c.log.Warn("cannot reset module", zap.Error(err))
		return false, err
	}
	changed, err := c.persistor.ChangeState(name, StateUnknown)
	if err != nil {
		return false, err
	}
	if ok, _ := c.persistor.ChangeStream(name, ""); ok {
		changed = true
	}
	profiles, _ := c.persistor.GetInstalledProfiles(name)
	for _, profile := range profiles {
		if ok, _ := c.persistor.RemoveProfile(name, profile); ok {
			changed = true
		}
	}
	c.refreshStates()
	return changed, nil
}

// Install enables name:stream and marks profile installed.
func (c *Container) Install(name, stream, profile string) (bool, error) {
	pkgs := c.match(name, stream)
	if len(pkgs) == 0 {
		err := &NoMatchingStreamError{Name: name, Stream: stream}
		c.log.Warn("cannot install module profile", zap.Error(err))
		return false, err
	}
	found := false
	for _, p := range pkgs {
		if _, ok := p.Profile(profile); ok {
			found = true
			break
		}
	}
	if !found {
		return false, &NoSuchProfileError{Name: name, Stream: stream, Profile: profile}
	}
	enabled, err := c.Enable(name, stream)
	if err != nil {
		return false, err
	}
	added, err := c.persistor.AddProfile(name, profile)
	if err != nil {
		return false, err
	}
	return enabled || added, nil
}

// Uninstall removes profile from the installed profiles of name.
func (c *Container) Uninstall(name, profile string) (bool, error) {
	if len(c.byName[name]) == 0 {
		return false, &NoSuchModuleError{Name: name}
	}
	return c.persistor.RemoveProfile(name, profile)
}

func (c *Container) IsEnabled(name, stream string) bool {
	state, err := c.persistor.GetState(name)
	if err != nil || state != StateEnabled {
		return false
	}
	enabled, _ := c.persistor.GetEnabledStream(name)
	return enabled == stream
}

func (c *Container) IsDisabled(name string) bool {
	state, err := c.persistor.GetState(name)
	return err == nil && state == StateDisabled
}

func (c *Container) GetModuleState(name string) (ModuleState, error) {
	return c.persistor.GetState(name)
}

func (c *Container) GetEnabledStream(name string) (string, error) {
	return c.persistor.GetEnabledStream(name)
}

func (c *Container) GetInstalledProfiles(name string) ([]string, error) {
	return c.persistor.GetInstalledProfiles(name)
}

func (c *Container) Save(ctx context.Context) error { return c.persistor.Save(ctx) }

// Rollback discards unsaved state changes.
func (c *Container) Rollback() {
	c.persistor.Rollback()
	c.refreshStates()
}

func (c *Container) HasChanges() bool { return c.persistor.HasChanges() }

// refreshStates assigns every package the state of its module, using the
// defaults of the last resolution.
func (c *Container) refreshStates() {
	for _, p := range c.packages {
		state, _ := c.persistor.GetState(p.Name())
		switch state {
		case StateEnabled:
			stream, _ := c.persistor.GetEnabledStream(p.Name())
			if stream != p.Stream() {
				state = StateUnknown
			}
		case StateUnknown, StateDefault:
			state = StateUnknown
			if c.defaults != nil && c.defaults.Resolved() {
				if def, _ := c.defaults.GetDefaultStreamFor(p.Name()); def != "" && def == p.Stream() {
					state = StateDefault
				}
			}
		}
		p.state = state
	}
}

// ResolveActiveModules computes the active module packages. Candidates are
// the packages of enabled streams and, for modules in neither ENABLED nor
// DISABLED state, of the default stream. Each candidate version becomes a
// weak install job; the packages in the resulting install set, minus the
// platform, are active. defaults may be nil; otherwise it must be resolved.
func (c *Container) ResolveActiveModules(ctx context.Context, defaults *Defaults) ([]*ModulePackage, error) {
	if defaults != nil && !defaults.Resolved() {
		return nil, &NotYetResolvedError{}
	}
	c.defaults = defaults
	c.refreshStates()

	// enabled streams are queued before default streams so a default can
	// never crowd out an explicit choice
	var enabledJobs, defaultJobs []solv.Job
	seen := make(map[string]struct{})
	excluded := make(map[solv.ID]struct{})
	for _, p := range c.packages {
		state, _ := c.persistor.GetState(p.Name())
		switch {
		case state == StateDisabled:
			excluded[p.id] = struct{}{}
			continue
		case state == StateEnabled && p.state != StateEnabled:
			// other streams of an enabled module
			excluded[p.id] = struct{}{}
			continue
		case p.state != StateEnabled && p.state != StateDefault:
			continue
		}
		provides := moduleCap(p.NameStreamVersion())
		if _, ok := seen[provides]; ok {
			continue
		}
		seen[provides] = struct{}{}
		job := solv.Job{Provides: provides, Weak: true}
		if p.state == StateEnabled {
			enabledJobs = append(enabledJobs, job)
		} else {
			defaultJobs = append(defaultJobs, job)
		}
	}
	jobs := append(enabledJobs, defaultJobs...)

	for id := range excluded {
		c.pool.SetExcluded(id, true)
	}
	tx, err := c.pool.Solve(ctx, jobs)
	for id := range excluded {
		c.pool.SetExcluded(id, false)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve active modules: %w", err)
	}
	for _, job := range tx.Dropped {
		c.log.Info("module stream cannot be activated", zap.String("job", job.String()))
	}

	c.active = make(map[solv.ID]struct{}, len(tx.Install))
	for _, id := range tx.Install {
		p := c.byID[id]
		if p == nil || p.repoID == PlatformRepoID {
			continue
		}
		c.active[id] = struct{}{}
	}
	c.resolved = true
	c.log.Debug("resolved active modules", zap.Int("jobs", len(jobs)), zap.Int("active", len(c.active)))
	return c.ActivePackages(), nil
}

// IsModuleActive reports membership in the set computed by the last
// ResolveActiveModules. Before the first resolution nothing is active.
func (c *Container) IsModuleActive(id solv.ID) bool {
	if !c.resolved {
		return false
	}
	_, ok := c.active[id]
	return ok
}

// ActivePackages returns the active packages in load order.
func (c *Container) ActivePackages() []*ModulePackage {
	var out []*ModulePackage
	for _, p := range c.packages {
		if c.IsModuleActive(p.id) {
			out = append(out, p)
		}
	}
	return out
}

// RequiresModuleEnablement returns the active packages whose module is not
// ENABLED and that ship one of the given NEVRAs.
func (c *Container) RequiresModuleEnablement(nevras []string) []*ModulePackage {
	var out []*ModulePackage
	for _, p := range c.ActivePackages() {
		if state, _ := c.persistor.GetState(p.Name()); state == StateEnabled {
			continue
		}
		for _, nevra := range nevras {
			if p.hasArtifact(nevra) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func (c *Container) match(name, stream string) []*ModulePackage {
	var out []*ModulePackage
	for _, p := range c.byName[name] {
		if stream == "" || p.Stream() == stream {
			out = append(out, p)
		}
	}
	return out
}

// GetModuleNames returns every module name with at least one package.
func (c *Container) GetModuleNames() []string {
	out := make([]string, 0, len(c.byName))
	for name := range c.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetModulePackages returns every package in load order.
func (c *Container) GetModulePackages() []*ModulePackage {
	return append([]*ModulePackage(nil), c.packages...)
}

func (c *Container) GetModulePackage(id solv.ID) (*ModulePackage, bool) {
	p, ok := c.byID[id]
	return p, ok
}

func (c *Container) GetModulePackagesByName(name string) ([]*ModulePackage, error) {
	pkgs := c.byName[name]
	if len(pkgs) == 0 {
		return nil, &NoSuchModuleError{Name: name}
	}
	return append([]*ModulePackage(nil), pkgs...), nil
}

func (c *Container) GetModulePackagesByStream(name, stream string) ([]*ModulePackage, error) {
	if len(c.byName[name]) == 0 {
		return nil, &NoSuchModuleError{Name: name}
	}
	pkgs := c.match(name, stream)
	if len(pkgs) == 0 {
		return nil, &NoSuchStreamError{Name: name, Stream: stream}
	}
	return pkgs, nil
}

// GetLatestModulePackage returns the highest version of name:stream.
func (c *Container) GetLatestModulePackage(name, stream string) (*ModulePackage, error) {
	pkgs, err := c.GetModulePackagesByStream(name, stream)
	if err != nil {
		return nil, err
	}
	return Latest(pkgs), nil
}

// GetEnabledModulePackages returns the packages of the enabled stream of name.
func (c *Container) GetEnabledModulePackages(name string) ([]*ModulePackage, error) {
	state, err := c.persistor.GetState(name)
	if err != nil {
		return nil, err
	}
	if state != StateEnabled {
		return nil, &NoEnabledStreamError{Name: name}
	}
	stream, _ := c.persistor.GetEnabledStream(name)
	return c.match(name, stream), nil
}

// GetStreams returns the distinct streams of name in SortStreams order.
func (c *Container) GetStreams(name string) []string {
	var streams []string
	for _, p := range c.byName[name] {
		if !contains(streams, p.Stream()) {
			streams = append(streams, p.Stream())
		}
	}
	return SortStreams(streams)
}

// GetModuleDependencies returns every package that could satisfy a
// requirement of p, transitively. p itself is not included.
func (c *Container) GetModuleDependencies(p *ModulePackage) []*ModulePackage {
	visited := map[solv.ID]struct{}{p.id: {}}
	var out []*ModulePackage
	queue := []*ModulePackage{p}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, req := range c.pool.Solvable(cur.id).Requires {
			for _, capability := range req.Caps {
				for _, id := range c.pool.WhatProvides(capability) {
					if _, ok := visited[id]; ok {
						continue
					}
					visited[id] = struct{}{}
					if dep := c.byID[id]; dep != nil {
						out = append(out, dep)
						queue = append(queue, dep)
					}
				}
			}
		}
	}
	return out
}

// Query returns the packages matching a module spec string.
func (c *Container) Query(spec string) ([]*ModulePackage, Spec, error) {
	parsed, err := ParseSpec(spec)
	if err != nil {
		return nil, Spec{}, err
	}
	var out []*ModulePackage
	for _, p := range c.byName[parsed.Name] {
		if parsed.Matches(p) {
			out = append(out, p)
		}
	}
	return out, parsed, nil
}

// EnableAll enables each name:stream of streams. Errors are collected; if
// any request fails, changes made by the batch are rolled back.
func (c *Container) EnableAll(streams map[string]string) (bool, error) {
	return c.batch(streams, c.Enable)
}

// DisableAll disables each module of names.
func (c *Container) DisableAll(names []string) (bool, error) {
	streams := make(map[string]string, len(names))
	for _, n := range names {
		streams[n] = ""
	}
	return c.batch(streams, c.Disable)
}

func (c *Container) batch(streams map[string]string, op func(name, stream string) (bool, error)) (bool, error) {
	names := make([]string, 0, len(streams))
	for n := range streams {
		names = append(names, n)
	}
	sort.Strings(names)

	changed := false
	var errs error
	for _, n := range names {
		ok, err := op(n, streams[n])
		errs = multierr.Append(errs, err)
		changed = changed || ok
	}
	if errs != nil {
		c.Rollback()
		return false, errs
	}
	return changed, nil
}

// Latest returns the package with the highest version, preferring the
// earliest loaded on ties. It returns nil for an empty slice.
func Latest(pkgs []*ModulePackage) *ModulePackage {
	var best *ModulePackage
	for _, p := range pkgs {
		if best == nil || p.Version() > best.Version() {
			best = p
		}
	}
	return best
}

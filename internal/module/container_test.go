package module

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"github.com/rpm-software-management/libdnf-sub006/internal/solv"
)

func TestContainer_Add(t *testing.T) {
	c, _ := loadFixture(t, &memStore{})

	assert.Equal(t, []string{"apr", "httpd", "nodejs", "platform"}, c.GetModuleNames())
	assert.Len(t, c.GetModulePackages(), 7)

	apr, err := c.GetModulePackagesByName("apr")
	require.NoError(t, err)
	require.Len(t, apr, 1)
	assert.Equal(t, "noarch", apr[0].Arch())
	assert.Equal(t, "apr:1:1:00000000:noarch", apr[0].FullIdentifier())

	sv := c.pool.Solvable(apr[0].ID())
	assert.Equal(t, "apr:1:1:00000000", sv.Name)
	assert.Equal(t, "0", sv.EVR)
	assert.ElementsMatch(t, []string{"module(apr)", "module(apr:1)", "module(apr:1:1)"}, sv.Provides)
	assert.Equal(t, []string{"module(platform:f27)"}, sv.Conflicts)
	require.Len(t, sv.Requires, 1)
	assert.Equal(t, []string{"module(platform)"}, sv.Requires[0].Caps)

	state, err := c.GetModuleState("httpd")
	require.NoError(t, err)
	assert.Equal(t, StateUnknown, state)
}

func TestContainer_AddKeepsValidDocuments(t *testing.T) {
	c, err := NewContainer(context.Background(), &memStore{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	raw := []byte(`
document: modulemd
version: 2
data:
  stream: "1"
---
document: modulemd
version: 2
data:
  name: good
  stream: "1"
  version: 3
`)
	_, err = c.Add(Repo{ID: "r", Priority: 99}, raw)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Equal(t, []string{"good"}, c.GetModuleNames())
}

func TestContainer_StreamConflicts(t *testing.T) {
	c, _ := loadFixture(t, &memStore{})

	tx, err := c.pool.Solve(context.Background(), []solv.Job{
		{Provides: "module(httpd:2.2:1)", Weak: true},
		{Provides: "module(httpd:2.4:1)", Weak: true},
	})
	require.NoError(t, err)

	httpd := 0
	for _, id := range tx.Install {
		if p, ok := c.GetModulePackage(id); ok && p.Name() == "httpd" {
			httpd++
		}
	}
	assert.Equal(t, 1, httpd)
}

func TestContainer_EnableSelectsOneStream(t *testing.T) {
	c, _ := loadFixture(t, &memStore{})

	changed, err := c.Enable("httpd", "2.4")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, c.IsEnabled("httpd", "2.4"))
	assert.False(t, c.IsEnabled("httpd", "2.2"))

	changed, err = c.Enable("httpd", "2.4")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = c.Enable("httpd", "2.2")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, c.IsEnabled("httpd", "2.2"))
	assert.False(t, c.IsEnabled("httpd", "2.4"))
}

func TestContainer_EnableUnknownIsWarning(t *testing.T) {
	c, _ := loadFixture(t, &memStore{})

	_, err := c.Enable("httpd", "9.9")
	var nomatch *NoMatchingStreamError
	require.ErrorAs(t, err, &nomatch)
	assert.True(t, IsWarning(err))

	_, err = c.Disable("nosuch", "")
	assert.True(t, IsWarning(err))
	assert.False(t, IsWarning(nil))
	assert.False(t, IsWarning(errors.New("boom")))
}

func TestContainer_ResolveWithDefaults(t *testing.T) {
	c, d := loadFixture(t, &memStore{})

	active, err := c.ResolveActiveModules(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{"httpd:2.4:1", "httpd:2.4:2", "apr:1:1"}, identifiers(active))

	for _, p := range c.GetModulePackages() {
		switch {
		case p.Name() == "httpd" && p.Stream() == "2.4":
			assert.Equal(t, StateDefault, p.State())
		case p.Name() == "nodejs" && p.Stream() == "8":
			assert.Equal(t, StateDefault, p.State())
			assert.False(t, c.IsModuleActive(p.ID()), "nodejs:8 needs platform:f27")
		case p.Name() == "platform":
			assert.False(t, c.IsModuleActive(p.ID()))
		}
	}

	again, err := c.ResolveActiveModules(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, identifiers(active), identifiers(again))
}

func TestContainer_ResolveEnabledOverridesDefault(t *testing.T) {
	c, d := loadFixture(t, &memStore{})

	_, err := c.Enable("httpd", "2.2")
	require.NoError(t, err)
	_, err = c.Enable("nodejs", "10")
	require.NoError(t, err)

	active, err := c.ResolveActiveModules(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{"httpd:2.2:1", "nodejs:10:1"}, identifiers(active))
}

const baseStreams = `
document: modulemd
version: 2
data:
  name: base
  stream: "2"
  version: 1
  context: "00000000"
---
document: modulemd
version: 2
data:
  name: base
  stream: "1"
  version: 1
  context: "00000000"
---
document: modulemd
version: 2
data:
  name: app
  stream: x
  version: 1
  context: "00000000"
  dependencies:
  - requires:
      base: ["2"]
---
document: modulemd-defaults
version: 1
data:
  module: base
  stream: "1"
`

func loadBaseStreams(t *testing.T, store StateStore) (*Container, *Defaults) {
	t.Helper()
	c, err := NewContainer(context.Background(), store, zaptest.NewLogger(t))
	require.NoError(t, err)
	idx, err := c.Add(Repo{ID: "r", Priority: 99}, []byte(baseStreams))
	require.NoError(t, err)
	c.CreateConflictsBetweenStreams()
	d := NewDefaults()
	d.AddIndex(idx, 10)
	require.NoError(t, d.Resolve())
	return c, d
}

func TestContainer_ResolveEnabledBeatsOtherModulesDefault(t *testing.T) {
	c, d := loadBaseStreams(t, &memStore{})

	_, err := c.Enable("app", "x")
	require.NoError(t, err)

	active, err := c.ResolveActiveModules(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{"base:2:1", "app:x:1"}, identifiers(active))
}

func TestContainer_PersistedDefaultStateUsesDefaultStream(t *testing.T) {
	store := &memStore{states: map[string]RuntimeState{"base": {State: StateDefault}}}
	c, d := loadBaseStreams(t, store)

	active, err := c.ResolveActiveModules(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{"base:1:1"}, identifiers(active))

	base, err := c.GetModulePackagesByName("base")
	require.NoError(t, err)
	for _, p := range base {
		if p.Stream() == "1" {
			assert.Equal(t, StateDefault, p.State())
		} else {
			assert.Equal(t, StateUnknown, p.State())
		}
	}
}

func TestContainer_ResolveDisabled(t *testing.T) {
	c, d := loadFixture(t, &memStore{})

	_, err := c.Disable("httpd", "")
	require.NoError(t, err)

	active, err := c.ResolveActiveModules(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.True(t, c.IsDisabled("httpd"))
}

func TestContainer_ResolveWithoutDefaults(t *testing.T) {
	c, _ := loadFixture(t, &memStore{})

	active, err := c.ResolveActiveModules(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = c.ResolveActiveModules(context.Background(), NewDefaults())
	var notYet *NotYetResolvedError
	assert.ErrorAs(t, err, &notYet)
}

func TestContainer_NothingActiveBeforeResolve(t *testing.T) {
	c, _ := loadFixture(t, &memStore{})
	for _, p := range c.GetModulePackages() {
		assert.False(t, c.IsModuleActive(p.ID()))
	}
	assert.Empty(t, c.ActivePackages())
}

func TestContainer_RequiresModuleEnablement(t *testing.T) {
	c, d := loadFixture(t, &memStore{})
	_, err := c.ResolveActiveModules(context.Background(), d)
	require.NoError(t, err)

	got := c.RequiresModuleEnablement([]string{"httpd-0:2.4.33-1.module_f28.x86_64", "bash-0:4.4.19-1.fc28.x86_64"})
	assert.Equal(t, []string{"httpd:2.4:1"}, identifiers(got))

	assert.Empty(t, c.RequiresModuleEnablement([]string{"bash-0:4.4.19-1.fc28.x86_64"}))
	// exact NEVRA match only
	assert.Empty(t, c.RequiresModuleEnablement([]string{"httpd-2.4.33-1.module_f28.x86_64"}))

	_, err = c.Enable("httpd", "2.4")
	require.NoError(t, err)
	_, err = c.ResolveActiveModules(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, c.RequiresModuleEnablement([]string{"httpd-0:2.4.33-1.module_f28.x86_64"}))
}

func TestContainer_RollbackRestoresEnabled(t *testing.T) {
	store := &memStore{}
	c, _ := loadFixture(t, store)

	_, err := c.Enable("httpd", "2.4")
	require.NoError(t, err)
	require.NoError(t, c.Save(context.Background()))

	_, err = c.Disable("httpd", "2.4")
	require.NoError(t, err)
	assert.False(t, c.IsEnabled("httpd", "2.4"))
	assert.True(t, c.HasChanges())

	c.Rollback()
	assert.True(t, c.IsEnabled("httpd", "2.4"))
	assert.False(t, c.HasChanges())
}

func TestContainer_SaveRoundTrip(t *testing.T) {
	store := &memStore{}
	c, _ := loadFixture(t, store)

	_, err := c.Install("httpd", "2.4", "doc")
	require.NoError(t, err)
	_, err = c.Disable("nodejs", "")
	require.NoError(t, err)
	require.NoError(t, c.Save(context.Background()))

	fresh, _ := loadFixture(t, store)
	for _, name := range []string{"httpd", "nodejs", "apr", "platform"} {
		for _, get := range []func(*Container) (any, error){
			func(c *Container) (any, error) { return c.GetModuleState(name) },
			func(c *Container) (any, error) { return c.GetEnabledStream(name) },
			func(c *Container) (any, error) { return c.GetInstalledProfiles(name) },
		} {
			want, err := get(c)
			require.NoError(t, err)
			got, err := get(fresh)
			require.NoError(t, err)
			assert.Equal(t, want, got, name)
		}
	}
}

func TestContainer_InstallProfile(t *testing.T) {
	c, _ := loadFixture(t, &memStore{})

	_, err := c.Install("httpd", "2.4", "devel")
	var noProfile *NoSuchProfileError
	require.ErrorAs(t, err, &noProfile)
	assert.False(t, IsWarning(err))

	changed, err := c.Install("httpd", "2.4", "doc")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, c.IsEnabled("httpd", "2.4"))
	profiles, err := c.GetInstalledProfiles("httpd")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc"}, profiles)

	changed, err = c.Uninstall("httpd", "doc")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = c.Uninstall("httpd", "doc")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestContainer_Reset(t *testing.T) {
	c, _ := loadFixture(t, &memStore{})
	_, err := c.Install("httpd", "2.4", "default")
	require.NoError(t, err)

	changed, err := c.Reset("httpd")
	require.NoError(t, err)
	assert.True(t, changed)
	state, _ := c.GetModuleState("httpd")
	assert.Equal(t, StateUnknown, state)
	stream, _ := c.GetEnabledStream("httpd")
	assert.Empty(t, stream)
	profiles, _ := c.GetInstalledProfiles("httpd")
	assert.Empty(t, profiles)
}

func TestContainer_EnableAllRollsBackOnError(t *testing.T) {
	c, _ := loadFixture(t, &memStore{})

	_, err := c.EnableAll(map[string]string{"httpd": "2.4", "nodejs": "12", "ghost": "1"})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.False(t, c.IsEnabled("httpd", "2.4"))

	changed, err := c.EnableAll(map[string]string{"httpd": "2.4", "nodejs": "10"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, c.IsEnabled("nodejs", "10"))
}

func TestContainer_Queries(t *testing.T) {
	c, _ := loadFixture(t, &memStore{})

	_, err := c.GetModulePackagesByName("ghost")
	var noModule *NoSuchModuleError
	assert.ErrorAs(t, err, &noModule)

	_, err = c.GetModulePackagesByStream("httpd", "3.0")
	var noStream *NoSuchStreamError
	assert.ErrorAs(t, err, &noStream)

	latest, err := c.GetLatestModulePackage("httpd", "2.4")
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest.Version())

	_, err = c.GetEnabledModulePackages("httpd")
	var noEnabled *NoEnabledStreamError
	assert.ErrorAs(t, err, &noEnabled)

	_, err = c.Enable("httpd", "2.4")
	require.NoError(t, err)
	enabled, err := c.GetEnabledModulePackages("httpd")
	require.NoError(t, err)
	assert.Equal(t, []string{"httpd:2.4:1", "httpd:2.4:2"}, identifiers(enabled))

	assert.Equal(t, []string{"8", "10"}, c.GetStreams("nodejs"))

	pkgs, spec, err := c.Query("httpd:2.4:1/doc")
	require.NoError(t, err)
	assert.Equal(t, "doc", spec.Profile)
	assert.Equal(t, []string{"httpd:2.4:1"}, identifiers(pkgs))

	deps := c.GetModuleDependencies(latest)
	assert.ElementsMatch(t, []string{"apr:1:1", "platform:f28:0"}, identifiers(deps))
}

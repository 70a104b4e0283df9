package module

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rpm-software-management/libdnf-sub006/internal/modulemd"
	"github.com/rpm-software-management/libdnf-sub006/internal/solv"
)

const defaultArch = "noarch"

// ModulePackage is one module stream build registered in a Container.
type ModulePackage struct {
	id     solv.ID
	repoID string
	md     modulemd.Module
	state  ModuleState
}

func (p *ModulePackage) ID() solv.ID { return p.id }

// RepoID is the id of the repository the package was loaded from.
func (p *ModulePackage) RepoID() string { return p.repoID }

func (p *ModulePackage) Name() string    { return p.md.Name }
func (p *ModulePackage) Stream() string  { return p.md.Stream }
func (p *ModulePackage) Version() int64  { return p.md.Version }
func (p *ModulePackage) Context() string { return p.md.Context }

func (p *ModulePackage) VersionString() string {
	return strconv.FormatInt(p.md.Version, 10)
}

func (p *ModulePackage) Arch() string {
	if p.md.Arch == "" {
		return defaultArch
	}
	return p.md.Arch
}

func (p *ModulePackage) Summary() string     { return p.md.Summary }
func (p *ModulePackage) Description() string { return p.md.Description }

// NameStream renders "name:stream".
func (p *ModulePackage) NameStream() string {
	return p.md.Name + ":" + p.md.Stream
}

// NameStreamVersion renders "name:stream:version".
func (p *ModulePackage) NameStreamVersion() string {
	return p.NameStream() + ":" + p.VersionString()
}

// FullIdentifier renders "name:stream:version:context:arch".
func (p *ModulePackage) FullIdentifier() string {
	return strings.Join([]string{p.md.Name, p.md.Stream, p.VersionString(), p.md.Context, p.Arch()}, ":")
}

func (p *ModulePackage) String() string { return p.FullIdentifier() }

// Artifacts lists the NEVRA strings of the packages the build ships.
func (p *ModulePackage) Artifacts() []string {
	return append([]string(nil), p.md.Artifacts...)
}

func (p *ModulePackage) Profiles() []modulemd.Profile {
	return append([]modulemd.Profile(nil), p.md.Profiles...)
}

func (p *ModulePackage) Profile(name string) (modulemd.Profile, bool) {
	return p.md.Profile(name)
}

// Dependencies returns the module requirements as declared in metadata.
func (p *ModulePackage) Dependencies() []modulemd.Dependencies {
	return append([]modulemd.Dependencies(nil), p.md.Dependencies...)
}

// State is the state assigned by the last activation pass or state change.
func (p *ModulePackage) State() ModuleState { return p.state }

func (p *ModulePackage) hasArtifact(nevra string) bool {
	for _, a := range p.md.Artifacts {
		if a == nevra {
			return true
		}
	}
	return false
}

func moduleCap(parts ...string) string {
	return "module(" + strings.Join(parts, ":") + ")"
}

// newModulePackage registers md in pool as a solvable of repo and declares
// its provides and dependency edges.
func newModulePackage(pool *solv.Pool, repo *solv.Repo, md modulemd.Module) *ModulePackage {
	p := &ModulePackage{repoID: repo.Name, md: md}
	p.id = pool.CreateSolvable(repo)

	identity := strings.Join([]string{md.Name, md.Stream, p.VersionString(), md.Context}, ":")
	pool.SetIdentity(p.id, identity, "0", p.Arch())
	pool.SetRank(p.id, md.Version)

	pool.AddProvides(p.id, moduleCap(md.Name))
	pool.AddProvides(p.id, moduleCap(md.Name, md.Stream))
	pool.AddProvides(p.id, moduleCap(md.Name, md.Stream, p.VersionString()))

	for _, dep := range md.Dependencies {
		for _, name := range dep.ModuleNames() {
			var wanted []string
			for _, stream := range dep.Requires[name] {
				if excluded, ok := strings.CutPrefix(stream, "-"); ok {
					pool.AddConflicts(p.id, moduleCap(name, excluded))
					continue
				}
				wanted = append(wanted, moduleCap(name, stream))
			}
			if len(wanted) == 0 {
				pool.AddRequires(p.id, false, moduleCap(name))
				continue
			}
			pool.AddRequires(p.id, false, wanted...)
		}
	}
	return p
}

// conflictWithStream makes p conflict with every build of other's stream.
func (p *ModulePackage) conflictWithStream(pool *solv.Pool, other *ModulePackage) {
	pool.AddConflicts(p.id, moduleCap(other.md.Name, other.md.Stream))
}

func (p *ModulePackage) GoString() string {
	return fmt.Sprintf("ModulePackage(%s, repo=%s, state=%s)", p.FullIdentifier(), p.repoID, p.state)
}

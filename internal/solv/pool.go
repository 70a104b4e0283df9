package solv

import (
	"fmt"
	"sort"
)

// ID addresses a solvable in a Pool. The generation guards against IDs that
// outlive a Pool.Clear.
type ID struct {
	index int32
	gen   uint32
}

// NoID is the zero ID; it never addresses a solvable.
var NoID = ID{index: -1}

func (id ID) String() string {
	return fmt.Sprintf("%d@%d", id.index, id.gen)
}

// Index returns the arena index of the solvable.
func (id ID) Index() int { return int(id.index) }

// Repo groups solvables. Lower Priority values are preferred.
type Repo struct {
	Name     string
	Priority int
	id       int
}

// Requirement is satisfied when any of Caps is provided.
type Requirement struct {
	Caps []string
	Weak bool
}

// Solvable is the pool's view of one entity. The fields are copies; mutate
// through the Pool.
type Solvable struct {
	ID        ID
	Name      string
	EVR       string
	Arch      string
	Repo      *Repo
	Rank      int64
	Provides  []string
	Requires  []Requirement
	Conflicts []string
}

type solvable struct {
	name      string
	evr       string
	arch      string
	repo      *Repo
	rank      int64
	provides  []string
	requires  []Requirement
	conflicts []string
	excluded  bool
}

// Pool is an arena of solvables with a capability index. A Pool is not safe
// for concurrent use.
type Pool struct {
	gen       uint32
	repos     []*Repo
	solvables []solvable

	// capability -> provider indexes, rebuilt on demand after mutations
	index map[string][]int32
	dirty bool
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{gen: 1, dirty: true}
}

// Clear drops every repo and solvable. IDs handed out before are invalidated.
func (p *Pool) Clear() {
	p.gen++
	p.repos = nil
	p.solvables = nil
	p.index = nil
	p.dirty = true
}

// AddRepo registers a repository. Solvables of repos with a lower priority
// value are preferred.
func (p *Pool) AddRepo(name string, priority int) *Repo {
	r := &Repo{Name: name, Priority: priority, id: len(p.repos)}
	p.repos = append(p.repos, r)
	return r
}

// Repos returns the registered repositories in creation order.
func (p *Pool) Repos() []*Repo {
	out := make([]*Repo, len(p.repos))
	copy(out, p.repos)
	return out
}

// Len returns the number of solvables in the pool.
func (p *Pool) Len() int { return len(p.solvables) }

// CreateSolvable adds an empty solvable to repo and returns its ID. It panics
// on a nil repo.
func (p *Pool) CreateSolvable(repo *Repo) ID {
	if repo == nil {
		panic("solv: CreateSolvable with nil repo")
	}
	p.solvables = append(p.solvables, solvable{repo: repo})
	p.dirty = true
	return ID{index: int32(len(p.solvables) - 1), gen: p.gen}
}

// Valid reports whether id addresses a solvable of the current generation.
func (p *Pool) Valid(id ID) bool {
	return id.gen == p.gen && id.index >= 0 && int(id.index) < len(p.solvables)
}

func (p *Pool) get(id ID) *solvable {
	if !p.Valid(id) {
		panic(fmt.Sprintf("solv: invalid solvable id %s", id))
	}
	return &p.solvables[id.index]
}

func (p *Pool) idOf(index int32) ID {
	return ID{index: index, gen: p.gen}
}

// SetIdentity sets the name, evr and arch of a solvable. At most one solvable
// per non-empty name is installed by a solve.
func (p *Pool) SetIdentity(id ID, name, evr, arch string) {
	s := p.get(id)
	s.name, s.evr, s.arch = name, evr, arch
}

// SetRank sets the preference of a solvable among providers of the same
// capability. Higher ranks win.
func (p *Pool) SetRank(id ID, rank int64) {
	p.get(id).rank = rank
}

// AddProvides adds a capability the solvable provides.
func (p *Pool) AddProvides(id ID, capability string) {
	s := p.get(id)
	s.provides = append(s.provides, capability)
	p.dirty = true
}

// AddRequires adds one requirement that is satisfied by any of caps.
func (p *Pool) AddRequires(id ID, weak bool, caps ...string) {
	if len(caps) == 0 {
		return
	}
	s := p.get(id)
	s.requires = append(s.requires, Requirement{Caps: append([]string(nil), caps...), Weak: weak})
}

// AddConflicts forbids installing the solvable together with any provider of
// capability. Duplicates are ignored.
func (p *Pool) AddConflicts(id ID, capability string) {
	s := p.get(id)
	for _, c := range s.conflicts {
		if c == capability {
			return
		}
	}
	s.conflicts = append(s.conflicts, capability)
}

// SetExcluded hides a solvable from the solver without removing it.
func (p *Pool) SetExcluded(id ID, excluded bool) {
	p.get(id).excluded = excluded
}

// Solvable returns a copy of the solvable's data.
func (p *Pool) Solvable(id ID) Solvable {
	s := p.get(id)
	return Solvable{
		ID:        id,
		Name:      s.name,
		EVR:       s.evr,
		Arch:      s.arch,
		Repo:      s.repo,
		Rank:      s.rank,
		Provides:  append([]string(nil), s.provides...),
		Requires:  append([]Requirement(nil), s.requires...),
		Conflicts: append([]string(nil), s.conflicts...),
	}
}

func (p *Pool) rebuildIndex() {
	if !p.dirty && p.index != nil {
		return
	}
	p.index = make(map[string][]int32)
	for i := range p.solvables {
		for _, c := range p.solvables[i].provides {
			p.index[c] = append(p.index[c], int32(i))
		}
	}
	p.dirty = false
}

// WhatProvides returns the providers of capability ordered by preference.
func (p *Pool) WhatProvides(capability string) []ID {
	idx := p.providers(capability)
	out := make([]ID, len(idx))
	for i, ix := range idx {
		out[i] = p.idOf(ix)
	}
	return out
}

func (p *Pool) providers(capabilities ...string) []int32 {
	p.rebuildIndex()
	seen := make(map[int32]struct{})
	var out []int32
	for _, c := range capabilities {
		for _, ix := range p.index[c] {
			if _, ok := seen[ix]; ok {
				continue
			}
			seen[ix] = struct{}{}
			out = append(out, ix)
		}
	}
	p.sortByPreference(out)
	return out
}

func (p *Pool) sortByPreference(idx []int32) {
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := &p.solvables[idx[i]], &p.solvables[idx[j]]
		if a.repo.Priority != b.repo.Priority {
			return a.repo.Priority < b.repo.Priority
		}
		if a.rank != b.rank {
			return a.rank > b.rank
		}
		return idx[i] < idx[j]
	})
}

package solv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addModule(p *Pool, repo *Repo, name string, rank int64, provides ...string) ID {
	id := p.CreateSolvable(repo)
	p.SetIdentity(id, name, "0", "x86_64")
	p.SetRank(id, rank)
	for _, c := range provides {
		p.AddProvides(id, c)
	}
	return id
}

func names(p *Pool, ids []ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.Solvable(id).Name)
	}
	return out
}

func TestSolve_InstallsRequirementClosure(t *testing.T) {
	p := NewPool()
	repo := p.AddRepo("repo", 99)
	app := addModule(p, repo, "app", 1, "module(app)", "module(app:1)")
	addModule(p, repo, "lib", 1, "module(lib)", "module(lib:2)")
	p.AddRequires(app, false, "module(lib:2)")

	tx, err := p.Solve(context.Background(), []Job{{Provides: "module(app:1)", Weak: true}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app", "lib"}, names(p, tx.Install))
	assert.Empty(t, tx.Dropped)
}

func TestSolve_WeakJobDroppedWhenUnsatisfiable(t *testing.T) {
	p := NewPool()
	repo := p.AddRepo("repo", 99)
	app := addModule(p, repo, "app", 1, "module(app:1)")
	p.AddRequires(app, false, "module(missing:1)")
	addModule(p, repo, "other", 1, "module(other:1)")

	tx, err := p.Solve(context.Background(), []Job{
		{Provides: "module(app:1)", Weak: true},
		{Provides: "module(other:1)", Weak: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, names(p, tx.Install))
	require.Len(t, tx.Dropped, 1)
	assert.Equal(t, "module(app:1)", tx.Dropped[0].Provides)
}

func TestSolve_StrongJobFails(t *testing.T) {
	p := NewPool()
	p.AddRepo("repo", 99)

	_, err := p.Solve(context.Background(), []Job{{Provides: "module(nothing)"}})
	var problem *ProblemError
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, "module(nothing)", problem.Job.Provides)
}

func TestSolve_ConflictingJobsSelectAtMostOne(t *testing.T) {
	p := NewPool()
	repo := p.AddRepo("repo", 99)
	a := addModule(p, repo, "httpd:2.2", 1, "module(httpd)", "module(httpd:2.2)")
	b := addModule(p, repo, "httpd:2.4", 1, "module(httpd)", "module(httpd:2.4)")
	p.AddConflicts(a, "module(httpd:2.4)")
	p.AddConflicts(b, "module(httpd:2.2)")

	tx, err := p.Solve(context.Background(), []Job{
		{Provides: "module(httpd:2.2)", Weak: true},
		{Provides: "module(httpd:2.4)", Weak: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"httpd:2.2"}, names(p, tx.Install))
	assert.Len(t, tx.Dropped, 1)
}

func TestSolve_PicksCompatibleAlternative(t *testing.T) {
	p := NewPool()
	repo := p.AddRepo("repo", 99)
	app := addModule(p, repo, "app", 1, "module(app:1)")
	// preferred provider of lib conflicts with the platform, the other does not
	libNew := addModule(p, repo, "lib:new", 2, "module(lib)")
	addModule(p, repo, "lib:old", 1, "module(lib)")
	addModule(p, repo, "platform", 1, "module(platform:f28)")
	p.AddConflicts(libNew, "module(platform:f28)")
	p.AddRequires(app, false, "module(lib)")
	p.AddRequires(app, false, "module(platform:f28)")

	tx, err := p.Solve(context.Background(), []Job{{Provides: "module(app:1)", Weak: true}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app", "lib:old", "platform"}, names(p, tx.Install))
}

func TestSolve_DisjunctiveRequirement(t *testing.T) {
	p := NewPool()
	repo := p.AddRepo("repo", 99)
	app := addModule(p, repo, "app", 1, "module(app:1)")
	addModule(p, repo, "platform", 1, "module(platform:f27)")
	p.AddRequires(app, false, "module(platform:f26)", "module(platform:f27)")

	tx, err := p.Solve(context.Background(), []Job{{Provides: "module(app:1)"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app", "platform"}, names(p, tx.Install))
}

func TestSolve_PrefersRepoPriorityThenRank(t *testing.T) {
	p := NewPool()
	low := p.AddRepo("low", 10)
	high := p.AddRepo("high", 99)
	addModule(p, high, "dup", 5, "module(dup:1)")
	addModule(p, low, "dup", 1, "module(dup:1)")

	providers := p.WhatProvides("module(dup:1)")
	require.Len(t, providers, 2)
	assert.Equal(t, low, p.Solvable(providers[0]).Repo)

	tx, err := p.Solve(context.Background(), []Job{{Provides: "module(dup:1)"}})
	require.NoError(t, err)
	require.Len(t, tx.Install, 1)
	assert.Equal(t, low, p.Solvable(tx.Install[0]).Repo)
}

func TestSolve_Deterministic(t *testing.T) {
	p := NewPool()
	repo := p.AddRepo("repo", 99)
	for _, n := range []string{"a", "b", "c"} {
		addModule(p, repo, n, 1, "module("+n+")", "module(all)")
	}
	jobs := []Job{{Provides: "module(all)", Weak: true}, {Provides: "module(c)", Weak: true}}

	first, err := p.Solve(context.Background(), jobs)
	require.NoError(t, err)
	second, err := p.Solve(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, first.Install, second.Install)
}

func TestSolve_Cancelled(t *testing.T) {
	p := NewPool()
	repo := p.AddRepo("repo", 99)
	// a long chain; the context is checked before every satisfiability check
	prev := addModule(p, repo, "m0", 1, "module(m0)")
	for i := 1; i < 600; i++ {
		name := "m" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		id := addModule(p, repo, name, 1, "module("+name+")")
		p.AddRequires(prev, false, "module("+name+")")
		prev = id
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Solve(ctx, []Job{{Provides: "module(m0)"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_ClearInvalidatesIDs(t *testing.T) {
	p := NewPool()
	repo := p.AddRepo("repo", 99)
	id := addModule(p, repo, "a", 1, "module(a)")
	require.True(t, p.Valid(id))

	p.Clear()
	assert.False(t, p.Valid(id))
	assert.Empty(t, p.WhatProvides("module(a)"))
}

func TestSolve_SkipsExcluded(t *testing.T) {
	p := NewPool()
	repo := p.AddRepo("repo", 99)
	preferred := addModule(p, repo, "lib:2", 2, "module(lib)")
	addModule(p, repo, "lib:1", 1, "module(lib)")
	p.SetExcluded(preferred, true)

	tx, err := p.Solve(context.Background(), []Job{{Provides: "module(lib)"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"lib:1"}, names(p, tx.Install))
}

func TestSolve_LaterJobRevisesEarlierChoice(t *testing.T) {
	p := NewPool()
	repo := p.AddRepo("repo", 99)
	lib2 := addModule(p, repo, "lib:2", 2, "module(lib)", "module(lib:2)")
	lib1 := addModule(p, repo, "lib:1", 1, "module(lib)", "module(lib:1)")
	p.AddConflicts(lib2, "module(lib:1)")
	p.AddConflicts(lib1, "module(lib:2)")
	app := addModule(p, repo, "app", 1, "module(app)")
	p.AddRequires(app, false, "module(lib:1)")

	tx, err := p.Solve(context.Background(), []Job{
		{Provides: "module(lib)", Weak: true},
		{Provides: "module(app)", Weak: true},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lib:1", "app"}, names(p, tx.Install))
	assert.Empty(t, tx.Dropped)
}

func TestSolve_WeakRequirements(t *testing.T) {
	p := NewPool()
	repo := p.AddRepo("repo", 99)
	app := addModule(p, repo, "app", 1, "module(app)")
	addModule(p, repo, "docs", 1, "module(docs)")
	addModule(p, repo, "extra", 1, "module(extra)")
	p.AddRequires(app, true, "module(docs)")
	p.AddRequires(app, true, "module(missing)")

	tx, err := p.Solve(context.Background(), []Job{{Provides: "module(app)"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "docs"}, names(p, tx.Install))
}

func TestSolve_NoJobs(t *testing.T) {
	p := NewPool()
	repo := p.AddRepo("repo", 99)
	addModule(p, repo, "a", 1, "module(a)")

	tx, err := p.Solve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, tx.Install)
}

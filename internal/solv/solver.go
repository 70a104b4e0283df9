package solv

import (
	"context"
	"fmt"
	"strings"

	"github.com/crillab/gophersat/solver"
)

// Job asks the solver to install one provider of Provides. A weak job that
// cannot be satisfied is dropped instead of failing the solve.
type Job struct {
	Provides string
	Weak     bool
}

func (j Job) String() string {
	if j.Weak {
		return "install weak " + j.Provides
	}
	return "install " + j.Provides
}

// Transaction is the outcome of a solve.
type Transaction struct {
	// Install is the install set in pool order.
	Install []ID
	// Dropped lists weak jobs that could not be satisfied.
	Dropped []Job
}

// ProblemError reports a non-weak job the solver could not satisfy.
type ProblemError struct {
	Job Job
}

func (e *ProblemError) Error() string {
	return fmt.Sprintf("solv: nothing provides %q or all providers conflict", e.Job.Provides)
}

// formula is a CNF over the pool's solvables. Solvable index i is variable
// i+1.
type formula struct {
	clauses [][]int
}

func lit(ix int32) int { return int(ix) + 1 }

func (f *formula) add(clause []int) {
	f.clauses = append(f.clauses, clause)
}

// satisfiable reports whether the formula stays satisfiable with extra added.
func (f *formula) satisfiable(ctx context.Context, extra []int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	cnf := make([][]int, 0, len(f.clauses)+1)
	for _, c := range f.clauses {
		cnf = append(cnf, append([]int(nil), c...))
	}
	cnf = append(cnf, append([]int(nil), extra...))
	return solver.New(solver.ParseSlice(cnf)).Solve() == solver.Sat, nil
}

// implies builds "ix installed => one of providers installed". It returns
// nil when ix provides the requirement itself.
func implies(ix int32, providers []int32) []int {
	clause := []int{-lit(ix)}
	for _, pv := range providers {
		if pv == ix {
			return nil
		}
		clause = append(clause, lit(pv))
	}
	return clause
}

func anyOf(providers []int32) []int {
	clause := make([]int, 0, len(providers))
	for _, pv := range providers {
		clause = append(clause, lit(pv))
	}
	return clause
}

// rules encodes excludes, hard requirements, conflicts and the one
// solvable per name rule.
func (p *Pool) rules() *formula {
	f := &formula{}
	byName := make(map[string][]int32)
	for i := range p.solvables {
		ix := int32(i)
		s := &p.solvables[i]
		if s.excluded {
			f.add([]int{-lit(ix)})
		}
		for _, req := range s.requires {
			if req.Weak {
				continue
			}
			if clause := implies(ix, p.providers(req.Caps...)); clause != nil {
				f.add(clause)
			}
		}
		for _, c := range s.conflicts {
			for _, other := range p.index[c] {
				if other != ix {
					f.add([]int{-lit(ix), -lit(other)})
				}
			}
		}
		if s.name != "" {
			for _, other := range byName[s.name] {
				f.add([]int{-lit(ix), -lit(other)})
			}
			byName[s.name] = append(byName[s.name], ix)
		}
	}
	return f
}

// Solve installs the jobs on top of an empty system. Jobs are accepted in
// order: each one must stay satisfiable together with every job accepted
// before it, but the providers chosen for earlier jobs may change. Weak
// requirements are then honoured where possible. Finally every solvable not
// needed is left out, trying the least preferred providers first.
func (p *Pool) Solve(ctx context.Context, jobs []Job) (*Transaction, error) {
	p.rebuildIndex()
	f := p.rules()

	tx := &Transaction{}
	accepted := 0
	for _, job := range jobs {
		clause := anyOf(p.providers(job.Provides))
		ok := false
		if len(clause) > 0 {
			var err error
			if ok, err = f.satisfiable(ctx, clause); err != nil {
				return nil, err
			}
		}
		if ok {
			f.add(clause)
			accepted++
			continue
		}
		if !job.Weak {
			return nil, &ProblemError{Job: job}
		}
		tx.Dropped = append(tx.Dropped, job)
	}
	if accepted == 0 {
		return tx, nil
	}

	for i := range p.solvables {
		for _, req := range p.solvables[i].requires {
			if !req.Weak {
				continue
			}
			providers := p.providers(req.Caps...)
			if len(providers) == 0 {
				continue
			}
			clause := implies(int32(i), providers)
			if clause == nil {
				continue
			}
			ok, err := f.satisfiable(ctx, clause)
			if err != nil {
				return nil, err
			}
			if ok {
				f.add(clause)
			}
		}
	}

	order := make([]int32, len(p.solvables))
	for i := range order {
		order[i] = int32(i)
	}
	p.sortByPreference(order)
	installed := make([]bool, len(p.solvables))
	for k := len(order) - 1; k >= 0; k-- {
		ix := order[k]
		ok, err := f.satisfiable(ctx, []int{-lit(ix)})
		if err != nil {
			return nil, err
		}
		if ok {
			f.add([]int{-lit(ix)})
		} else {
			f.add([]int{lit(ix)})
			installed[ix] = true
		}
	}

	for ix, in := range installed {
		if in {
			tx.Install = append(tx.Install, p.idOf(int32(ix)))
		}
	}
	return tx, nil
}

// Describe renders a solvable as name-evr.arch for logs.
func (p *Pool) Describe(id ID) string {
	s := p.get(id)
	var b strings.Builder
	b.WriteString(s.name)
	if s.evr != "" {
		b.WriteString("-")
		b.WriteString(s.evr)
	}
	if s.arch != "" {
		b.WriteString(".")
		b.WriteString(s.arch)
	}
	return b.String()
}

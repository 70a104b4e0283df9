package module

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memStore struct {
	states  map[string]RuntimeState
	saveErr error
	saves   int
}

func (m *memStore) Load(context.Context) (map[string]RuntimeState, error) {
	out := make(map[string]RuntimeState, len(m.states))
	for k, v := range m.states {
		out[k] = v.clone()
	}
	return out, nil
}

func (m *memStore) Save(_ context.Context, states map[string]RuntimeState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.states = make(map[string]RuntimeState, len(states))
	for k, v := range states {
		m.states[k] = v.clone()
	}
	return nil
}

// loadFixture builds a container over testdata/modules.yaml with a
// platform:f28 module and returns it together with the resolved defaults
// of the fixture.
func loadFixture(t *testing.T, store StateStore) (*Container, *Defaults) {
	t.Helper()
	raw, err := os.ReadFile("testdata/modules.yaml")
	require.NoError(t, err)

	c, err := NewContainer(context.Background(), store, zaptest.NewLogger(t))
	require.NoError(t, err)
	idx, err := c.Add(Repo{ID: "fedora-modular", Priority: 99}, raw)
	require.NoError(t, err)
	_, err = c.AddPlatform("platform:f28", "x86_64")
	require.NoError(t, err)
	c.CreateConflictsBetweenStreams()

	d := NewDefaults()
	d.AddIndex(idx, 1000-99)
	require.NoError(t, d.Resolve())
	return c, d
}

func identifiers(pkgs []*ModulePackage) []string {
	out := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, p.NameStreamVersion())
	}
	return out
}

package statestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/rpm-software-management/libdnf-sub006/internal/module"
)

type tomlFile struct {
	Generation int64                 `toml:"generation"`
	SavedAt    time.Time             `toml:"saved_at"`
	Modules    map[string]tomlModule `toml:"modules"`
}

type tomlModule struct {
	State         string   `toml:"state"`
	Stream        string   `toml:"stream,omitempty"`
	Profiles      []string `toml:"profiles,omitempty"`
	Locked        bool     `toml:"locked,omitempty"`
	StreamChanges int      `toml:"stream_changes,omitempty"`
}

// TOMLStore keeps module states in one TOML file. Saves write a temporary
// file next to it and rename it into place.
type TOMLStore struct {
	path string

	mu         sync.Mutex
	generation int64
}

func NewTOMLStore(path string) *TOMLStore {
	return &TOMLStore{path: path}
}

// Generation is the number of saves recorded in the file as of the last
// Load or Save.
func (s *TOMLStore) Generation() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *TOMLStore) read() (*tomlFile, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &tomlFile{}, nil
	}
	if err != nil {
		return nil, err
	}
	var f tomlFile
	if err := toml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return &f, nil
}

func (s *TOMLStore) Load(ctx context.Context) (map[string]module.RuntimeState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return nil, err
	}
	s.generation = f.Generation

	out := make(map[string]module.RuntimeState, len(f.Modules))
	for name, m := range f.Modules {
		state, err := module.ParseModuleState(m.State)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", name, err)
		}
		out[name] = module.RuntimeState{
			State:             state,
			EnabledStream:     m.Stream,
			InstalledProfiles: m.Profiles,
			Locked:            m.Locked,
			StreamChanges:     m.StreamChanges,
		}
	}
	return out, nil
}

func (s *TOMLStore) Save(ctx context.Context, states map[string]module.RuntimeState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f := tomlFile{
		Generation: s.generation + 1,
		SavedAt:    time.Now().UTC().Truncate(time.Second),
		Modules:    make(map[string]tomlModule, len(states)),
	}
	for name, st := range states {
		f.Modules[name] = tomlModule{
			State:         st.State.String(),
			Stream:        st.EnabledStream,
			Profiles:      st.InstalledProfiles,
			Locked:        st.Locked,
			StreamChanges: st.StreamChanges,
		}
	}
	raw, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode module states: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".modules-*.toml")
	if err != nil {
		return fmt.Errorf("create temporary state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temporary state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temporary state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temporary state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	s.generation = f.Generation
	return nil
}

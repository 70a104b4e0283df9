// Package app wires configuration, state store, metadata storage and the
// module container into a Session shared by the daemon and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rpm-software-management/libdnf-sub006/internal/config"
	"github.com/rpm-software-management/libdnf-sub006/internal/modulemd"
	"github.com/rpm-software-management/libdnf-sub006/internal/module"
	"github.com/rpm-software-management/libdnf-sub006/internal/statestore"
	"github.com/rpm-software-management/libdnf-sub006/internal/storage"
)

// Session is a loaded module container with its defaults. It is not safe
// for concurrent use.
type Session struct {
	Config    config.Config
	Container *module.Container
	Defaults  *module.Defaults
	Storage   storage.Provider
	Repos     []config.Repo
	Platform  *module.ModulePackage

	// LoadErrors collects the non-fatal problems met while loading:
	// invalid metadata documents, unreadable repositories, conflicting
	// defaults and a missing platform.
	LoadErrors error

	log   *zap.Logger
	close func() error
}

// Option overrides a collaborator of Open.
type Option func(*openOptions)

type openOptions struct {
	store    module.StateStore
	provider storage.Provider
}

// WithStateStore makes Open use store instead of cfg.StateBackend.
func WithStateStore(store module.StateStore) Option {
	return func(o *openOptions) { o.store = store }
}

// WithStorage makes Open use p instead of cfg.StorageType.
func WithStorage(p storage.Provider) Option {
	return func(o *openOptions) { o.provider = p }
}

// DefaultsPriority converts a repository priority, where lower values are
// preferred, into a defaults priority, where higher values win.
func DefaultsPriority(repoPriority int) int {
	return 1000 - repoPriority
}

// Open loads the state and the metadata of every configured repository.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger, opts ...Option) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	repos, err := config.ParseRepos(cfg.Repos)
	if err != nil {
		return nil, err
	}

	s := &Session{Config: cfg, Repos: repos, Defaults: module.NewDefaults(), log: log, close: func() error { return nil }}

	store := o.store
	if store == nil {
		st, closeFn, err := statestore.Open(cfg, log.Named("state"))
		if err != nil {
			return nil, err
		}
		store, s.close = st, closeFn
	}

	s.Storage = o.provider
	if s.Storage == nil {
		if s.Storage, err = storage.New(ctx, cfg, log.Named("storage")); err != nil {
			_ = s.close()
			return nil, err
		}
	}

	s.Container, err = module.NewContainer(ctx, store, log.Named("module"))
	if err != nil {
		_ = s.close()
		return nil, err
	}

	s.addPlatform()
	for _, repo := range repos {
		s.loadRepo(ctx, repo)
	}
	s.Container.CreateConflictsBetweenStreams()

	if err := s.Defaults.Resolve(); err != nil {
		log.Warn("module defaults conflict", zap.Error(err))
		s.LoadErrors = multierr.Append(s.LoadErrors, err)
	}
	return s, nil
}

func (s *Session) addPlatform() {
	platformID := s.Config.PlatformID
	if platformID == "" && s.Config.OSReleasePath != "" {
		id, err := module.PlatformIDFromOSRelease(s.Config.OSReleasePath)
		if err != nil {
			s.log.Warn("cannot detect platform", zap.Error(err))
			s.LoadErrors = multierr.Append(s.LoadErrors, err)
			return
		}
		platformID = id
	}
	if platformID == "" {
		return
	}
	p, err := s.Container.AddPlatform(platformID, s.Config.Arch)
	if err != nil {
		s.log.Warn("cannot add platform module", zap.Error(err))
		s.LoadErrors = multierr.Append(s.LoadErrors, err)
		return
	}
	s.Platform = p
}

func (s *Session) loadRepo(ctx context.Context, repo config.Repo) {
	raw, err := storage.ReadMetadata(ctx, s.Storage, repo.ID)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Debug("repository has no module metadata", zap.String("repo", repo.ID))
		return
	}
	if err != nil {
		s.log.Warn("cannot read module metadata", zap.String("repo", repo.ID), zap.Error(err))
		s.LoadErrors = multierr.Append(s.LoadErrors, fmt.Errorf("repo %s: %w", repo.ID, err))
		return
	}
	idx, err := s.Container.Add(module.Repo{ID: repo.ID, Priority: repo.Priority}, raw)
	if err != nil {
		s.LoadErrors = multierr.Append(s.LoadErrors, fmt.Errorf("repo %s: %w", repo.ID, err))
	}
	s.Defaults.AddIndex(idx, DefaultsPriority(repo.Priority))
}

// Close releases the state store.
func (s *Session) Close() error {
	return s.close()
}

// Resolve computes the active module packages.
func (s *Session) Resolve(ctx context.Context) ([]*module.ModulePackage, error) {
	return s.Container.ResolveActiveModules(ctx, s.Defaults)
}

// DefaultStream returns the default stream of name, "" if none.
func (s *Session) DefaultStream(name string) string {
	stream, _ := s.Defaults.GetDefaultStreamFor(name)
	return stream
}

// ImportMetadata validates raw and stores it as the metadata of repoID.
// Documents that fail validation are reported but do not prevent the import
// as long as at least one document is valid.
func ImportMetadata(ctx context.Context, p storage.Provider, repoID string, raw []byte) (*modulemd.Index, error) {
	idx, perr := modulemd.Parse(raw)
	if len(idx.Modules) == 0 && len(idx.Defaults) == 0 {
		if perr != nil {
			return nil, perr
		}
		return nil, fmt.Errorf("repo %s: no module metadata documents", repoID)
	}
	if err := storage.WriteMetadata(ctx, p, repoID, raw); err != nil {
		return nil, err
	}
	return idx, perr
}

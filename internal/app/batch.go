package app

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rpm-software-management/libdnf-sub006/internal/module"
)

// Change summarizes the state changes of a committed batch.
type Change struct {
	Enabled           map[string]string    `json:"enabled,omitempty"`
	Switched          map[string][2]string `json:"switched,omitempty"`
	Disabled          []string             `json:"disabled,omitempty"`
	Reset             []string             `json:"reset,omitempty"`
	InstalledProfiles map[string][]string  `json:"installed_profiles,omitempty"`
	RemovedProfiles   map[string][]string  `json:"removed_profiles,omitempty"`
}

// Empty reports whether the batch changed nothing.
func (c Change) Empty() bool {
	return len(c.Enabled) == 0 && len(c.Switched) == 0 && len(c.Disabled) == 0 &&
		len(c.Reset) == 0 && len(c.InstalledProfiles) == 0 && len(c.RemovedProfiles) == 0
}

func (s *Session) pending() Change {
	p := s.Container.Persistor()
	return Change{
		Enabled:           p.NewlyEnabledStreams(),
		Switched:          p.SwitchedStreams(),
		Disabled:          p.NewlyDisabledModules(),
		Reset:             p.NewlyResetModules(),
		InstalledProfiles: p.NewlyInstalledProfiles(),
		RemovedProfiles:   p.NewlyRemovedProfiles(),
	}
}

// apply runs op for every spec. If any spec fails, every change of the batch
// is rolled back and all errors are returned together; otherwise the new
// state is saved.
func (s *Session) apply(ctx context.Context, specs []string, op func(module.Spec) error) (Change, error) {
	var errs error
	for _, raw := range specs {
		spec, err := module.ParseSpec(raw)
		if err == nil {
			err = op(spec)
		}
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		s.Container.Rollback()
		return Change{}, errs
	}

	change := s.pending()
	if !s.Container.HasChanges() {
		return change, nil
	}
	if err := s.Container.Save(ctx); err != nil {
		s.Container.Rollback()
		return Change{}, err
	}
	s.log.Info("module state saved",
		zap.Any("enabled", change.Enabled),
		zap.Strings("disabled", change.Disabled),
		zap.Strings("reset", change.Reset))
	return change, nil
}

// streamFor picks the stream a spec refers to: the one it names, else the
// enabled stream, else the default stream.
func (s *Session) streamFor(spec module.Spec) (string, error) {
	if _, err := s.Container.GetModulePackagesByName(spec.Name); err != nil {
		return "", err
	}
	if spec.Stream != "" {
		return spec.Stream, nil
	}
	if state, _ := s.Container.GetModuleState(spec.Name); state == module.StateEnabled {
		stream, _ := s.Container.GetEnabledStream(spec.Name)
		return stream, nil
	}
	if stream := s.DefaultStream(spec.Name); stream != "" {
		return stream, nil
	}
	return "", fmt.Errorf("module %s: no stream given and no enabled or default stream", spec.Name)
}

// Enable enables the streams named by specs.
func (s *Session) Enable(ctx context.Context, specs []string) (Change, error) {
	return s.apply(ctx, specs, func(spec module.Spec) error {
		stream, err := s.streamFor(spec)
		if err != nil {
			return err
		}
		_, err = s.Container.Enable(spec.Name, stream)
		return err
	})
}

// Disable disables the modules named by specs.
func (s *Session) Disable(ctx context.Context, specs []string) (Change, error) {
	return s.apply(ctx, specs, func(spec module.Spec) error {
		_, err := s.Container.Disable(spec.Name, spec.Stream)
		return err
	})
}

// Reset resets the modules named by specs.
func (s *Session) Reset(ctx context.Context, specs []string) (Change, error) {
	return s.apply(ctx, specs, func(spec module.Spec) error {
		_, err := s.Container.Reset(spec.Name)
		return err
	})
}

// Install enables the stream of each spec and installs its profile, or the
// default profiles of the stream when the spec names none.
func (s *Session) Install(ctx context.Context, specs []string) (Change, error) {
	return s.apply(ctx, specs, func(spec module.Spec) error {
		stream, err := s.streamFor(spec)
		if err != nil {
			return err
		}
		profiles := []string{spec.Profile}
		if spec.Profile == "" {
			profiles, _ = s.Defaults.GetDefaultProfiles(spec.Name, stream)
			if len(profiles) == 0 {
				return fmt.Errorf("module %s:%s: no profile given and no default profile", spec.Name, stream)
			}
		}
		for _, profile := range profiles {
			if _, err := s.Container.Install(spec.Name, stream, profile); err != nil {
				return err
			}
		}
		return nil
	})
}

// Remove removes the profile of each spec, or every installed profile of
// the module when the spec names none.
func (s *Session) Remove(ctx context.Context, specs []string) (Change, error) {
	return s.apply(ctx, specs, func(spec module.Spec) error {
		profiles := []string{spec.Profile}
		if spec.Profile == "" {
			var err error
			if profiles, err = s.Container.GetInstalledProfiles(spec.Name); err != nil {
				return err
			}
		}
		for _, profile := range profiles {
			if _, err := s.Container.Uninstall(spec.Name, profile); err != nil {
				return err
			}
		}
		return nil
	})
}

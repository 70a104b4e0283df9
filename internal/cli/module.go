package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rpm-software-management/libdnf-sub006/internal/app"
	"github.com/rpm-software-management/libdnf-sub006/internal/module"
)

func (c *cli) newModuleCmd() *cobra.Command {
	moduleCmd := &cobra.Command{
		Use:   "module",
		Short: "Inspect and change module streams",
	}
	moduleCmd.AddCommand(
		c.newListCmd(),
		c.newInfoCmd(),
		c.newActiveCmd(),
		c.newProvidesCmd(),
		c.newChangeCmd("enable", "Enable module streams",
			"Enables the stream of each spec. Without a stream the enabled or default stream is used.",
			(*app.Session).Enable),
		c.newChangeCmd("disable", "Disable modules",
			"Disables each module; no stream of it will be active.",
			(*app.Session).Disable),
		c.newChangeCmd("reset", "Reset modules",
			"Returns each module to its initial state: no enabled stream, no profiles.",
			(*app.Session).Reset),
		c.newChangeCmd("install", "Install module profiles",
			"Enables the stream of each spec and installs its profile, or the default profiles.",
			(*app.Session).Install),
		c.newChangeCmd("remove", "Remove module profiles",
			"Removes the profile of each spec, or every installed profile of the module.",
			(*app.Session).Remove),
	)
	return moduleCmd
}

// withSession opens a session, resolves the active modules and runs fn.
func (c *cli) withSession(ctx context.Context, fn func(*app.Session) error) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	if _, err := s.Resolve(ctx); err != nil {
		return err
	}
	return fn(s)
}

func (c *cli) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [module_name...]",
		Short: "List module streams",
		Long: `Lists the streams of every module, or of the named modules.

Flags: [d]efault, [e]nabled, [x] disabled, [a]ctive, [i]nstalled profile.

Examples:
  modulectl module list
  modulectl module list httpd nodejs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(s *app.Session) error {
				for _, name := range args {
					if _, err := s.Container.GetModulePackagesByName(name); err != nil {
						return err
					}
				}
				return printStreams(cmd.OutOrStdout(), s, s.Modules(args...))
			})
		},
	}
}

func printStreams(out io.Writer, s *app.Session, mods []app.ModuleSummary) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTREAM\tPROFILES\tSUMMARY")
	for _, m := range mods {
		if s.Platform != nil && m.Name == s.Platform.Name() {
			continue
		}
		for _, stream := range m.Streams {
			latest, err := s.Container.GetLatestModulePackage(m.Name, stream)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s%s\t%s\t%s\n", m.Name, stream, streamFlags(s, m, stream),
				profileList(s, m, latest), latest.Summary())
		}
	}
	return w.Flush()
}

func streamFlags(s *app.Session, m app.ModuleSummary, stream string) string {
	var flags []string
	if m.DefaultStream == stream {
		flags = append(flags, "[d]")
	}
	switch {
	case m.State == module.StateEnabled.String() && m.EnabledStream == stream:
		flags = append(flags, "[e]")
	case m.State == module.StateDisabled.String():
		flags = append(flags, "[x]")
	}
	pkgs, _ := s.Container.GetModulePackagesByStream(m.Name, stream)
	for _, p := range pkgs {
		if s.Container.IsModuleActive(p.ID()) {
			flags = append(flags, "[a]")
			break
		}
	}
	if len(flags) == 0 {
		return ""
	}
	return " " + strings.Join(flags, "")
}

func profileList(s *app.Session, m app.ModuleSummary, p *module.ModulePackage) string {
	defaults, _ := s.Defaults.GetDefaultProfiles(m.Name, p.Stream())
	installed := m.EnabledStream == p.Stream()
	var out []string
	for _, profile := range p.Profiles() {
		label := profile.Name
		for _, d := range defaults {
			if d == profile.Name {
				label += " [d]"
				break
			}
		}
		if installed {
			for _, i := range m.InstalledProfiles {
				if i == profile.Name {
					label += " [i]"
					break
				}
			}
		}
		out = append(out, label)
	}
	return strings.Join(out, ", ")
}

func (c *cli) newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <spec>...",
		Short: "Show module package details",
		Long: `Shows every module package matching each spec.

Spec format: NAME[:STREAM[:VERSION[:CONTEXT]]][::ARCH][/PROFILE]

Example:
  modulectl module info httpd:2.4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(s *app.Session) error {
				out := cmd.OutOrStdout()
				for _, arg := range args {
					pkgs, _, err := s.Container.Query(arg)
					if err != nil {
						return err
					}
					if len(pkgs) == 0 {
						return fmt.Errorf("no module packages match %s", arg)
					}
					for _, p := range pkgs {
						printInfo(out, s.View(p))
					}
				}
				return nil
			})
		},
	}
}

func printInfo(out io.Writer, v app.PackageView) {
	w := tabwriter.NewWriter(out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(w, "Name\t: %s\n", v.Name)
	fmt.Fprintf(w, "Stream\t: %s\n", v.Stream)
	fmt.Fprintf(w, "Version\t: %d\n", v.Version)
	fmt.Fprintf(w, "Context\t: %s\n", v.Context)
	fmt.Fprintf(w, "Architecture\t: %s\n", v.Arch)
	fmt.Fprintf(w, "Repo\t: %s\n", v.Repo)
	fmt.Fprintf(w, "State\t: %s\n", v.State)
	fmt.Fprintf(w, "Active\t: %t\n", v.Active)
	fmt.Fprintf(w, "Profiles\t: %s\n", strings.Join(v.Profiles, ", "))
	if v.Summary != "" {
		fmt.Fprintf(w, "Summary\t: %s\n", v.Summary)
	}
	for i, a := range v.Artifacts {
		label := ""
		if i == 0 {
			label = "Artifacts"
		}
		fmt.Fprintf(w, "%s\t: %s\n", label, a)
	}
	_ = w.Flush()
	fmt.Fprintln(out)
}

func (c *cli) newActiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "List active module packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(s *app.Session) error {
				for _, p := range s.Container.ActivePackages() {
					fmt.Fprintln(cmd.OutOrStdout(), p.FullIdentifier())
				}
				return nil
			})
		},
	}
}

func (c *cli) newProvidesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provides <nevra>...",
		Short: "Show which module packages ship the given packages",
		Long: `Lists the module packages whose artifacts contain each NEVRA and whether
the module would have to be enabled to use it.

Example:
  modulectl module provides httpd-0:2.4.33-1.module_f28.x86_64`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(s *app.Session) error {
				needs := make(map[string]bool)
				for _, p := range s.Container.RequiresModuleEnablement(args) {
					needs[p.FullIdentifier()] = true
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "PACKAGE\tMODULE\tREPO\tNOTE")
				for _, nevra := range args {
					for _, p := range s.Container.GetModulePackages() {
						if !contains(p.Artifacts(), nevra) {
							continue
						}
						note := ""
						if needs[p.FullIdentifier()] {
							note = "requires enabling " + p.NameStream()
						}
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", nevra, p.FullIdentifier(), p.RepoID(), note)
					}
				}
				return w.Flush()
			})
		},
	}
}

type changeFunc func(*app.Session, context.Context, []string) (app.Change, error)

func (c *cli) newChangeCmd(use, short, long string, op changeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <spec>...",
		Short: short,
		Long:  long + "\n\nAll specs are applied together; if one fails nothing is saved.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			change, err := op(s, cmd.Context(), args)
			if err != nil {
				return err
			}
			printChange(cmd.OutOrStdout(), change)
			return nil
		},
	}
}

func printChange(out io.Writer, ch app.Change) {
	if ch.Empty() {
		fmt.Fprintln(out, "Nothing to do.")
		return
	}
	for _, name := range sortedKeys(ch.Enabled) {
		fmt.Fprintf(out, "Enabling module streams: %s:%s\n", name, ch.Enabled[name])
	}
	for _, name := range sortedKeys(ch.Switched) {
		fmt.Fprintf(out, "Switching module streams: %s:%s -> %s\n", name, ch.Switched[name][0], ch.Switched[name][1])
	}
	for _, name := range ch.Disabled {
		fmt.Fprintf(out, "Disabling modules: %s\n", name)
	}
	for _, name := range ch.Reset {
		fmt.Fprintf(out, "Resetting modules: %s\n", name)
	}
	for _, name := range sortedKeys(ch.InstalledProfiles) {
		fmt.Fprintf(out, "Installing module profiles: %s/%s\n", name, strings.Join(ch.InstalledProfiles[name], ","))
	}
	for _, name := range sortedKeys(ch.RemovedProfiles) {
		fmt.Fprintf(out, "Removing module profiles: %s/%s\n", name, strings.Join(ch.RemovedProfiles[name], ","))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

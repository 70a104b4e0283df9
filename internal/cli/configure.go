package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// configurable lists the settings the configure command can write, flag
// name to config key. Entries without usage reuse a persistent root flag.
var configurable = []struct{ flag, key, usage string }{
	{"state-backend", "STATE_BACKEND", ""},
	{"repos", "REPOS", ""},
	{"platform-id", "PLATFORM_ID", ""},
	{"state-path", "STATE_PATH", "TOML state file to save"},
	{"sqlite-path", "SQLITE_PATH", "SQLite database file to save"},
	{"storage-type", "STORAGE_TYPE", "Metadata storage to save: local or minio"},
	{"local-storage-path", "LOCAL_STORAGE_PATH", "Local metadata directory to save"},
	{"arch", "ARCH", "Architecture to save"},
}

func (c *cli) newConfigureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Save module state and storage settings",
		Long: `Saves settings to the configuration file.
Configuration is stored in ~/.config/modulectl/config.yaml by default.

Precedence order for configuration values:
1. Command-line flags
2. Environment variables (MODULECTL_STATE_BACKEND, MODULECTL_REPOS, ...)
3. Configuration file (~/.config/modulectl/config.yaml)
4. Default values`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := 0
			for _, s := range configurable {
				f := cmd.Flags().Lookup(s.flag)
				if f == nil || !f.Changed {
					continue
				}
				c.v.Set(s.key, f.Value.String())
				c.log.Info("setting config value", zap.String("key", s.key), zap.String("value", f.Value.String()))
				changed++
			}
			if changed == 0 {
				return fmt.Errorf("at least one setting flag must be provided")
			}

			path, err := c.writeConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration successfully saved to %s\n", path)
			return nil
		},
	}
	for _, s := range configurable {
		if s.usage != "" {
			cmd.Flags().String(s.flag, "", s.usage)
		}
	}
	return cmd
}

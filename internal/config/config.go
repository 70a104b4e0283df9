package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the daemon and the CLI.
type Config struct {
	// Server specific configuration
	ServerPort string `mapstructure:"SERVER_PORT"`
	AuthToken  string `mapstructure:"AUTH_TOKEN"` // Static bearer token for state mutations, empty disables auth

	// Module state backend
	StateBackend string `mapstructure:"STATE_BACKEND"` // "toml", "sqlite" or "postgres"
	StatePath    string `mapstructure:"STATE_PATH"`    // TOML state file
	DbDsn        string `mapstructure:"DB_DSN"`        // Data Source Name for Postgres
	SqlitePath   string `mapstructure:"SQLITE_PATH"`   // Path for SQLite database file

	// Metadata storage configuration
	StorageType      string `mapstructure:"STORAGE_TYPE"`       // "minio" or "local"
	LocalStoragePath string `mapstructure:"LOCAL_STORAGE_PATH"` // Path for local metadata storage

	// MinIO specific configuration (only used if StorageType is "minio")
	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`

	// Repositories whose module metadata is loaded, "id:priority,id:priority"
	Repos string `mapstructure:"REPOS"`

	// Platform detection. PLATFORM_ID wins over the os-release file.
	PlatformID    string `mapstructure:"PLATFORM_ID"`
	OSReleasePath string `mapstructure:"OS_RELEASE_PATH"`
	Arch          string `mapstructure:"ARCH"`
}

// Repo is one entry of the REPOS setting.
type Repo struct {
	ID       string
	Priority int
}

// DefaultRepoPriority is used for REPOS entries without an explicit priority.
const DefaultRepoPriority = 99

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("AUTH_TOKEN", "")
	v.SetDefault("STATE_BACKEND", "toml")
	v.SetDefault("STATE_PATH", "./modulectl-state/modules.toml")
	v.SetDefault("DB_DSN", "host=localhost user=postgres password=postgres dbname=modulectl port=5432 sslmode=disable")
	v.SetDefault("SQLITE_PATH", "modulectl.db")
	v.SetDefault("STORAGE_TYPE", "local")
	v.SetDefault("LOCAL_STORAGE_PATH", "./modulectl-storage")
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	v.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	v.SetDefault("MINIO_BUCKET", "modulemd")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("REPOS", "")
	v.SetDefault("PLATFORM_ID", "")
	v.SetDefault("OS_RELEASE_PATH", "/etc/os-release")
	v.SetDefault("ARCH", "x86_64")
}

// LoadConfig loads configuration from environment variables on top of the
// defaults. Pass nil to use the global viper instance.
func LoadConfig(v *viper.Viper) (config Config, err error) {
	if v == nil {
		v = viper.GetViper()
	}
	SetDefaults(v)

	// e.g. MODULECTL_STATE_BACKEND, MODULECTL_REPOS
	v.SetEnvPrefix("MODULECTL")
	v.AutomaticEnv()

	err = v.Unmarshal(&config)
	return
}

// ParseRepos parses a REPOS value. Entries are separated by commas; each is
// "id" or "id:priority". The result is sorted by id.
func ParseRepos(s string) ([]Repo, error) {
	var repos []Repo
	seen := make(map[string]bool)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, prio, hasPrio := strings.Cut(entry, ":")
		repo := Repo{ID: strings.TrimSpace(id), Priority: DefaultRepoPriority}
		if repo.ID == "" {
			return nil, fmt.Errorf("invalid repo entry %q: empty id", entry)
		}
		if hasPrio {
			p, err := strconv.Atoi(strings.TrimSpace(prio))
			if err != nil {
				return nil, fmt.Errorf("invalid repo entry %q: %w", entry, err)
			}
			repo.Priority = p
		}
		if seen[repo.ID] {
			return nil, fmt.Errorf("duplicate repo %q", repo.ID)
		}
		seen[repo.ID] = true
		repos = append(repos, repo)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].ID < repos[j].ID })
	return repos, nil
}

// FormatRepos is the inverse of ParseRepos.
func FormatRepos(repos []Repo) string {
	parts := make([]string, 0, len(repos))
	for _, r := range repos {
		parts = append(parts, fmt.Sprintf("%s:%d", r.ID, r.Priority))
	}
	return strings.Join(parts, ",")
}

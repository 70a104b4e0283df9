package statestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rpm-software-management/libdnf-sub006/internal/config"
	"github.com/rpm-software-management/libdnf-sub006/internal/module"
)

var sampleStates = map[string]module.RuntimeState{
	"httpd": {
		State:             module.StateEnabled,
		EnabledStream:     "2.4",
		InstalledProfiles: []string{"default", "doc"},
		StreamChanges:     2,
	},
	"nodejs": {State: module.StateDisabled},
	"perl":   {State: module.StateEnabled, EnabledStream: "5.26", Locked: true},
}

func assertRoundTrip(t *testing.T, store module.StateStore) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, store.Save(ctx, sampleStates))
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleStates, loaded)

	// a save replaces everything written before
	require.NoError(t, store.Save(ctx, map[string]module.RuntimeState{"nodejs": {State: module.StateEnabled, EnabledStream: "10"}}))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]module.RuntimeState{"nodejs": {State: module.StateEnabled, EnabledStream: "10"}}, loaded)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	assertRoundTrip(t, NewMemoryStore())
}

func TestTOMLStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "modules.toml")
	store := NewTOMLStore(path)
	assertRoundTrip(t, store)
	assert.Equal(t, int64(2), store.Generation())

	// a fresh store continues the generation count
	again := NewTOMLStore(path)
	_, err := again.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.Generation())

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".modules-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestTOMLStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules.toml")
	require.NoError(t, os.WriteFile(path, []byte("generation = [unterminated"), 0o644))

	_, err := NewTOMLStore(path).Load(context.Background())
	assert.ErrorContains(t, err, "decode")
}

func TestTOMLStore_InvalidState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules.toml")
	require.NoError(t, os.WriteFile(path, []byte("[modules.httpd]\nstate = \"HALF\"\n"), 0o644))

	_, err := NewTOMLStore(path).Load(context.Background())
	assert.ErrorContains(t, err, "httpd")
}

func TestDBStore_SQLiteRoundTrip(t *testing.T) {
	cfg := config.Config{StateBackend: "sqlite", SqlitePath: filepath.Join(t.TempDir(), "state.db")}
	store, closeFn, err := Open(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	assertRoundTrip(t, store)

	commits, err := store.(*DBStore).Commits(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, 1, commits[0].ModuleCount)
}

func TestOpen_Backends(t *testing.T) {
	store, closeFn, err := Open(config.Config{StateBackend: "toml", StatePath: filepath.Join(t.TempDir(), "m.toml")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &TOMLStore{}, store)
	assert.NoError(t, closeFn())

	_, _, err = Open(config.Config{StateBackend: "toml"}, nil)
	assert.ErrorContains(t, err, "STATE_PATH")

	_, _, err = Open(config.Config{StateBackend: "etcd"}, nil)
	assert.ErrorContains(t, err, "invalid STATE_BACKEND")
}

// setupMockDB returns a DBStore over sqlmock speaking the postgres dialect.
func setupMockDB(t *testing.T) (*DBStore, sqlmock.Sqlmock) {
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDb.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       mockDb,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)
	return NewDBStore(gormDB), mock
}

func TestDBStore_LoadRows(t *testing.T) {
	store, mock := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "name", "state", "enabled_stream", "installed_profiles", "locked", "stream_changes", "commit_id", "updated_at"}).
		AddRow("4e1d7e2c-5a57-4f4a-9a8c-1f6a2d9f3b10", "httpd", "ENABLED", "2.4", `["default"]`, false, 1, "8a7d7f5e-0c1b-4a4e-8f1e-2b3c4d5e6f70", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "module_states"`)).WillReturnRows(rows)

	states, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]module.RuntimeState{
		"httpd": {State: module.StateEnabled, EnabledStream: "2.4", InstalledProfiles: []string{"default"}, StreamChanges: 1},
	}, states)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBStore_LoadError(t *testing.T) {
	store, mock := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "module_states"`)).WillReturnError(errors.New("connection reset"))

	_, err := store.Load(context.Background())
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBStore_SaveBeginError(t *testing.T) {
	store, mock := setupMockDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("read-only transaction"))

	err := store.Save(context.Background(), sampleStates)
	assert.ErrorContains(t, err, "read-only transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBStore_SaveRollsBackOnWriteError(t *testing.T) {
	store, mock := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "state_commits"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "module_states"`)).
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := store.Save(context.Background(), sampleStates)
	assert.ErrorContains(t, err, "clear module states")
	assert.NoError(t, mock.ExpectationsWereMet())
}

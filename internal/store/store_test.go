package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sealkv/internal/keys"
	"github.com/roach88/sealkv/internal/kv"
	"github.com/roach88/sealkv/internal/querysql"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(context.Background(), Options{DSN: path})
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	require.NoError(t, err, "database file was not created")
	assert.Equal(t, querysql.SQLite, s.Dialect())
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(context.Background(), Options{DSN: path})
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}

	s, err := Open(context.Background(), Options{DSN: path})
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"config", "profiles", "items", "items_tags"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s, err := Open(context.Background(), Options{DSN: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	defer s.Close()

	pragmas := map[string]string{
		"journal_mode": "wal",
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, want := range pragmas {
		var got string
		require.NoError(t, s.db.QueryRow("PRAGMA "+name).Scan(&got))
		assert.Equal(t, want, got, name)
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.Equal(t, kv.ErrCodeInput, kv.CodeOf(err))

	_, err = Open(context.Background(), Options{Driver: DriverSQLite3})
	require.Error(t, err)

	_, err = Open(context.Background(), Options{DSN: filepath.Join(t.TempDir(), "x.db"), Dialect: "oracle"})
	require.Error(t, err)
}

func TestOpen_ModerncDriver(t *testing.T) {
	s, _ := createTestStoreWith(t, DriverSQLite, filepath.Join(t.TempDir(), "modernc.db"))
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, "", kv.OpInsert, []kv.UpdateEntry{
		testEntry("cat", "a", "1", tag("color", "red")),
	}))
	got, err := s.Fetch(ctx, "", "cat", "a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(got.Value))
	assert.Equal(t, []kv.EntryTag{tag("color", "red")}, got.Tags)
}

func TestProvision_DefaultProfileAndDuplicate(t *testing.T) {
	s, _ := createTestStore(t)

	assert.Equal(t, "profile-1", s.DefaultProfile())

	_, err := s.Provision(context.Background(), keys.MethodRaw, testRawKey, "")
	require.Error(t, err)
	assert.True(t, kv.IsDuplicate(err))
}

func TestUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(ctx, Options{DSN: path})
	require.NoError(t, err)
	profile, err := s.Provision(ctx, keys.MethodRaw, testRawKey, "main")
	require.NoError(t, err)
	assert.Equal(t, "main", profile)
	require.NoError(t, s.Update(ctx, "", kv.OpInsert, []kv.UpdateEntry{testEntry("cat", "a", "secret")}))
	s.Close()

	t.Run("correct key", func(t *testing.T) {
		s, err := Open(ctx, Options{DSN: path})
		require.NoError(t, err)
		defer s.Close()

		require.NoError(t, s.Unlock(ctx, testRawKey))
		assert.Equal(t, "main", s.DefaultProfile())
		got, err := s.Fetch(ctx, "", "cat", "a")
		require.NoError(t, err)
		assert.Equal(t, "secret", string(got.Value))
	})

	t.Run("wrong key", func(t *testing.T) {
		s, err := Open(ctx, Options{DSN: path})
		require.NoError(t, err)
		defer s.Close()

		other, err := keys.GenerateRawKey()
		require.NoError(t, err)
		err = s.Unlock(ctx, other)
		require.Error(t, err)
		assert.True(t, kv.IsEncryptionError(err))
	})

	t.Run("locked store", func(t *testing.T) {
		s, err := Open(ctx, Options{DSN: path})
		require.NoError(t, err)
		defer s.Close()

		_, err = s.Fetch(ctx, "", "cat", "a")
		require.Error(t, err)
		assert.Equal(t, kv.ErrCodeInput, kv.CodeOf(err))
	})
}

func TestUnlock_NotProvisioned(t *testing.T) {
	s, err := Open(context.Background(), Options{DSN: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	defer s.Close()

	err = s.Unlock(context.Background(), testRawKey)
	assert.True(t, kv.IsNotFound(err))
}

func TestProvision_Argon2(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(ctx, Options{DSN: path})
	require.NoError(t, err)
	_, err = s.Provision(ctx, keys.MethodArgon2iInt, "correct horse", "p")
	require.NoError(t, err)
	s.Close()

	s, err = Open(ctx, Options{DSN: path})
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, kv.IsEncryptionError(s.Unlock(ctx, "battery staple")))
	require.NoError(t, s.Unlock(ctx, "correct horse"))
}

func TestProfiles(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	name, err := s.CreateProfile(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "other", name)

	generated, err := s.CreateProfile(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "profile-2", generated)

	_, err = s.CreateProfile(ctx, "other")
	assert.True(t, kv.IsDuplicate(err))

	names, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "profile-1", "profile-2"}, names)

	// Entries are isolated per profile.
	require.NoError(t, s.Update(ctx, "", kv.OpInsert, []kv.UpdateEntry{testEntry("cat", "a", "default")}))
	require.NoError(t, s.Update(ctx, "other", kv.OpInsert, []kv.UpdateEntry{testEntry("cat", "a", "other")}))

	got, err := s.Fetch(ctx, "other", "cat", "a")
	require.NoError(t, err)
	assert.Equal(t, "other", string(got.Value))

	require.NoError(t, s.RemoveProfile(ctx, "other"))
	_, err = s.Fetch(ctx, "other", "cat", "a")
	assert.True(t, kv.IsNotFound(err))

	got, err = s.Fetch(ctx, "", "cat", "a")
	require.NoError(t, err)
	assert.Equal(t, "default", string(got.Value))

	assert.Equal(t, kv.ErrCodeInput, kv.CodeOf(s.RemoveProfile(ctx, "profile-1")))
	assert.True(t, kv.IsNotFound(s.RemoveProfile(ctx, "missing")))
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\n  CREATE INDEX i ON a (x) ;\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, got)
}

func TestEmbeddedSchemas(t *testing.T) {
	for name, info := range drivers {
		raw, err := schemaFS.ReadFile(info.schema)
		require.NoError(t, err, name)
		assert.Contains(t, string(raw), "items_tags", name)
	}
}

func TestMySQLSchema_TagColumns(t *testing.T) {
	raw, err := schemaFS.ReadFile("schema/mysql.sql")
	require.NoError(t, err)
	stmts := splitStatements(string(raw))

	var tagsTable string
	for _, stmt := range stmts {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS items_tags") {
			tagsTable = stmt
		}
	}
	require.NotEmpty(t, tagsTable)
	assert.Contains(t, tagsTable, "name BLOB NOT NULL")
	assert.Contains(t, tagsTable, "value BLOB NOT NULL")
	assert.Contains(t, tagsTable, "(name(255), value(255))")
	assert.NotContains(t, tagsTable, "VARBINARY")
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sealkv/internal/keys"
	"github.com/roach88/sealkv/internal/kv"
	"github.com/roach88/sealkv/internal/testutil"
)

const testNowMs = int64(1_700_000_000_000)

// testRawKey is a fixed base64url raw key.
const testRawKey = "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8"

// createTestStore opens a provisioned SQLite store in a temp dir.
func createTestStore(t *testing.T) (*Store, *testutil.FixedClock) {
	t.Helper()
	return createTestStoreWith(t, DriverSQLite3, filepath.Join(t.TempDir(), "test.db"))
}

func createTestStoreWith(t *testing.T, driver, dsn string) (*Store, *testutil.FixedClock) {
	t.Helper()
	clock := testutil.NewFixedClock(testNowMs)
	s, err := Open(context.Background(), Options{
		Driver:         driver,
		DSN:            dsn,
		Now:            clock.Now,
		NewProfileName: testutil.NewSequentialNames("profile").Generate,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Provision(context.Background(), keys.MethodRaw, testRawKey, "")
	require.NoError(t, err)
	return s, clock
}

func testEntry(category, name, value string, tags ...kv.EntryTag) kv.UpdateEntry {
	return kv.UpdateEntry{Entry: kv.Entry{Category: category, Name: name, Value: []byte(value), Tags: tags}}
}

func tag(name, value string) kv.EntryTag {
	return kv.EntryTag{Name: name, Value: value}
}

func plainTag(name, value string) kv.EntryTag {
	return kv.EntryTag{Name: name, Value: value, Plaintext: true}
}

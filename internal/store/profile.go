package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/sealkv/internal/keys"
	"github.com/roach88/sealkv/internal/kv"
)

// Config table keys.
const (
	configVersion        = "version"
	configKeyMethod      = "key_method"
	configSalt           = "salt"
	configKeyCheck       = "key_check"
	configDefaultProfile = "default_profile"
)

// keyCheckPlaintext is sealed under the store key at provision time.
const keyCheckPlaintext = "sealkv/key-check/v1"

func defaultProfileName() string {
	return uuid.NewString()
}

// Provision initializes an empty store: it records the key method, salt and
// key-check value, and creates the default profile. An empty profile name is
// replaced by a generated one. It returns the default profile name and leaves
// the store unlocked.
//
// Provisioning an already provisioned store returns a DUPLICATE error.
func (s *Store) Provision(ctx context.Context, method keys.KeyMethod, passKey, profile string) (string, error) {
	if _, ok, err := s.configValue(ctx, configKeyMethod); err != nil {
		return "", err
	} else if ok {
		return "", kv.NewError(kv.ErrCodeDuplicate, "store is already provisioned")
	}

	var salt []byte
	if method.NeedsSalt() {
		var err error
		if salt, err = keys.GenerateSalt(); err != nil {
			return "", kv.WrapError(kv.ErrCodeEncryption, "provision", err)
		}
	}
	key, err := keys.OpenStoreKey(method, passKey, salt)
	if err != nil {
		return "", kv.WrapError(kv.ErrCodeInput, "provision: derive store key", err)
	}
	check, err := key.EncryptName([]byte(keyCheckPlaintext))
	if err != nil {
		return "", kv.WrapError(kv.ErrCodeEncryption, "provision: key check", err)
	}

	if profile == "" {
		profile = s.newName()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", backendError("provision: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	config := [][2]string{
		{configVersion, kv.SchemaVersion},
		{configKeyMethod, string(method)},
		{configSalt, base64.StdEncoding.EncodeToString(salt)},
		{configKeyCheck, base64.StdEncoding.EncodeToString(check)},
		{configDefaultProfile, profile},
	}
	insertConfig := s.rebind("INSERT INTO config (name, value) VALUES ($$, $$)")
	for _, kvp := range config {
		if _, err := tx.ExecContext(ctx, insertConfig, kvp[0], kvp[1]); err != nil {
			return "", backendError("provision: write config", err)
		}
	}
	if _, err := s.insertProfile(ctx, tx, profile); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", backendError("provision: commit", err)
	}

	s.mu.Lock()
	s.key = key
	s.defaultProfile = profile
	s.mu.Unlock()

	slog.Info("store provisioned", "key_method", method, "profile", profile)
	return profile, nil
}

// Unlock derives the store key from passKey using the recorded method and
// salt. A pass key that does not reproduce the key-check value fails with an
// ENCRYPTION error.
func (s *Store) Unlock(ctx context.Context, passKey string) error {
	values := make(map[string]string)
	for _, name := range []string{configKeyMethod, configSalt, configKeyCheck, configDefaultProfile} {
		v, ok, err := s.configValue(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return kv.NewError(kv.ErrCodeNotFound, "store is not provisioned")
		}
		values[name] = v
	}

	method, err := keys.ParseKeyMethod(values[configKeyMethod])
	if err != nil {
		return kv.WrapError(kv.ErrCodeInput, "unlock", err)
	}
	salt, err := base64.StdEncoding.DecodeString(values[configSalt])
	if err != nil {
		return kv.WrapError(kv.ErrCodeBackend, "unlock: decode salt", err)
	}
	check, err := base64.StdEncoding.DecodeString(values[configKeyCheck])
	if err != nil {
		return kv.WrapError(kv.ErrCodeBackend, "unlock: decode key check", err)
	}

	key, err := keys.OpenStoreKey(method, passKey, salt)
	if err != nil {
		return kv.WrapError(kv.ErrCodeEncryption, "unlock: derive store key", err)
	}
	got, err := key.EncryptName([]byte(keyCheckPlaintext))
	if err != nil {
		return kv.WrapError(kv.ErrCodeEncryption, "unlock: key check", err)
	}
	if string(got) != string(check) {
		return kv.NewError(kv.ErrCodeEncryption, "pass key does not match this store")
	}

	s.mu.Lock()
	s.key = key
	s.defaultProfile = values[configDefaultProfile]
	s.mu.Unlock()
	return nil
}

// DefaultProfile returns the default profile name, or "" while locked.
func (s *Store) DefaultProfile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultProfile
}

// CreateProfile adds a profile. An empty name is replaced by a generated one.
// It returns the profile name.
func (s *Store) CreateProfile(ctx context.Context, name string) (string, error) {
	if name == "" {
		name = s.newName()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", backendError("create profile: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := s.insertProfile(ctx, tx, name); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", backendError("create profile: commit", err)
	}
	return name, nil
}

// ListProfiles returns all profile names in lexical order.
func (s *Store) ListProfiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM profiles ORDER BY name")
	if err != nil {
		return nil, backendError("list profiles", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, backendError("list profiles: scan", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, backendError("list profiles: iterate", err)
	}
	return names, nil
}

// RemoveProfile deletes a profile and all of its entries.
// The default profile cannot be removed.
func (s *Store) RemoveProfile(ctx context.Context, name string) error {
	if name != "" && name == s.DefaultProfile() {
		return kv.NewError(kv.ErrCodeInput, "cannot remove the default profile")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return backendError("remove profile: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	id, err := s.lookupProfileID(ctx, tx, name)
	if err != nil {
		return err
	}
	stmts := []string{
		"DELETE FROM items_tags WHERE item_id IN (SELECT id FROM items WHERE profile_id = $$)",
		"DELETE FROM items WHERE profile_id = $$",
		"DELETE FROM profiles WHERE id = $$",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, s.rebind(stmt), int64(id)); err != nil {
			return backendError("remove profile", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return backendError("remove profile: commit", err)
	}
	return nil
}

// scope resolves a profile name (empty for the default) to its id and key.
func (s *Store) scope(ctx context.Context, profile string) (kv.ProfileID, *keys.StoreKey, error) {
	s.mu.RLock()
	key, def := s.key, s.defaultProfile
	s.mu.RUnlock()

	if key == nil {
		return 0, nil, kv.NewError(kv.ErrCodeInput, "store is locked")
	}
	if profile == "" {
		profile = def
	}

	id, err := s.lookupProfileID(ctx, s.db, profile)
	if err != nil {
		return 0, nil, err
	}
	pk, err := key.ForProfile(profile)
	if err != nil {
		return 0, nil, kv.WrapError(kv.ErrCodeEncryption, "derive profile key", err)
	}
	return id, pk, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) lookupProfileID(ctx context.Context, q querier, name string) (kv.ProfileID, error) {
	var id int64
	err := q.QueryRowContext(ctx, s.rebind("SELECT id FROM profiles WHERE name = $$"), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, kv.NewError(kv.ErrCodeNotFound, fmt.Sprintf("profile %q not found", name))
	}
	if err != nil {
		return 0, backendError("lookup profile", err)
	}
	return kv.ProfileID(id), nil
}

func (s *Store) insertProfile(ctx context.Context, q querier, name string) (kv.ProfileID, error) {
	id, err := s.insertReturningID(ctx, q, "INSERT INTO profiles (name) VALUES ($$)", name)
	if err != nil {
		return 0, backendError(fmt.Sprintf("create profile %q", name), err)
	}
	return kv.ProfileID(id), nil
}

// insertReturningID runs an INSERT written with markers and returns the new
// row id, using RETURNING where the dialect needs it.
func (s *Store) insertReturningID(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	if ret := s.dialect.Returning(); ret != "" {
		var id int64
		if err := q.QueryRowContext(ctx, s.rebind(query+ret), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := q.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// configValue reads one config entry.
func (s *Store) configValue(ctx context.Context, name string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT value FROM config WHERE name = $$"), name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, backendError("read config", err)
	}
	return value.String, true, nil
}

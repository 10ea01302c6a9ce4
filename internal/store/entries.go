package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/sealkv/internal/keys"
	"github.com/roach88/sealkv/internal/kv"
	"github.com/roach88/sealkv/internal/metrics"
	"github.com/roach88/sealkv/internal/querysql"
	"github.com/roach88/sealkv/internal/tagquery"
	"github.com/roach88/sealkv/internal/update"
)

// activeItems selects a profile's unexpired items; extended by filters.
const activeItems = "i.profile_id = $$ AND (i.expiry IS NULL OR i.expiry > $$)"

// observe records the outcome and latency of a store operation.
func observe(op string, start time.Time, err error) {
	metrics.StoreOperations.WithLabelValues(op, metrics.Status(err)).Inc()
	metrics.StoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Fetch returns one unexpired entry with its tags.
// A missing or expired entry is a NOT_FOUND error.
func (s *Store) Fetch(ctx context.Context, profile, category, name string) (entry kv.Entry, err error) {
	defer func(start time.Time) { observe("fetch", start, err) }(time.Now())

	profileID, key, err := s.scope(ctx, profile)
	if err != nil {
		return kv.Entry{}, err
	}
	encCategory, encName, err := encryptIdentity(key, category, name)
	if err != nil {
		return kv.Entry{}, err
	}

	var (
		id    int64
		value []byte
	)
	err = s.db.QueryRowContext(ctx,
		s.rebind("SELECT i.id, i.value FROM items i WHERE "+activeItems+" AND i.category = $$ AND i.name = $$"),
		int64(profileID), s.nowMs(), encCategory, encName,
	).Scan(&id, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return kv.Entry{}, kv.NewError(kv.ErrCodeNotFound, fmt.Sprintf("entry %s/%s not found", category, name))
	}
	if err != nil {
		return kv.Entry{}, backendError("fetch", err)
	}

	tags, err := s.loadTags(ctx, id)
	if err != nil {
		return kv.Entry{}, err
	}
	return decryptEntry(key, kv.EncEntry{Category: encCategory, Name: encName, Value: value}, tags)
}

// Scan returns the unexpired entries of category (all categories when empty)
// matching filter, ordered by insertion, within page.
func (s *Store) Scan(ctx context.Context, profile, category string, filter tagquery.Query, page querysql.Page) (entries []kv.Entry, err error) {
	defer func(start time.Time) { observe("scan", start, err) }(time.Now())

	profileID, key, err := s.scope(ctx, profile)
	if err != nil {
		return nil, err
	}

	type row struct {
		id  int64
		enc kv.EncEntry
	}
	page.OrderBy = "i.id"
	query, params, err := s.selectItems(ctx, "SELECT i.id, i.category, i.name, i.value FROM items i WHERE ", profileID, key, category, filter, page)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, params.Args()...)
	if err != nil {
		return nil, backendError("scan", err)
	}
	var found []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.enc.Category, &r.enc.Name, &r.enc.Value); err != nil {
			rows.Close()
			return nil, backendError("scan: read row", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, backendError("scan: iterate", err)
	}
	rows.Close()

	entries = make([]kv.Entry, 0, len(found))
	for _, r := range found {
		tags, err := s.loadTags(ctx, r.id)
		if err != nil {
			return nil, err
		}
		entry, err := decryptEntry(key, r.enc, tags)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Count returns the number of unexpired entries of category (all categories
// when empty) matching filter.
func (s *Store) Count(ctx context.Context, profile, category string, filter tagquery.Query) (n int64, err error) {
	defer func(start time.Time) { observe("count", start, err) }(time.Now())

	profileID, key, err := s.scope(ctx, profile)
	if err != nil {
		return 0, err
	}
	query, params, err := s.selectItems(ctx, "SELECT COUNT(*) FROM items i WHERE ", profileID, key, category, filter, querysql.Page{})
	if err != nil {
		return 0, err
	}
	if err := s.db.QueryRowContext(ctx, query, params.Args()...).Scan(&n); err != nil {
		return 0, backendError("count", err)
	}
	return n, nil
}

// RemoveAll deletes the unexpired entries of category (all categories when
// empty) matching filter and returns how many were removed.
func (s *Store) RemoveAll(ctx context.Context, profile, category string, filter tagquery.Query) (removed int64, err error) {
	defer func(start time.Time) { observe("remove_all", start, err) }(time.Now())

	profileID, key, err := s.scope(ctx, profile)
	if err != nil {
		return 0, err
	}
	query, params, err := s.selectItems(ctx, "SELECT i.id FROM items i WHERE ", profileID, key, category, filter, querysql.Page{})
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, backendError("remove all: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	ids, err := queryIDs(ctx, tx, query, params.Args())
	if err != nil {
		return 0, backendError("remove all: select", err)
	}
	for _, id := range ids {
		if err := s.deleteItem(ctx, tx, id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, backendError("remove all: commit", err)
	}
	return int64(len(ids)), nil
}

// selectItems builds base + profile, expiry, category and tag-filter
// conditions, then ordering and pagination.
func (s *Store) selectItems(ctx context.Context, base string, profileID kv.ProfileID, key *keys.StoreKey, category string, filter tagquery.Query, page querysql.Page) (string, *querysql.Params, error) {
	params := querysql.NewParams()
	params.Extend(int64(profileID), s.nowMs())
	where := activeItems
	if category != "" {
		encCategory, err := key.EncryptCategory([]byte(category))
		if err != nil {
			return "", nil, kv.WrapError(kv.ErrCodeEncryption, "encrypt category", err)
		}
		params.Push(encCategory)
		where += " AND i.category = $$"
	}
	query, _ := querysql.ReplacePlaceholders(s.dialect, base+where, 1)

	f, err := querysql.EncodeTagFilter(ctx, s.pool, s.dialect, filter, key, params.Len())
	if err != nil {
		return "", nil, err
	}
	return querysql.ExtendQuery(s.dialect, query, params, f, page), params, nil
}

// Update encrypts entries and applies op to each of them in one transaction.
//
// Encryption happens before any lock is taken. Records are then locked by
// token, in ascending order, for the duration of the transaction.
//   - OpInsert fails with DUPLICATE if an entry exists
//   - OpReplace and OpRemove fail with NOT_FOUND if an entry is missing
//
// Nothing is written unless every entry succeeds.
func (s *Store) Update(ctx context.Context, profile string, op kv.EntryOperation, entries []kv.UpdateEntry) (err error) {
	defer func(start time.Time) { observe(op.String(), start, err) }(time.Now())

	profileID, key, err := s.scope(ctx, profile)
	if err != nil {
		return err
	}

	prepared, err := update.Prepare(ctx, profileID, keys.NewAsync(key, s.pool), entries,
		update.WithClock(s.now), update.WithConcurrency(s.concurrency))
	if err != nil {
		return err
	}

	tokens := make([]int64, len(prepared))
	for i, p := range prepared {
		tokens[i] = p.LockToken
	}
	sorted, unlock, err := s.locks.acquireAll(ctx, tokens)
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return backendError("update: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	if stmt := s.dialect.LockStatement(); stmt != "" {
		lock := s.rebind(stmt)
		for _, token := range sorted {
			if _, err := tx.ExecContext(ctx, lock, token); err != nil {
				return backendError("update: lock record", err)
			}
		}
	}

	for i, p := range prepared {
		if err := s.apply(ctx, tx, op, p); err != nil {
			return withEntryContext(err, op, entries[i].Entry)
		}
	}
	if err := tx.Commit(); err != nil {
		return backendError("update: commit", err)
	}

	slog.Debug("update applied", "op", op.String(), "entries", len(prepared))
	return nil
}

// withEntryContext prefixes NOT_FOUND and DUPLICATE messages with the
// operation and the plaintext entry identity. Other errors pass through.
func withEntryContext(err error, op kv.EntryOperation, e kv.Entry) error {
	var kerr *kv.Error
	if !errors.As(err, &kerr) || (kerr.Code != kv.ErrCodeNotFound && kerr.Code != kv.ErrCodeDuplicate) {
		return err
	}
	return kv.WrapError(kerr.Code, fmt.Sprintf("%s %s/%s: %s", op, e.Category, e.Name, kerr.Message), kerr.Err)
}

func (s *Store) apply(ctx context.Context, tx *sql.Tx, op kv.EntryOperation, p update.Prepared) error {
	switch op {
	case kv.OpInsert:
		if err := s.purgeExpired(ctx, tx, p); err != nil {
			return err
		}
		id, err := s.insertReturningID(ctx, tx,
			"INSERT INTO items (profile_id, category, name, value, expiry) VALUES ($$, $$, $$, $$, $$)",
			int64(p.ProfileID), p.EncEntry.Category, p.EncEntry.Name, p.EncEntry.Value, nullInt64(p.ExpiresAt))
		if err != nil {
			return backendError("insert entry", err)
		}
		return s.insertTags(ctx, tx, id, p.EncTags)

	case kv.OpReplace:
		id, err := s.findItem(ctx, tx, p)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind("UPDATE items SET value = $$, expiry = $$ WHERE id = $$"),
			p.EncEntry.Value, nullInt64(p.ExpiresAt), id); err != nil {
			return backendError("replace entry", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM items_tags WHERE item_id = $$"), id); err != nil {
			return backendError("replace entry tags", err)
		}
		return s.insertTags(ctx, tx, id, p.EncTags)

	case kv.OpRemove:
		id, err := s.findItem(ctx, tx, p)
		if err != nil {
			return err
		}
		return s.deleteItem(ctx, tx, id)

	default:
		return kv.NewError(kv.ErrCodeInput, fmt.Sprintf("unknown entry operation %d", op))
	}
}

// findItem locates an existing item regardless of expiry.
func (s *Store) findItem(ctx context.Context, tx *sql.Tx, p update.Prepared) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		s.rebind("SELECT id FROM items WHERE profile_id = $$ AND category = $$ AND name = $$"),
		int64(p.ProfileID), p.EncEntry.Category, p.EncEntry.Name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, kv.NewError(kv.ErrCodeNotFound, "entry not found")
	}
	if err != nil {
		return 0, backendError("find entry", err)
	}
	return id, nil
}

// purgeExpired drops an expired item occupying p's identity so it can be
// inserted again.
func (s *Store) purgeExpired(ctx context.Context, tx *sql.Tx, p update.Prepared) error {
	ids, err := queryIDs(ctx, tx,
		s.rebind("SELECT id FROM items WHERE profile_id = $$ AND category = $$ AND name = $$ AND expiry IS NOT NULL AND expiry <= $$"),
		[]any{int64(p.ProfileID), p.EncEntry.Category, p.EncEntry.Name, s.nowMs()})
	if err != nil {
		return backendError("purge expired entry", err)
	}
	for _, id := range ids {
		if err := s.deleteItem(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertTags(ctx context.Context, tx *sql.Tx, itemID int64, tags []kv.EncEntryTag) error {
	if len(tags) == 0 {
		return nil
	}
	stmt := s.rebind("INSERT INTO items_tags (item_id, name, value, plaintext) VALUES ($$, $$, $$, $$)")
	for _, tag := range tags {
		plaintext := 0
		if tag.Plaintext {
			plaintext = 1
		}
		if _, err := tx.ExecContext(ctx, stmt, itemID, tag.Name, tag.Value, plaintext); err != nil {
			return backendError("insert tag", err)
		}
	}
	return nil
}

func (s *Store) deleteItem(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM items_tags WHERE item_id = $$"), id); err != nil {
		return backendError("delete tags", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM items WHERE id = $$"), id); err != nil {
		return backendError("delete entry", err)
	}
	return nil
}

func (s *Store) loadTags(ctx context.Context, itemID int64) ([]kv.EncEntryTag, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT name, value, plaintext FROM items_tags WHERE item_id = $$ ORDER BY id"), itemID)
	if err != nil {
		return nil, backendError("load tags", err)
	}
	defer rows.Close()

	var tags []kv.EncEntryTag
	for rows.Next() {
		var (
			tag       kv.EncEntryTag
			plaintext int64
		)
		if err := rows.Scan(&tag.Name, &tag.Value, &plaintext); err != nil {
			return nil, backendError("load tags: scan", err)
		}
		tag.Plaintext = plaintext != 0
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, backendError("load tags: iterate", err)
	}
	return tags, nil
}

func queryIDs(ctx context.Context, q querier, query string, args []any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func encryptIdentity(key *keys.StoreKey, category, name string) ([]byte, []byte, error) {
	encCategory, err := key.EncryptCategory([]byte(category))
	if err != nil {
		return nil, nil, kv.WrapError(kv.ErrCodeEncryption, "encrypt category", err)
	}
	encName, err := key.EncryptName([]byte(name))
	if err != nil {
		return nil, nil, kv.WrapError(kv.ErrCodeEncryption, "encrypt name", err)
	}
	return encCategory, encName, nil
}

func decryptEntry(key *keys.StoreKey, enc kv.EncEntry, tags []kv.EncEntryTag) (kv.Entry, error) {
	entry, err := key.DecryptEntry(enc, tags)
	if err != nil {
		return kv.Entry{}, kv.WrapError(kv.ErrCodeEncryption, "decrypt entry", err)
	}
	return entry, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

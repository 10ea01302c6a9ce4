package update

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/sealkv/internal/keys"
	"github.com/roach88/sealkv/internal/kv"
	"github.com/roach88/sealkv/internal/metrics"
)

// Prepared is one encrypted record ready to be written.
type Prepared struct {
	ProfileID kv.ProfileID
	EncEntry  kv.EncEntry

	// EncTags is nil when the entry had no tags.
	EncTags []kv.EncEntryTag

	// ExpiresAt is the absolute expiry in Unix milliseconds, or nil.
	ExpiresAt *int64

	// LockToken is the record's deterministic lock token.
	LockToken int64
}

// Option configures Prepare.
type Option func(*options)

type options struct {
	now         func() time.Time
	concurrency int
}

// WithClock sets the time source used to resolve relative expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithConcurrency encrypts up to n entries at once. n <= 1 is sequential.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// Prepare encrypts entries for profile and resolves their expiry.
//
// The current time is read once, so every record in the batch shares the same
// base for its expiry. The first failure aborts the batch: no partial result
// is returned. Errors from enc are returned as ENCRYPTION kv.Errors; an expiry
// overflow is a TIMESTAMP kv.Error; cancellation returns ctx.Err().
func Prepare(ctx context.Context, profile kv.ProfileID, enc keys.EntryEncryptor, entries []kv.UpdateEntry, opts ...Option) (out []Prepared, err error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	defer func() {
		metrics.UpdatesPrepared.WithLabelValues(metrics.Status(err)).Add(float64(len(entries)))
	}()

	slog.Debug("preparing update batch", "profile", profile, "entries", len(entries), "concurrency", o.concurrency)

	if len(entries) == 0 {
		return []Prepared{}, nil
	}

	nowMs := o.now().UnixMilli()
	prepared := make([]Prepared, len(entries))

	prepareOne := func(ctx context.Context, i int) error {
		p, err := prepareEntry(ctx, profile, enc, entries[i], nowMs)
		if err != nil {
			return err
		}
		prepared[i] = p
		return nil
	}

	if o.concurrency <= 1 {
		for i := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := prepareOne(ctx, i); err != nil {
				return nil, err
			}
		}
		return prepared, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return prepareOne(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A cancellation that raced the last Go call leaves unfilled slots.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return prepared, nil
}

func prepareEntry(ctx context.Context, profile kv.ProfileID, enc keys.EntryEncryptor, upd kv.UpdateEntry, nowMs int64) (Prepared, error) {
	var expiresAt *int64
	if upd.ExpireMs != nil {
		ts, err := ExpiryTimestamp(nowMs, *upd.ExpireMs)
		if err != nil {
			return Prepared{}, err
		}
		expiresAt = &ts
	}

	encEntry, encTags, err := enc.EncryptEntry(ctx, upd.Entry)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || kv.CodeOf(err) != "" {
			return Prepared{}, err
		}
		return Prepared{}, kv.WrapError(kv.ErrCodeEncryption, "encrypt entry "+upd.Entry.Category+"/"+upd.Entry.Name, err)
	}

	return Prepared{
		ProfileID: profile,
		EncEntry:  encEntry,
		EncTags:   encTags,
		ExpiresAt: expiresAt,
		LockToken: HashLockInfo(profile, upd),
	}, nil
}

// ExpiryTimestamp converts a relative expiry into absolute Unix milliseconds.
// It fails with a TIMESTAMP kv.Error when the sum does not fit in an int64.
func ExpiryTimestamp(nowMs, offsetMs int64) (int64, error) {
	if (offsetMs > 0 && nowMs > math.MaxInt64-offsetMs) ||
		(offsetMs < 0 && nowMs < math.MinInt64-offsetMs) {
		return 0, kv.NewError(kv.ErrCodeTimestamp, "expiry offset overflows the timestamp range")
	}
	return nowMs + offsetMs, nil
}

// HashLockInfo returns the lock token of the record an update targets.
func HashLockInfo(profile kv.ProfileID, upd kv.UpdateEntry) int64 {
	return kv.EntryLockToken(profile, upd.Entry)
}

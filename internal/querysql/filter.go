package querysql

import (
	"context"
	"log/slog"

	"github.com/roach88/sealkv/internal/keys"
	"github.com/roach88/sealkv/internal/kv"
	"github.com/roach88/sealkv/internal/metrics"
	"github.com/roach88/sealkv/internal/tagquery"
	"github.com/roach88/sealkv/internal/worker"
)

// Filter is a compiled tag filter ready to be appended to a WHERE clause.
type Filter struct {
	// Clause is the SQL condition with dialect placeholders already rendered.
	Clause string

	// Args are the bound values in placeholder order.
	Args [][]byte

	// NextIndex is the first placeholder index not used by Clause.
	NextIndex int64
}

// EncodeTagFilter compiles q for dialect d, numbering placeholders from
// offset+1. offset is the number of arguments already bound ahead of the
// filter in the statement.
//
// The tree is validated first; structural problems return a STRUCTURAL
// kv.Error. The walk itself runs on pool because every name and value is
// encrypted. With a nil enc, names and values are used as raw UTF-8 bytes.
// A nil q returns a nil Filter.
func EncodeTagFilter(ctx context.Context, pool *worker.Pool, d Dialect, q tagquery.Query, enc keys.TagEncryptor, offset int) (f *Filter, err error) {
	if q == nil {
		return nil, nil
	}
	defer func() {
		metrics.FiltersCompiled.WithLabelValues(d.Name(), metrics.Status(err)).Inc()
	}()

	if err := tagquery.Validate(q).Err(); err != nil {
		return nil, err
	}

	encoder := &TagEncoder{Dialect: d}
	if enc != nil {
		encoder.EncName = enc.EncryptTagName
		encoder.EncValue = enc.EncryptTagValue
	}

	type encoded struct {
		clause string
		args   [][]byte
	}
	out, err := worker.Do(ctx, pool, func() (encoded, error) {
		clause, args, err := encoder.Encode(q)
		return encoded{clause: clause, args: args}, err
	})
	if err != nil {
		if kv.CodeOf(err) == "" && ctx.Err() == nil {
			err = kv.WrapError(kv.ErrCodeEncryption, "encode tag filter", err)
		}
		return nil, err
	}

	clause, next := ReplacePlaceholders(d, out.clause, int64(offset)+1)
	slog.Debug("tag filter compiled", "dialect", d.Name(), "args", len(out.args))

	return &Filter{Clause: clause, Args: out.args, NextIndex: next}, nil
}

// ExtendQuery appends filter, ordering and pagination to query, which must
// end inside a WHERE clause. Filter arguments are pushed before the offset
// and limit.
func ExtendQuery(d Dialect, query string, params *Params, filter *Filter, page Page) string {
	if filter != nil {
		ExtendSlice(params, filter.Args)
		query += " AND " + filter.Clause
	}
	if page.OrderBy != "" {
		query += " ORDER BY " + page.OrderBy
	}
	return LimitQuery(d, query, params, page)
}

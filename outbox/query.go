package outbox

import (
	"time"

	sq "github.com/n-r-w/squirrel"
	"github.com/n-r-w/txscope"
)

// ListOption narrows, orders and pages a List query.
type ListOption func(*listQuery)

// WithTopics restricts the result to the given topics. Empty topic names are
// ignored, so callers can pass optional values without checking them first.
func WithTopics(topics ...string) ListOption {
	return func(q *listQuery) {
		for _, topic := range topics {
			if topic != "" {
				q.topics = append(q.topics, topic)
			}
		}
	}
}

// WithPendingOnly keeps only messages that have not been dispatched yet.
func WithPendingOnly() ListOption {
	return func(q *listQuery) {
		q.pendingOnly = true
	}
}

// WithCreatedAfter pages by keyset: only messages created strictly after t.
// Preferred over WithOffset for pollers walking a growing table.
func WithCreatedAfter(t time.Time) ListOption {
	return func(q *listQuery) {
		q.after = &t
	}
}

// WithLimit caps the number of returned messages. Zero means no cap.
func WithLimit(limit uint64) ListOption {
	return func(q *listQuery) {
		q.limit = limit
	}
}

// WithOffset skips the first offset messages. Offset pagination rescans
// skipped rows; WithCreatedAfter does not.
func WithOffset(offset uint64) ListOption {
	return func(q *listQuery) {
		q.offset = offset
	}
}

// WithNewestFirst flips the default oldest-first order.
func WithNewestFirst() ListOption {
	return func(q *listQuery) {
		q.newestFirst = true
	}
}

type listQuery struct {
	topics      []string
	pendingOnly bool
	after       *time.Time
	limit       uint64
	offset      uint64
	newestFirst bool
}

func newListQuery(opts ...ListOption) *listQuery {
	//nolint:exhaustruct // zero values are the defaults
	q := &listQuery{}

	for _, o := range opts {
		o(q)
	}

	return q
}

// build assembles the SELECT for the given outbox table.
func (q *listQuery) build(table string) sq.SelectBuilder {
	builder := txscope.Builder().
		Select("id", "topic", "payload", "created_at", "dispatched_at").
		From(table)

	if len(q.topics) != 0 {
		builder = builder.Where(sq.Eq{"topic": q.topics})
	}

	if q.pendingOnly {
		builder = builder.Where(sq.Eq{"dispatched_at": nil})
	}

	if q.after != nil {
		builder = builder.Where(sq.Gt{"created_at": *q.after})
	}

	if q.newestFirst {
		builder = builder.OrderBy("created_at DESC")
	} else {
		builder = builder.OrderBy("created_at")
	}

	if q.limit > 0 {
		builder = builder.Limit(q.limit)
	}
	if q.offset > 0 {
		builder = builder.Offset(q.offset)
	}

	return builder
}

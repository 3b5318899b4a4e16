// Package outbox implements a transactional outbox writer: messages are
// stored through the ambient scope's client, so they commit atomically with
// the operation that produced them and vanish with it on rollback.
// A dispatcher polls Pending under a named lock and marks what it shipped.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	sq "github.com/n-r-w/squirrel"
	"github.com/n-r-w/txscope"
	"github.com/n-r-w/txscope/uow"
	"github.com/samber/lo"
)

// DefaultTable is the outbox table used unless WithTable overrides it.
const DefaultTable = "txscope_outbox"

// Schema returns the DDL for the outbox table.
func Schema(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id UUID PRIMARY KEY,
		topic TEXT NOT NULL,
		payload BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		dispatched_at TIMESTAMPTZ
	)`, table)
}

// Message is one stored outbox entry.
type Message struct {
	ID           uuid.UUID  `db:"id"`
	Topic        string     `db:"topic"`
	Payload      []byte     `db:"payload"`
	CreatedAt    time.Time  `db:"created_at"`
	DispatchedAt *time.Time `db:"dispatched_at"`
}

// Writer stores and reads outbox messages through the unit of work.
type Writer struct {
	u     *uow.UnitOfWork
	table string
}

// WriterOption option for Writer.
type WriterOption func(*Writer)

// WithTable sets the outbox table name.
func WithTable(table string) WriterOption {
	return func(w *Writer) {
		w.table = table
	}
}

// NewWriter creates a new outbox Writer.
func NewWriter(u *uow.UnitOfWork, opt ...WriterOption) *Writer {
	w := &Writer{u: u, table: DefaultTable}

	for _, o := range opt {
		o(w)
	}

	return w
}

// Store writes a message through the ambient scope, so the insert commits
// atomically with the operation that triggered it. Outside a scope the
// message is stored immediately in autocommit mode.
func (w *Writer) Store(ctx context.Context, topic string, payload []byte) (uuid.UUID, error) {
	id := uuid.New()

	err := w.u.WithClient(ctx, func(ctxCl context.Context, client txscope.IClient) error {
		query := txscope.Builder().
			Insert(w.table).
			Columns("id", "topic", "payload").
			Values(id, topic, payload)

		_, errExec := txscope.Exec(ctxCl, client, query)
		return errExec
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("store outbox message: %w", err)
	}

	return id, nil
}

// Pending returns up to limit undispatched messages, oldest first.
func (w *Writer) Pending(ctx context.Context, limit uint64) ([]Message, error) {
	return w.List(ctx, WithPendingOnly(), WithLimit(limit))
}

// List returns messages matching the given options. Without options it
// returns everything, oldest first.
func (w *Writer) List(ctx context.Context, opts ...ListOption) ([]Message, error) {
	var messages []Message

	err := w.u.WithClient(ctx, func(ctxCl context.Context, client txscope.IClient) error {
		return txscope.Select(ctxCl, client, newListQuery(opts...).build(w.table), &messages)
	})
	if err != nil {
		return nil, fmt.Errorf("list outbox messages: %w", err)
	}

	return messages, nil
}

// MarkDispatched stamps the given messages as shipped. Runs in its own
// nested boundary: a dispatcher crash between shipping and stamping leaves
// the messages pending, favoring at-least-once delivery.
func (w *Writer) MarkDispatched(ctx context.Context, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	ids := lo.Map(messages, func(m Message, _ int) uuid.UUID { return m.ID })

	err := w.u.Scope(ctx, func(ctxTr context.Context) error {
		return w.u.WithClient(ctxTr, func(ctxCl context.Context, client txscope.IClient) error {
			query := txscope.Builder().
				Update(w.table).
				Set("dispatched_at", time.Now().UTC()).
				Where(sq.Eq{"id": ids})

			_, errExec := txscope.Exec(ctxCl, client, query)
			return errExec
		})
	}, uow.WithPropagation(uow.PropagationNested))
	if err != nil {
		return fmt.Errorf("mark outbox messages dispatched: %w", err)
	}

	return nil
}

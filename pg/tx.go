package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/n-r-w/txscope"
	"github.com/n-r-w/txscope/uow"
)

// Conn is the subset of pgxpool.Conn, pgx.Conn and pgx.Tx the coordinator
// drives. A pooled connection and an externally owned transaction both satisfy it.
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// AcquireFunc is the connection factory: it returns a connection dedicated to
// one transaction and a cleanup that the transaction calls exactly once after
// the root boundary finalizes.
type AcquireFunc func(ctx context.Context) (Conn, func(), error)

// txHost is what a Tx needs from its owning service (DB or TestDB).
type txHost interface {
	acquireConn(ctx context.Context) (Conn, func(), error)
	savepointName() string
	hostName() string
	queryLogger() (txscope.ILogger, bool)
}

// txState is the lifecycle stage of a transaction. Transitions are monotonic;
// txCommitted and txAborted are terminal.
type txState int

const (
	txNotStarted txState = iota
	txStarting
	txRunning
	txCommitted
	txAborted
)

type frameKind int

const (
	// frameRoot finalizes with COMMIT/ROLLBACK and releases the connection.
	frameRoot frameKind = iota
	// frameSavepoint finalizes with RELEASE/ROLLBACK TO SAVEPOINT and only
	// borrows the connection. A Tx created by TestDB uses a savepoint frame
	// at the bottom of the stack, so it never ends the harness transaction.
	frameSavepoint
)

// frame is one boundary on the transaction's stack: the root at the bottom,
// savepoints above it, LIFO. depth counts the call frames currently running
// inside the boundary; the call that brings depth back to zero finalizes it.
type frame struct {
	kind frameKind
	name string // savepoint name, empty for a real root

	depth        int
	doomed       bool
	materialized bool // SQL for the boundary has been issued
	closed       bool
}

// Tx owns one physical connection for one BEGIN..COMMIT/ROLLBACK lifetime.
// A Tx and its clients are confined to one logical call chain, same as pgx.Tx.
type Tx struct {
	host txHost
	opts uow.Options

	state    txState
	conn     Conn
	release  func()
	released bool
	frames   []*frame
}

// newTx creates a transaction in notStarted state. rootKind selects real
// commit/rollback finalization or the savepoint-based test variant.
func newTx(host txHost, opts uow.Options, rootKind frameKind) *Tx {
	root := &frame{kind: rootKind}
	if rootKind == frameSavepoint {
		root.name = host.savepointName()
	}

	return &Tx{
		host:   host,
		opts:   opts,
		state:  txNotStarted,
		frames: []*frame{root},
	}
}

// begin runs f as the root call frame of the transaction, with the Tx
// visible to f's whole call chain through the context.
func (t *Tx) begin(ctx context.Context, f func(ctxTr context.Context) error) error {
	return t.run(t.toContext(ctx), t.frames[0], f)
}

// join runs f inside the current boundary, sharing its depth tracking.
// An error returned by f dooms the boundary even if the caller catches it.
func (t *Tx) join(ctx context.Context, f func(ctxTr context.Context) error) error {
	cur := t.current()
	if cur == nil {
		// the scope this context belonged to has already finalized
		return txscope.ErrAborted
	}
	return t.run(ctx, cur, f)
}

// nest runs f under a fresh savepoint pushed onto the stack. On failure the
// savepoint is rolled back and only this boundary closes; the owner survives.
func (t *Tx) nest(ctx context.Context, f func(ctxTr context.Context) error) error {
	if err := t.failFast(); err != nil {
		return err
	}

	fr := &frame{kind: frameSavepoint, name: t.host.savepointName()}
	if t.state == txRunning {
		if _, err := t.conn.Exec(ctx, "SAVEPOINT "+fr.name); err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}
		fr.materialized = true
	}
	// not started yet: the savepoint is issued on first client use,
	// together with BEGIN, so an untouched body costs nothing

	t.frames = append(t.frames, fr)

	return t.run(ctx, fr, f)
}

// run executes f at an incremented depth of fr and finalizes the frame when
// its depth returns to zero. The finalize outcome never swallows f's error;
// it only decides commit versus rollback and may replace a nil error with
// txscope.ErrAborted when the boundary was doomed underneath a quiet body.
func (t *Tx) run(ctx context.Context, fr *frame, f func(ctxTr context.Context) error) (err error) {
	fr.depth++

	defer func() {
		fr.depth--

		if rec := recover(); rec != nil {
			fr.doomed = true
			if fr.depth == 0 {
				_ = t.finalizeFrame(ctx, fr, true)
			}
			panic(rec) // re-throw panic after rollback
		}

		if fr.depth == 0 {
			err = t.closeFrame(ctx, fr, err)
		}
	}()

	err = f(ctx)
	if err != nil {
		// direct (non-savepoint) failure: the innermost open boundary is
		// doomed immediately and irreversibly
		if cur := t.current(); cur != nil {
			cur.doomed = true
		}
	}

	return err
}

// closeFrame finalizes fr and merges the finalization result into err.
func (t *Tx) closeFrame(ctx context.Context, fr *frame, err error) error {
	failed := err != nil || fr.doomed

	if finErr := t.finalizeFrame(ctx, fr, failed); finErr != nil {
		if err != nil {
			return fmt.Errorf("%w (finalize error: %v)", err, finErr) //nolint:errorlint // ok for 2 errors
		}
		return finErr
	}

	if err == nil && fr.doomed {
		// the body swallowed the error that doomed this boundary; its writes
		// are gone, so pretending success would lie to the caller
		return txscope.ErrAborted
	}

	return err
}

// finalizeFrame issues the frame's terminal statement exactly once and, for
// the bottom frame, moves the Tx to its terminal state and releases the
// connection. Safe to call on an already closed frame.
func (t *Tx) finalizeFrame(ctx context.Context, fr *frame, failed bool) error {
	if fr.closed {
		return nil
	}
	fr.closed = true

	isBottom := len(t.frames) > 0 && fr == t.frames[0]
	t.popFrame(fr)

	var finErr error

	switch {
	case !fr.materialized:
		// the boundary never touched the connection: nothing to emit

	case fr.kind == frameSavepoint:
		if failed {
			_, finErr = t.conn.Exec(ctx, "ROLLBACK TO SAVEPOINT "+fr.name)
		} else {
			_, finErr = t.conn.Exec(ctx, "RELEASE SAVEPOINT "+fr.name)
		}

	default: // real root
		if failed {
			_, finErr = t.conn.Exec(ctx, "ROLLBACK")
		} else {
			if _, finErr = t.conn.Exec(ctx, "COMMIT"); finErr != nil {
				finErr = fmt.Errorf("commit transaction: %w", finErr)
			}
		}
	}

	if isBottom {
		// txAborted is terminal: a failed start must not be overwritten
		if failed || finErr != nil || t.state == txAborted {
			t.state = txAborted
		} else {
			t.state = txCommitted
		}
		t.releaseOnce()
	}

	return finErr
}

// popFrame removes fr from the stack. Savepoints are strictly LIFO, so fr is
// on top unless the stack unwinds through a panic.
func (t *Tx) popFrame(fr *frame) {
	for i := len(t.frames) - 1; i >= 0; i-- {
		if t.frames[i] == fr {
			t.frames = t.frames[:i]
			return
		}
	}
}

// current returns the innermost open boundary, or nil after the root closed.
func (t *Tx) current() *frame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

// failFast reports why the transaction must not accept further statements.
// Every client call consults this before reaching the driver, so a doomed
// boundary can never silently continue executing.
func (t *Tx) failFast() error {
	if t.state == txCommitted || t.state == txAborted {
		return txscope.ErrAborted
	}
	if cur := t.current(); cur != nil && cur.doomed {
		return txscope.ErrAborted
	}
	return nil
}

// ensureStarted lazily acquires the connection and issues BEGIN (or the test
// variant's root SAVEPOINT), the isolation/access statements and any deferred
// savepoints, outer to inner. Called on first client use inside the scope.
func (t *Tx) ensureStarted(ctx context.Context) error {
	if err := t.failFast(); err != nil {
		return err
	}
	if t.state == txRunning {
		return nil
	}

	t.state = txStarting

	conn, release, err := t.host.acquireConn(ctx)
	if err != nil {
		t.abort()
		return fmt.Errorf("acquire connection: %w", err)
	}
	t.conn = conn
	t.release = release

	if err := t.emitStart(ctx); err != nil {
		t.abort()
		t.releaseOnce()
		return err
	}

	t.state = txRunning

	return nil
}

// abort moves the transaction to its terminal failed state and dooms every
// open frame, so no enclosing boundary can close as a success afterwards.
func (t *Tx) abort() {
	t.state = txAborted
	for _, fr := range t.frames {
		fr.doomed = true
	}
}

func (t *Tx) emitStart(ctx context.Context) error {
	root := t.frames[0]

	if root.kind == frameSavepoint {
		// externally owned transaction: the root boundary is a savepoint and
		// the harness keeps its own isolation level
		if _, err := t.conn.Exec(ctx, "SAVEPOINT "+root.name); err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}
	} else {
		if _, err := t.conn.Exec(ctx, "BEGIN"); err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if stmt := isolationStatement(t.opts.Level); stmt != "" {
			if _, err := t.conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("set isolation level: %w", err)
			}
		}
		if t.opts.Mode == uow.TxReadOnly {
			if _, err := t.conn.Exec(ctx, "SET TRANSACTION READ ONLY"); err != nil {
				return fmt.Errorf("set access mode: %w", err)
			}
		}
	}
	root.materialized = true

	// savepoints opened before the first client use
	for _, fr := range t.frames[1:] {
		if fr.materialized || fr.closed {
			continue
		}
		if _, err := t.conn.Exec(ctx, "SAVEPOINT "+fr.name); err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}
		fr.materialized = true
	}

	return nil
}

func (t *Tx) releaseOnce() {
	if t.released || t.release == nil {
		return
	}
	t.released = true
	t.release()
}

// isolationStatement returns the statement for a non-default isolation level.
// ReadCommitted is the server default and emits nothing.
func isolationStatement(level uow.TxLevel) string {
	switch level {
	case uow.TxReadUncommitted:
		return "SET TRANSACTION ISOLATION LEVEL READ UNCOMMITTED"
	case uow.TxRepeatableRead:
		return "SET TRANSACTION ISOLATION LEVEL REPEATABLE READ"
	case uow.TxSerializable:
		return "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE"
	case uow.TxLevelDefault, uow.TxReadCommitted:
		return ""
	default:
		panic("internal error")
	}
}

type txKeyType int

// txKey key for storing the transaction in the context. The context is the
// continuation-local storage here: everything on the same call chain,
// including callbacks invoked indirectly, observes the same ambient Tx.
const txKey txKeyType = 0

// toContext puts the transaction in the context.
func (t *Tx) toContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, txKey, t)
}

// removeFromContext removes the transaction from the context.
func (t *Tx) removeFromContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, txKey, nil)
}

// txFromContext extracts the transaction from the context.
func txFromContext(ctx context.Context) (*Tx, bool) {
	it, ok := ctx.Value(txKey).(*Tx)

	if !ok || it == nil {
		return nil, false
	}

	return it, true
}

// WithoutScope returns a context without the ambient scope.
func WithoutScope(ctx context.Context) context.Context {
	tx, ok := txFromContext(ctx)
	if !ok {
		return ctx
	}

	return tx.removeFromContext(ctx)
}

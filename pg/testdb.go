package pg

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/n-r-w/txscope"
	"github.com/n-r-w/txscope/uow"
)

// TestDB is the coordinator variant for rollback-based test isolation. It
// lives entirely inside a transaction the test harness already opened and
// exposes the same scope contract as DB, so code under test cannot tell the
// difference. The root boundary of every scope is a savepoint: its "commit"
// is RELEASE SAVEPOINT and its "rollback" is ROLLBACK TO SAVEPOINT, so the
// externally owned transaction is never committed or rolled back here.
//
// uow.PropagationNew cannot yield a truly independent transaction on the one
// shared connection; it is downgraded to a savepoint with a logged warning.
//
// The harness transaction fixes the isolation level and access mode, so scope
// options requesting them are recorded but emit no SET statements.
type TestDB struct {
	tx         Conn // externally owned transaction, never finalized here
	name       string
	logger     txscope.ILogger
	logQueries bool

	// one connection means one savepoint namespace for every scope
	spSeq atomic.Int64
}

var (
	_ uow.IScopeBeginner = (*TestDB)(nil)
	_ uow.IScopeInformer = (*TestDB)(nil)
	_ uow.IClientSource  = (*TestDB)(nil)
)

// TestOption option for TestDB.
type TestOption func(*TestDB)

// WithTestName sets the name reported in query logs.
func WithTestName(name string) TestOption {
	return func(p *TestDB) {
		p.name = name
	}
}

// WithTestLogger sets the logger.
func WithTestLogger(logger txscope.ILogger) TestOption {
	return func(p *TestDB) {
		p.logger = logger
	}
}

// WithTestLogQueries enables query logging.
func WithTestLogQueries() TestOption {
	return func(p *TestDB) {
		p.logQueries = true
	}
}

// NewTestDB creates a coordinator running inside tx. The caller owns tx: it
// opens it before the test and rolls it back after, discarding everything the
// test wrote.
func NewTestDB(tx Conn, opt ...TestOption) *TestDB {
	p := &TestDB{tx: tx}

	for _, o := range opt {
		o(p)
	}

	if p.name == "" {
		p.name = "txscope-test"
	}

	return p
}

// Begin opens a root boundary backed by a savepoint of the harness
// transaction. Lazy like DB.Begin: an untouched body emits nothing.
func (p *TestDB) Begin(ctx context.Context, f func(ctxTr context.Context) error, opts uow.Options) error {
	if opts.Propagation == uow.PropagationNew && p.logger != nil {
		p.logger.Warn(ctx, "PropagationNew downgraded to a savepoint: "+
			"a single test connection cannot host an independent transaction",
			"database", p.name)
	}

	t := newTx(p, opts, frameSavepoint)
	return t.begin(ctx, f)
}

// Join runs f inside the ambient boundary, sharing its fate.
func (p *TestDB) Join(ctx context.Context, f func(ctxTr context.Context) error) error {
	t, ok := txFromContext(ctx)
	if !ok {
		return txscope.ErrNotStarted
	}

	return t.join(ctx, f)
}

// Nest runs f under a savepoint of the ambient boundary.
func (p *TestDB) Nest(ctx context.Context, f func(ctxTr context.Context) error) error {
	t, ok := txFromContext(ctx)
	if !ok {
		return txscope.ErrNotStarted
	}

	return t.nest(ctx, f)
}

// WithoutScope returns a context without the ambient scope.
func (p *TestDB) WithoutScope(ctx context.Context) context.Context {
	return WithoutScope(ctx)
}

// InScope returns true if a scope is open on this call chain.
func (p *TestDB) InScope(ctx context.Context) bool {
	_, ok := txFromContext(ctx)
	return ok
}

// ScopeOptions returns the ambient scope's options, or zero options outside a scope.
func (p *TestDB) ScopeOptions(ctx context.Context) uow.Options {
	t, ok := txFromContext(ctx)
	if !ok {
		//nolint:exhaustruct // zero values are the documented defaults
		return uow.Options{}
	}

	return t.opts
}

// Client returns the ambient scope's guarded client.
// Returns txscope.ErrNotStarted when called outside any scope.
func (p *TestDB) Client(ctx context.Context) (txscope.IClient, error) {
	t, ok := txFromContext(ctx)
	if !ok {
		return nil, txscope.ErrNotStarted
	}

	return &Client{t: t, logQueries: p.logQueries}, nil
}

// WithClient runs f with the ambient scope's client. Outside any scope f runs
// directly on the harness transaction, mirroring DB's autocommit path close
// enough for tests: no extra boundary is opened.
func (p *TestDB) WithClient(ctx context.Context, f func(ctx context.Context, client txscope.IClient) error) error {
	if client, err := p.Client(ctx); err == nil {
		return f(ctx, client)
	}

	return f(ctx, &plainClient{conn: p.tx, host: p, logQueries: p.logQueries})
}

// acquireConn hands out the harness transaction with a no-op cleanup: the
// connection outlives every scope and is never released here.
func (p *TestDB) acquireConn(_ context.Context) (Conn, func(), error) {
	return p.tx, func() {}, nil
}

func (p *TestDB) savepointName() string {
	return "tsp_" + strconv.FormatInt(p.spSeq.Add(1), 10)
}

func (p *TestDB) hostName() string {
	return p.name
}

func (p *TestDB) queryLogger() (txscope.ILogger, bool) {
	return p.logger, p.logQueries
}

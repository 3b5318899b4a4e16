package uow

import (
	"context"
	"errors"
	"testing"

	"github.com/n-r-w/txscope"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// TestUnitOfWork_Scope_NoAmbient verifies that a scope without an ambient
// transaction begins a fresh one with the resolved options.
func TestUnitOfWork_Scope_NoAmbient(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	mc := gomock.NewController(t)
	defer mc.Finish()

	beginner := NewMockIScopeBeginner(mc)
	beginner.EXPECT().
		Begin(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, f func(context.Context) error, opts Options) error {
			require.Equal(t, PropagationExisting, opts.Propagation)
			require.Equal(t, TxSerializable, opts.Level)
			require.Equal(t, TxReadWrite, opts.Mode)
			return f(ctx)
		})

	informer := NewMockIScopeInformer(mc)
	informer.EXPECT().InScope(gomock.Any()).Return(false)

	u := New(beginner, informer, NewMockIClientSource(mc))

	executed := false
	require.NoError(t, u.Scope(ctx, func(_ context.Context) error {
		executed = true
		return nil
	}, WithTxLevel(TxSerializable), WithTxMode(TxReadWrite)))
	require.True(t, executed)
}

// TestUnitOfWork_Scope_JoinsAmbient verifies that an Existing scope joins the
// ambient transaction instead of beginning a new one.
func TestUnitOfWork_Scope_JoinsAmbient(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	mc := gomock.NewController(t)
	defer mc.Finish()

	beginner := NewMockIScopeBeginner(mc)
	beginner.EXPECT().Begin(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	beginner.EXPECT().
		Join(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, f func(context.Context) error) error {
			return f(ctx)
		})

	informer := NewMockIScopeInformer(mc)
	informer.EXPECT().InScope(gomock.Any()).Return(true)
	informer.EXPECT().ScopeOptions(gomock.Any()).
		Return(Options{Propagation: PropagationExisting, Level: TxLevelDefault, Mode: TxModeDefault})

	u := New(beginner, informer, NewMockIClientSource(mc))

	require.NoError(t, u.Scope(ctx, func(_ context.Context) error {
		return nil
	}))
}

// TestUnitOfWork_Scope_OptionsMismatch verifies that a joined scope cannot
// change the isolation level or access mode mid-transaction.
func TestUnitOfWork_Scope_OptionsMismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	mc := gomock.NewController(t)
	defer mc.Finish()

	beginner := NewMockIScopeBeginner(mc)
	beginner.EXPECT().Begin(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	beginner.EXPECT().Join(gomock.Any(), gomock.Any()).Times(0)

	informer := NewMockIScopeInformer(mc)
	informer.EXPECT().InScope(gomock.Any()).Return(true).Times(3)
	informer.EXPECT().ScopeOptions(gomock.Any()).
		Return(Options{Propagation: PropagationExisting, Level: TxLevelDefault, Mode: TxModeDefault}).
		Times(3)

	u := New(beginner, informer, NewMockIClientSource(mc))

	// error when changing isolation level
	require.Error(t, u.Scope(ctx, func(_ context.Context) error {
		return nil
	}, WithTxLevel(TxSerializable)))

	// error when changing access mode
	require.Error(t, u.Scope(ctx, func(_ context.Context) error {
		return nil
	}, WithTxMode(TxReadOnly)))

	// explicit defaults are compatible with an ambient default scope
	beginner.EXPECT().
		Join(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, f func(context.Context) error) error {
			return f(ctx)
		})
	require.NoError(t, u.Scope(ctx, func(_ context.Context) error {
		return nil
	}, WithTxLevel(TxReadCommitted), WithTxMode(TxReadWrite)))
}

// TestUnitOfWork_Scope_New verifies that PropagationNew strips the ambient
// scope and always begins fresh.
func TestUnitOfWork_Scope_New(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	strippedCtx := context.WithValue(context.Background(), struct{ k string }{"stripped"}, true)

	mc := gomock.NewController(t)
	defer mc.Finish()

	beginner := NewMockIScopeBeginner(mc)
	beginner.EXPECT().WithoutScope(ctx).Return(strippedCtx)
	beginner.EXPECT().
		Begin(strippedCtx, gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, f func(context.Context) error, opts Options) error {
			require.Equal(t, PropagationNew, opts.Propagation)
			return f(ctx)
		})

	// the ambient scope must not even be consulted
	informer := NewMockIScopeInformer(mc)
	informer.EXPECT().InScope(gomock.Any()).Times(0)

	u := New(beginner, informer, NewMockIClientSource(mc))

	require.NoError(t, u.Scope(ctx, func(_ context.Context) error {
		return nil
	}, WithPropagation(PropagationNew)))
}

// TestUnitOfWork_Scope_Nested verifies savepoint dispatch with an ambient
// scope and the fallback to Begin without one.
func TestUnitOfWork_Scope_Nested(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	mc := gomock.NewController(t)
	defer mc.Finish()

	beginner := NewMockIScopeBeginner(mc)
	informer := NewMockIScopeInformer(mc)
	u := New(beginner, informer, NewMockIClientSource(mc))

	// ambient present: open a savepoint
	informer.EXPECT().InScope(gomock.Any()).Return(true)
	informer.EXPECT().ScopeOptions(gomock.Any()).
		Return(Options{Propagation: PropagationExisting, Level: TxLevelDefault, Mode: TxModeDefault})
	beginner.EXPECT().
		Nest(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, f func(context.Context) error) error {
			return f(ctx)
		})

	require.NoError(t, u.Scope(ctx, func(_ context.Context) error {
		return nil
	}, WithPropagation(PropagationNested)))

	// a savepoint cannot change the isolation level of the transaction it
	// lives in: an explicit mismatch is an error, not a silent discard
	informer.EXPECT().InScope(gomock.Any()).Return(true)
	informer.EXPECT().ScopeOptions(gomock.Any()).
		Return(Options{Propagation: PropagationExisting, Level: TxReadCommitted, Mode: TxModeDefault})
	beginner.EXPECT().Nest(gomock.Any(), gomock.Any()).Times(0)

	require.Error(t, u.Scope(ctx, func(_ context.Context) error {
		return nil
	}, WithPropagation(PropagationNested), WithTxLevel(TxSerializable)))

	// nothing to nest under: begin a fresh transaction
	informer.EXPECT().InScope(gomock.Any()).Return(false)
	beginner.EXPECT().
		Begin(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, f func(context.Context) error, _ Options) error {
			return f(ctx)
		})

	require.NoError(t, u.Scope(ctx, func(_ context.Context) error {
		return nil
	}, WithPropagation(PropagationNested)))
}

// TestUnitOfWork_Scope_ErrorPassthrough verifies that the caller's error is
// rethrown unchanged.
func TestUnitOfWork_Scope_ErrorPassthrough(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	mc := gomock.NewController(t)
	defer mc.Finish()

	errBusiness := errors.New("business error")

	beginner := NewMockIScopeBeginner(mc)
	beginner.EXPECT().
		Begin(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, f func(context.Context) error, _ Options) error {
			return f(ctx)
		})

	informer := NewMockIScopeInformer(mc)
	informer.EXPECT().InScope(gomock.Any()).Return(false)

	u := New(beginner, informer, NewMockIClientSource(mc))

	err := u.Scope(ctx, func(_ context.Context) error {
		return errBusiness
	})
	require.ErrorIs(t, err, errBusiness)
}

// TestUnitOfWork_Wrap verifies the legacy eager entry point: the scope is
// resolved like Scope and the client is handed to the callback immediately.
func TestUnitOfWork_Wrap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	mc := gomock.NewController(t)
	defer mc.Finish()

	beginner := NewMockIScopeBeginner(mc)
	beginner.EXPECT().
		Begin(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, f func(context.Context) error, opts Options) error {
			require.Equal(t, PropagationExisting, opts.Propagation)
			return f(ctx)
		})

	informer := NewMockIScopeInformer(mc)
	informer.EXPECT().InScope(gomock.Any()).Return(false)

	clients := NewMockIClientSource(mc)
	clients.EXPECT().
		WithClient(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, f func(context.Context, txscope.IClient) error) error {
			return f(ctx, nil)
		})

	u := New(beginner, informer, clients)

	executed := false
	require.NoError(t, u.Wrap(ctx, func(_ context.Context, _ txscope.IClient) error {
		executed = true
		return nil
	}))
	require.True(t, executed)
}

package components

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/platform/chain"
)

// MockExecutor for testing
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Run(ctx context.Context, signer chain.SignerContext, call ledger.Call) (*ledger.Execution, error) {
	args := m.Called(ctx, signer, call)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Execution), args.Error(1)
}

// MockReader for testing
type MockReader struct {
	mock.Mock
}

func (m *MockReader) Read(ctx context.Context, kind record.Kind, id int64) (*ledger.Entry, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockReader) Verify(ctx context.Context, kind record.Kind, id int64, digest string) (bool, error) {
	args := m.Called(ctx, kind, id, digest)
	return args.Bool(0), args.Error(1)
}

func (m *MockReader) Count(ctx context.Context, kind record.Kind) (uint64, error) {
	args := m.Called(ctx, kind)
	return args.Get(0).(uint64), args.Error(1)
}

func opIs(op ledger.Op) interface{} {
	return mock.MatchedBy(func(c ledger.Call) bool { return c.Op == op })
}

func TestLedgerClient_Store(t *testing.T) {
	updateCall := ledger.Call{Op: ledger.OpUpdate, Kind: record.KindRemoval, ID: 42, Digest: execDigest}

	tests := []struct {
		name       string
		setupMocks func(ex *MockExecutor, rd *MockReader)
		wantOp     ledger.Op
		wantErr    error
		wantCount  int
	}{
		{
			name: "new identifier is stored",
			setupMocks: func(ex *MockExecutor, rd *MockReader) {
				rd.On("Read", mock.Anything, record.KindRemoval, int64(42)).Return(&ledger.Entry{}, nil)
				ex.On("Run", mock.Anything, mock.Anything, storeCall).
					Return(&ledger.Execution{Call: storeCall, Receipt: okReceipt(), Attempts: []ledger.Attempt{{Number: 1}}}, nil)
			},
			wantOp:    ledger.OpStore,
			wantCount: 1,
		},
		{
			name: "live entry is updated instead",
			setupMocks: func(ex *MockExecutor, rd *MockReader) {
				rd.On("Read", mock.Anything, record.KindRemoval, int64(42)).Return(&ledger.Entry{DataHash: "0xold", Exists: true}, nil)
				ex.On("Run", mock.Anything, mock.Anything, updateCall).
					Return(&ledger.Execution{Call: updateCall, Receipt: okReceipt(), Attempts: []ledger.Attempt{{Number: 1}}}, nil)
			},
			wantOp:    ledger.OpUpdate,
			wantCount: 1,
		},
		{
			name: "already-exists revert falls through to update",
			setupMocks: func(ex *MockExecutor, rd *MockReader) {
				rd.On("Read", mock.Anything, record.KindRemoval, int64(42)).Return(&ledger.Entry{}, nil)
				ex.On("Run", mock.Anything, mock.Anything, storeCall).
					Return(&ledger.Execution{Call: storeCall, Attempts: []ledger.Attempt{{Number: 1}}}, transportErr(ledger.ReasonAlreadyExists, "relayer"))
				ex.On("Run", mock.Anything, mock.Anything, updateCall).
					Return(&ledger.Execution{Call: updateCall, Receipt: okReceipt(), Attempts: []ledger.Attempt{{Number: 1}}}, nil)
			},
			wantOp:    ledger.OpUpdate,
			wantCount: 2,
		},
		{
			name: "unreadable ledger still attempts the store",
			setupMocks: func(ex *MockExecutor, rd *MockReader) {
				rd.On("Read", mock.Anything, record.KindRemoval, int64(42)).Return(nil, errors.New("dial tcp: connection refused"))
				ex.On("Run", mock.Anything, mock.Anything, storeCall).
					Return(&ledger.Execution{Call: storeCall, Attempts: []ledger.Attempt{{Number: 1}, {Number: 2}, {Number: 3}}}, transportErr(ledger.ReasonNetwork, "relayer"))
			},
			wantOp:    ledger.OpStore,
			wantErr:   ledger.ErrTransient,
			wantCount: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := new(MockExecutor)
			rd := new(MockReader)
			tt.setupMocks(ex, rd)

			client := NewLedgerClient(ex, rd, slog.Default())
			exec, err := client.Store(context.Background(), nil, record.KindRemoval, 42, execDigest)

			require.NotNil(t, exec)
			assert.Equal(t, tt.wantOp, exec.Call.Op)
			assert.Len(t, exec.Attempts, tt.wantCount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, exec.Receipt)
			}
			ex.AssertExpectations(t)
			rd.AssertExpectations(t)
		})
	}
}

func TestLedgerClient_Remove(t *testing.T) {
	ex := new(MockExecutor)
	ex.On("Run", mock.Anything, mock.Anything, ledger.Call{Op: ledger.OpDelete, Kind: record.KindStock, ID: 3}).
		Return(&ledger.Execution{Receipt: okReceipt()}, nil)

	client := NewLedgerClient(ex, new(MockReader), slog.Default())
	exec, err := client.Remove(context.Background(), nil, record.KindStock, 3)
	require.NoError(t, err)
	assert.Equal(t, execTxHash, exec.Receipt.TxHash)
	ex.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, opIs(ledger.OpStore))
}

func TestLedgerClient_ReadsDelegate(t *testing.T) {
	rd := new(MockReader)
	rd.On("Verify", mock.Anything, record.KindRemoval, int64(42), execDigest).Return(true, nil)
	rd.On("Read", mock.Anything, record.KindRemoval, int64(42)).Return(&ledger.Entry{DataHash: execDigest, Exists: true}, nil)
	rd.On("Count", mock.Anything, record.KindRemoval).Return(uint64(7), nil)
	rd.On("Count", mock.Anything, record.KindStock).Return(uint64(0), errors.New("node down"))

	client := NewLedgerClient(new(MockExecutor), rd, slog.Default())

	ok, err := client.Verify(context.Background(), record.KindRemoval, 42, execDigest)
	require.NoError(t, err)
	assert.True(t, ok)

	entry, err := client.Read(context.Background(), record.KindRemoval, 42)
	require.NoError(t, err)
	assert.True(t, entry.Exists)

	assert.Equal(t, uint64(7), client.Count(context.Background(), record.KindRemoval))
	assert.Equal(t, uint64(0), client.Count(context.Background(), record.KindStock), "count degrades to zero on read failure")
}

func TestLedgerClient_IdempotentResyncAgainstMemoryLedger(t *testing.T) {
	mem := chain.NewMemoryLedger()
	signer, err := chain.NewEphemeralSigner(31337, slog.Default())
	require.NoError(t, err)
	require.NoError(t, signer.Connect(context.Background()))

	executor := NewTransactionExecutor(mem, nil, nil, RetryPolicy{MaxAttempts: 3}, slog.Default())
	client := NewLedgerClient(executor, mem, slog.Default())
	ctx := context.Background()

	first, err := client.Store(ctx, signer, record.KindRemoval, 42, execDigest)
	require.NoError(t, err)
	assert.Equal(t, ledger.OpStore, first.Call.Op)

	second, err := client.Store(ctx, signer, record.KindRemoval, 42, execDigest)
	require.NoError(t, err)
	assert.Equal(t, ledger.OpUpdate, second.Call.Op)

	ok, err := client.Verify(ctx, record.KindRemoval, 42, execDigest)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), client.Count(ctx, record.KindRemoval))

	_, err = client.Remove(ctx, signer, record.KindRemoval, 42)
	require.NoError(t, err)
	entry, err := client.Read(ctx, record.KindRemoval, 42)
	require.NoError(t, err)
	assert.False(t, entry.Exists)
}

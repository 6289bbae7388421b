package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/genluna-medchain/internal/domain/integrity"
	"github.com/genluna-medchain/internal/domain/journal"
	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/domain/shared"
	ledgersync "github.com/genluna-medchain/internal/ledger_sync/service"
)

const (
	goldenDigest   = "0xbdf4d1a4c14205935cea7c5932d0c1bfb73307c389ff2266c73b2070e6cfcfa4"
	tamperedDigest = "0x2cbcb6f82b02961a0ebd4e1bf5ee0c27edaef24714a91c2d2ecb989fda25b7e5"
	goldenRemoval  = `{"removal_id":42,"medicine_id":7,"quantity_removed":5,"reason":"EXPIRED","date_removed":"2024-01-10"}`
)

type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) CreateRecord(ctx context.Context, rec record.Record) (*ledgersync.SyncResult, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgersync.SyncResult), args.Error(1)
}

func (m *MockSyncService) ResyncRecord(ctx context.Context, kind record.Kind, id int64) (*ledgersync.SyncResult, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgersync.SyncResult), args.Error(1)
}

func (m *MockSyncService) ListAttempts(ctx context.Context, kind record.Kind, id int64, limit int) ([]*journal.AttemptRecord, error) {
	args := m.Called(ctx, kind, id, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*journal.AttemptRecord), args.Error(1)
}

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Hash(rec record.Record) (string, error) {
	args := m.Called(rec)
	return args.String(0), args.Error(1)
}

func (m *MockLedgerService) Verify(ctx context.Context, kind record.Kind, id int64) (*integrity.Report, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrity.Report), args.Error(1)
}

func (m *MockLedgerService) Read(ctx context.Context, kind record.Kind, id int64) (*ledger.Entry, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerService) Remove(ctx context.Context, kind record.Kind, id int64) (*ledger.TxReceipt, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.TxReceipt), args.Error(1)
}

func (m *MockLedgerService) Count(ctx context.Context, kind record.Kind) uint64 {
	return m.Called(ctx, kind).Get(0).(uint64)
}

type testBackend struct {
	sync      *MockSyncService
	ledger    *MockLedgerService
	connects  int
	closed    int
	connectFn func() error
	migrateFn func() (uint, error)
}

func newTestBackend() *testBackend {
	return &testBackend{sync: new(MockSyncService), ledger: new(MockLedgerService)}
}

func (tb *testBackend) connect(ctx context.Context, opts *RootOptions, stderr io.Writer) (*Backend, error) {
	tb.connects++
	if tb.connectFn != nil {
		if err := tb.connectFn(); err != nil {
			return nil, err
		}
	}
	return &Backend{
		Sync:    tb.sync,
		Ledger:  tb.ledger,
		closers: []func(){func() { tb.closed++ }},
	}, nil
}

func (tb *testBackend) migrate(opts *RootOptions, stderr io.Writer) (uint, error) {
	if tb.migrateFn == nil {
		return 0, errors.New("migrate not expected")
	}
	return tb.migrateFn()
}

func runCLI(tb *testBackend, args ...string) (int, string, string) {
	cmd := newRootCmdWith(tb.connect, tb.migrate)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	code := execute(context.Background(), cmd)
	return code, stdout.String(), stderr.String()
}

func TestHashCmd(t *testing.T) {
	t.Run("Inline", func(t *testing.T) {
		tb := newTestBackend()
		code, stdout, _ := runCLI(tb, "hash", "removal", "--data", goldenRemoval)

		assert.Equal(t, 0, code)
		assert.Equal(t, goldenDigest+"\n", stdout)
		assert.Zero(t, tb.connects)
	})

	t.Run("FromFileAsJSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "removal.json")
		require.NoError(t, os.WriteFile(path, []byte(goldenRemoval), 0o600))

		code, stdout, _ := runCLI(newTestBackend(), "hash", "removals", "--file", path, "--json")
		require.Equal(t, 0, code)

		var out hashOutput
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.Equal(t, "removal", out.RecordKind)
		assert.Equal(t, int64(42), out.RecordID)
		assert.Equal(t, goldenDigest, out.DataHash)
	})

	t.Run("ChangedQuantityChangesDigest", func(t *testing.T) {
		code, stdout, _ := runCLI(newTestBackend(), "hash", "removal", "--data",
			`{"removal_id":42,"medicine_id":7,"quantity_removed":8,"reason":"EXPIRED","date_removed":"2024-01-10"}`)
		assert.Equal(t, 0, code)
		assert.Equal(t, tamperedDigest+"\n", stdout)
	})

	tests := []struct {
		name       string
		args       []string
		wantStderr string
	}{
		{name: "missing quantity", args: []string{"hash", "removal", "--data", `{"removal_id":42,"medicine_id":7,"reason":"EXPIRED","date_removed":"2024-01-10"}`}, wantStderr: "Error (validation)"},
		{name: "both inputs", args: []string{"hash", "removal", "--data", "{}", "--file", "x.json"}, wantStderr: "not both"},
		{name: "no input", args: []string{"hash", "removal"}, wantStderr: "data is required"},
		{name: "not json", args: []string{"hash", "stock", "--data", "stock_id=3"}, wantStderr: "not valid JSON"},
		{name: "unknown kind", args: []string{"hash", "prescription", "--data", "{}"}, wantStderr: "unknown record kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(newTestBackend(), tt.args...)
			assert.Equal(t, ExitInvalid, code)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, tt.wantStderr)
		})
	}
}

func TestVerifyCmd(t *testing.T) {
	checked := time.Date(2024, 1, 11, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		args       []string
		setupMocks func(svc *MockLedgerService)
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{
			name: "verified",
			args: []string{"verify", "removal", "42"},
			setupMocks: func(svc *MockLedgerService) {
				svc.On("Verify", mock.Anything, record.KindRemoval, int64(42)).Return(&integrity.Report{
					RecordKind: record.KindRemoval, RecordID: 42, Status: shared.IntegrityStatusVerified,
					ComputedDigest: goldenDigest, LedgerDigest: goldenDigest, CheckedAt: checked,
				}, nil)
			},
			wantCode:   0,
			wantStdout: "Status: VERIFIED\n",
		},
		{
			name: "tampered",
			args: []string{"verify", "removals", "42"},
			setupMocks: func(svc *MockLedgerService) {
				svc.On("Verify", mock.Anything, record.KindRemoval, int64(42)).Return(&integrity.Report{
					RecordKind: record.KindRemoval, RecordID: 42, Status: shared.IntegrityStatusTampered,
					ComputedDigest: tamperedDigest, LedgerDigest: goldenDigest, CheckedAt: checked,
				}, nil)
			},
			wantCode:   ExitIntegrity,
			wantStdout: "Status: TAMPERED\n",
			wantStderr: "Error (integrity): removal 42 is TAMPERED",
		},
		{
			name: "record gone",
			args: []string{"verify", "stock", "3"},
			setupMocks: func(svc *MockLedgerService) {
				svc.On("Verify", mock.Anything, record.KindStock, int64(3)).Return(nil, record.ErrRecordNotFound{Kind: record.KindStock, ID: 3})
			},
			wantCode:   ExitNotFound,
			wantStderr: "Error (not_found)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBackend()
			tt.setupMocks(tb.ledger)

			code, stdout, stderr := runCLI(tb, tt.args...)

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStdout, stdout)
			if tt.wantStderr != "" {
				assert.Contains(t, stderr, tt.wantStderr)
			}
			assert.Equal(t, 1, tb.closed)
			tb.ledger.AssertExpectations(t)
		})
	}
}

func TestVerifyCmd_JSONError(t *testing.T) {
	tb := newTestBackend()
	tb.ledger.On("Verify", mock.Anything, record.KindStock, int64(3)).Return(nil, record.ErrRecordNotFound{Kind: record.KindStock, ID: 3})

	code, stdout, stderr := runCLI(tb, "verify", "stock", "3", "--json")

	assert.Equal(t, ExitNotFound, code)
	assert.Empty(t, stdout)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stderr), &payload))
	assert.Equal(t, "not_found", payload["kind"])
}

func TestArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown kind", args: []string{"verify", "prescriptions", "1"}},
		{name: "non numeric id", args: []string{"read", "stock", "abc"}},
		{name: "zero id", args: []string{"resync", "removal", "0"}},
		{name: "bad limit", args: []string{"attempts", "removal", "42", "--limit", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBackend()
			code, _, _ := runCLI(tb, tt.args...)
			assert.Equal(t, ExitInvalid, code)
			assert.Zero(t, tb.connects)
		})
	}
}

func TestConnectFailure(t *testing.T) {
	tb := newTestBackend()
	tb.connectFn = func() error { return errors.New("failed to connect to postgres: connection refused") }

	code, _, stderr := runCLI(tb, "count", "stock")

	assert.Equal(t, ExitInternal, code)
	assert.Contains(t, stderr, "Error (internal): failed to connect to postgres")
	assert.Zero(t, tb.closed)
}

func TestInspectCmd(t *testing.T) {
	tb := newTestBackend()
	tb.ledger.On("Verify", mock.Anything, record.KindStock, int64(3)).Return(&integrity.Report{
		RecordKind:     record.KindStock,
		RecordID:       3,
		Status:         shared.IntegrityStatusNotSynced,
		ComputedDigest: goldenDigest,
		Trigger:        shared.AuditTriggerCLI,
		CheckedAt:      time.Date(2024, 1, 11, 8, 0, 0, 0, time.UTC),
	}, nil)

	code, stdout, _ := runCLI(tb, "inspect", "stock", "3")

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Record: stock 3\n")
	assert.Contains(t, stdout, "Status: NOT_SYNCED\n")
	assert.Contains(t, stdout, "Ledger Digest: -\n")
	assert.Contains(t, stdout, "Checked At: 2024-01-11T08:00:00Z\n")
}

func TestReadCmd(t *testing.T) {
	tb := newTestBackend()
	tb.ledger.On("Read", mock.Anything, record.KindStock, int64(3)).Return(&ledger.Entry{
		DataHash:    goldenDigest,
		SubmittedBy: "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",
		Timestamp:   time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC),
		Exists:      true,
	}, nil)
	tb.ledger.On("Read", mock.Anything, record.KindStock, int64(4)).Return(&ledger.Entry{}, nil)

	code, stdout, _ := runCLI(tb, "read", "stock", "3")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Data Hash: "+goldenDigest+"\n")
	assert.Contains(t, stdout, "Timestamp: 2024-01-10T09:30:00Z\n")

	code, stdout, _ = runCLI(tb, "read", "stock", "4", "--json")
	assert.Equal(t, 0, code)
	var out entryOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.False(t, out.Exists)
	assert.Empty(t, out.DataHash)
}

func TestCountCmd(t *testing.T) {
	tb := newTestBackend()
	tb.ledger.On("Count", mock.Anything, record.KindRemoval).Return(uint64(12))

	code, stdout, _ := runCLI(tb, "count", "removals", "--json")

	assert.Equal(t, 0, code)
	var out countOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "removal", out.RecordKind)
	assert.Equal(t, uint64(12), out.Count)
}

func TestResyncCmd(t *testing.T) {
	saved := &record.Removal{RemovalID: 42, MedicineID: 7, QuantityRemoved: 5, Reason: "EXPIRED", DateRemoved: "2024-01-10"}

	t.Run("Synced", func(t *testing.T) {
		tb := newTestBackend()
		tb.sync.On("ResyncRecord", mock.Anything, record.KindRemoval, int64(42)).Return(&ledgersync.SyncResult{
			Record:   saved,
			Receipt:  &ledger.TxReceipt{TxHash: "0xfeed", Transport: "relayer"},
			Digest:   goldenDigest,
			Success:  true,
			Message:  "Record saved and recorded on the ledger",
			Outcome:  ledger.Synced(),
			Attempts: 1,
		}, nil)

		code, stdout, stderr := runCLI(tb, "resync", "removal", "42")

		assert.Equal(t, 0, code)
		assert.Empty(t, stderr)
		assert.Contains(t, stdout, "Success: true\n")
		assert.Contains(t, stdout, "Tx Hash: 0xfeed\n")
		assert.Contains(t, stdout, "Transport: relayer\n")
	})

	t.Run("SavedNotLedgered", func(t *testing.T) {
		tb := newTestBackend()
		lerr := ledger.NewError(ledger.ReasonUnauthorized, ledger.Call{Op: ledger.OpStore, Kind: record.KindRemoval, ID: 42}, "binding", errors.New("caller is not the owner"))
		tb.sync.On("ResyncRecord", mock.Anything, record.KindRemoval, int64(42)).Return(&ledgersync.SyncResult{
			Record:   saved,
			Digest:   goldenDigest,
			Message:  "Record saved but not recorded on the ledger",
			Outcome:  ledger.Guidance(lerr),
			Attempts: 1,
		}, lerr)

		code, stdout, stderr := runCLI(tb, "resync", "removal", "42")

		assert.Equal(t, ExitLedger, code)
		assert.Contains(t, stdout, "Success: false\n")
		assert.Contains(t, stdout, "Outcome: PERMISSION_DENIED\n")
		assert.Contains(t, stderr, "Error (ledger): PERMISSION_DENIED")
		assert.Contains(t, stderr, "Advice: CONTACT_ADMIN")
	})

	t.Run("AlreadyRunning", func(t *testing.T) {
		tb := newTestBackend()
		tb.sync.On("ResyncRecord", mock.Anything, record.KindRemoval, int64(42)).
			Return(nil, ledgersync.ErrSyncInProgress{Kind: record.KindRemoval, ID: 42})

		code, stdout, stderr := runCLI(tb, "resync", "removal", "42")

		assert.Equal(t, ExitConflict, code)
		assert.Empty(t, stdout)
		assert.Contains(t, stderr, "Error (conflict)")
	})
}

func TestAttemptsCmd(t *testing.T) {
	created := time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)
	attempts := []*journal.AttemptRecord{
		{ID: 2, RecordKind: record.KindRemoval, RecordID: 42, Operation: ledger.OpStore, Attempt: 2, Transport: "binding", FallbackUsed: true, TxHash: "0xfeed", CreatedAt: created.Add(2 * time.Second)},
		{ID: 1, RecordKind: record.KindRemoval, RecordID: 42, Operation: ledger.OpStore, Attempt: 1, Transport: "relayer", ErrorClass: "TRANSIENT", ErrorReason: "NETWORK", Retryable: true, CreatedAt: created},
	}

	t.Run("Text", func(t *testing.T) {
		tb := newTestBackend()
		tb.sync.On("ListAttempts", mock.Anything, record.KindRemoval, int64(42), 5).Return(attempts, nil)

		code, stdout, _ := runCLI(tb, "attempts", "removal", "42", "--limit", "5")

		assert.Equal(t, 0, code)
		assert.Contains(t, stdout, "#2")
		assert.Contains(t, stdout, "0xfeed")
		assert.Contains(t, stdout, "TRANSIENT (NETWORK)")
		tb.sync.AssertExpectations(t)
	})

	t.Run("EmptyAsJSON", func(t *testing.T) {
		tb := newTestBackend()
		tb.sync.On("ListAttempts", mock.Anything, record.KindStock, int64(3), 20).Return(nil, nil)

		code, stdout, _ := runCLI(tb, "attempts", "stock", "3", "--json")

		assert.Equal(t, 0, code)
		assert.JSONEq(t, "[]", stdout)
	})
}

func TestMigrateCmd(t *testing.T) {
	t.Run("Text", func(t *testing.T) {
		tb := newTestBackend()
		tb.migrateFn = func() (uint, error) { return 1, nil }

		code, stdout, _ := runCLI(tb, "migrate")

		assert.Equal(t, 0, code)
		assert.Equal(t, "Schema version: 1\n", stdout)
		assert.Zero(t, tb.connects)
	})

	t.Run("JSON", func(t *testing.T) {
		tb := newTestBackend()
		tb.migrateFn = func() (uint, error) { return 1, nil }

		code, stdout, _ := runCLI(tb, "migrate", "--json")

		assert.Equal(t, 0, code)
		assert.JSONEq(t, `{"schema_version":1}`, stdout)
	})

	t.Run("Failure", func(t *testing.T) {
		tb := newTestBackend()
		tb.migrateFn = func() (uint, error) { return 0, errors.New("journal schema version 1 is dirty") }

		code, stdout, stderr := runCLI(tb, "migrate")

		assert.Equal(t, ExitInternal, code)
		assert.Empty(t, stdout)
		assert.Contains(t, stderr, "Error (internal): journal schema version 1 is dirty")
	})
}

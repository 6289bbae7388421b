package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/genluna-medchain/internal/domain/integrity"
	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/domain/shared"
	"github.com/genluna-medchain/internal/ledger_sync/components"
	"github.com/genluna-medchain/internal/platform/chain"
)

type MockLedgerClient struct {
	mock.Mock
}

func (m *MockLedgerClient) Store(ctx context.Context, signer chain.SignerContext, kind record.Kind, id int64, digest string) (*ledger.Execution, error) {
	args := m.Called(ctx, signer, kind, id, digest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Execution), args.Error(1)
}

func (m *MockLedgerClient) Update(ctx context.Context, signer chain.SignerContext, kind record.Kind, id int64, digest string) (*ledger.Execution, error) {
	args := m.Called(ctx, signer, kind, id, digest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Execution), args.Error(1)
}

func (m *MockLedgerClient) Remove(ctx context.Context, signer chain.SignerContext, kind record.Kind, id int64) (*ledger.Execution, error) {
	args := m.Called(ctx, signer, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Execution), args.Error(1)
}

func (m *MockLedgerClient) Verify(ctx context.Context, kind record.Kind, id int64, digest string) (bool, error) {
	args := m.Called(ctx, kind, id, digest)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerClient) Read(ctx context.Context, kind record.Kind, id int64) (*ledger.Entry, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerClient) Count(ctx context.Context, kind record.Kind) uint64 {
	args := m.Called(ctx, kind)
	return args.Get(0).(uint64)
}

type MockVerificationService struct {
	mock.Mock
}

func (m *MockVerificationService) Verify(ctx context.Context, rec record.Record) (bool, error) {
	args := m.Called(ctx, rec)
	return args.Bool(0), args.Error(1)
}

func (m *MockVerificationService) Inspect(ctx context.Context, rec record.Record, trigger shared.AuditTrigger) (*integrity.Report, error) {
	args := m.Called(ctx, rec, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrity.Report), args.Error(1)
}

func (m *MockVerificationService) InspectByID(ctx context.Context, kind record.Kind, id int64, trigger shared.AuditTrigger) (*integrity.Report, error) {
	args := m.Called(ctx, kind, id, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrity.Report), args.Error(1)
}

type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Save(ctx context.Context, report *integrity.Report) error {
	return m.Called(ctx, report).Error(0)
}

func (m *MockReportRepository) Latest(ctx context.Context, kind record.Kind, recordID int64) (*integrity.Report, error) {
	args := m.Called(ctx, kind, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrity.Report), args.Error(1)
}

func (m *MockReportRepository) ListByStatus(ctx context.Context, status shared.IntegrityStatus, limit, offset int) ([]*integrity.Report, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integrity.Report), args.Error(1)
}

func (m *MockReportRepository) CountByStatus(ctx context.Context, status shared.IntegrityStatus) (int64, error) {
	args := m.Called(ctx, status)
	return args.Get(0).(int64), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLedgerServiceImpl_Hash(t *testing.T) {
	svc := NewLedgerService(components.NewHashCodec(), new(MockLedgerClient), nil, new(MockVerificationService), nil, shared.AuditTriggerAPI, newTestLogger())

	digest, err := svc.Hash(&record.Removal{
		RemovalID:       42,
		MedicineID:      7,
		QuantityRemoved: 5,
		Reason:          "EXPIRED",
		DateRemoved:     "2024-01-10",
	})
	require.NoError(t, err)
	assert.Equal(t, "0xbdf4d1a4c14205935cea7c5932d0c1bfb73307c389ff2266c73b2070e6cfcfa4", digest)

	_, err = svc.Hash(&record.Removal{RemovalID: 42, MedicineID: 7, Reason: "EXPIRED", DateRemoved: "2024-01-10"})
	assert.ErrorIs(t, err, record.EncodingError{})
}

func TestLedgerServiceImpl_Verify(t *testing.T) {
	ctx := context.Background()
	report := &integrity.Report{
		RecordKind: record.KindRemoval,
		RecordID:   42,
		Status:     shared.IntegrityStatusVerified,
		Trigger:    shared.AuditTriggerAPI,
		CheckedAt:  time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC),
	}

	tests := []struct {
		name        string
		withReports bool
		setupMocks  func(v *MockVerificationService, reports *MockReportRepository)
		wantErr     error
	}{
		{
			name:        "report is stored",
			withReports: true,
			setupMocks: func(v *MockVerificationService, reports *MockReportRepository) {
				v.On("InspectByID", ctx, record.KindRemoval, int64(42), shared.AuditTriggerAPI).Return(report, nil)
				reports.On("Save", ctx, report).Return(nil)
			},
		},
		{
			name:        "report store failure is not fatal",
			withReports: true,
			setupMocks: func(v *MockVerificationService, reports *MockReportRepository) {
				v.On("InspectByID", ctx, record.KindRemoval, int64(42), shared.AuditTriggerAPI).Return(report, nil)
				reports.On("Save", ctx, report).Return(errors.New("mongo down"))
			},
		},
		{
			name: "without report store",
			setupMocks: func(v *MockVerificationService, reports *MockReportRepository) {
				v.On("InspectByID", ctx, record.KindRemoval, int64(42), shared.AuditTriggerAPI).Return(report, nil)
			},
		},
		{
			name:        "missing record",
			withReports: true,
			setupMocks: func(v *MockVerificationService, reports *MockReportRepository) {
				v.On("InspectByID", ctx, record.KindRemoval, int64(42), shared.AuditTriggerAPI).
					Return(nil, record.ErrRecordNotFound{Kind: record.KindRemoval, ID: 42})
			},
			wantErr: record.ErrRecordNotFound{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := new(MockVerificationService)
			reports := new(MockReportRepository)
			tt.setupMocks(verifier, reports)

			var repo integrity.Repository
			if tt.withReports {
				repo = reports
			}
			svc := NewLedgerService(components.NewHashCodec(), new(MockLedgerClient), nil, verifier, repo, shared.AuditTriggerAPI, newTestLogger())

			got, err := svc.Verify(ctx, record.KindRemoval, 42)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, report, got)
			}
			verifier.AssertExpectations(t)
			reports.AssertExpectations(t)
		})
	}
}

func TestLedgerServiceImpl_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		client := new(MockLedgerClient)
		receipt := &ledger.TxReceipt{TxHash: "0xabc", Transport: "memory"}
		client.On("Remove", ctx, mock.Anything, record.KindRemoval, int64(42)).Return(&ledger.Execution{Receipt: receipt}, nil)

		svc := NewLedgerService(components.NewHashCodec(), client, nil, new(MockVerificationService), nil, shared.AuditTriggerAPI, newTestLogger())
		got, err := svc.Remove(ctx, record.KindRemoval, 42)
		require.NoError(t, err)
		assert.Equal(t, receipt, got)
	})

	t.Run("LedgerError", func(t *testing.T) {
		client := new(MockLedgerClient)
		lerr := ledger.NewError(ledger.ReasonUnauthorized, ledger.Call{Op: ledger.OpDelete, Kind: record.KindRemoval, ID: 42}, "binding", errors.New("caller is not the owner"))
		client.On("Remove", ctx, mock.Anything, record.KindRemoval, int64(42)).Return(&ledger.Execution{}, lerr)

		svc := NewLedgerService(components.NewHashCodec(), client, nil, new(MockVerificationService), nil, shared.AuditTriggerAPI, newTestLogger())
		got, err := svc.Remove(ctx, record.KindRemoval, 42)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ledger.ErrPermanent)
	})

	t.Run("NoReceipt", func(t *testing.T) {
		client := new(MockLedgerClient)
		client.On("Remove", ctx, mock.Anything, record.KindStock, int64(3)).Return(&ledger.Execution{}, nil)

		svc := NewLedgerService(components.NewHashCodec(), client, nil, new(MockVerificationService), nil, shared.AuditTriggerAPI, newTestLogger())
		_, err := svc.Remove(ctx, record.KindStock, 3)
		assert.ErrorIs(t, err, ledger.ErrMissingReceiptHash)
	})
}

func TestLedgerServiceImpl_ReadAndCount(t *testing.T) {
	ctx := context.Background()
	client := new(MockLedgerClient)
	entry := &ledger.Entry{DataHash: "0xabc", Exists: true}
	client.On("Read", ctx, record.KindStock, int64(3)).Return(entry, nil)
	client.On("Count", ctx, record.KindStock).Return(uint64(9))

	svc := NewLedgerService(components.NewHashCodec(), client, nil, new(MockVerificationService), nil, shared.AuditTriggerAPI, newTestLogger())

	got, err := svc.Read(ctx, record.KindStock, 3)
	require.NoError(t, err)
	assert.Equal(t, entry, got)
	assert.Equal(t, uint64(9), svc.Count(ctx, record.KindStock))
	client.AssertExpectations(t)
}

package mongo

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/genluna-medchain/internal/domain/integrity"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/domain/shared"
)

const reportNS = "medchain.integrity_reports"

func reportDoc(kind record.Kind, id int64, status shared.IntegrityStatus, checkedAt time.Time) bson.D {
	return bson.D{
		{Key: "record_kind", Value: string(kind)},
		{Key: "record_id", Value: id},
		{Key: "status", Value: string(status)},
		{Key: "computed_digest", Value: "0xaa"},
		{Key: "ledger_digest", Value: "0xbb"},
		{Key: "trigger", Value: string(shared.AuditTriggerSweep)},
		{Key: "checked_at", Value: checkedAt},
	}
}

func TestNewIntegrityReportRepository(t *testing.T) {
	repo := NewIntegrityReportRepository(slog.Default(), nil)
	assert.NotNil(t, repo)
}

func TestIntegrityReportRepository_Save(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	report := &integrity.Report{
		RecordKind:     record.KindRemoval,
		RecordID:       42,
		Status:         shared.IntegrityStatusVerified,
		ComputedDigest: "0xaa",
		LedgerDigest:   "0xaa",
		Trigger:        shared.AuditTriggerEvent,
		CheckedAt:      time.Now().UTC(),
	}

	mt.Run("success", func(mt *mtest.T) {
		repo := NewIntegrityReportRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, repo.Save(context.Background(), report))

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "insert", started.CommandName)
	})

	mt.Run("write error", func(mt *mtest.T) {
		repo := NewIntegrityReportRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.Save(context.Background(), report)
		assert.Error(mt, err)
		assert.Contains(mt, err.Error(), "failed to save integrity report")
	})
}

func TestIntegrityReportRepository_Latest(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	checkedAt := time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC)

	mt.Run("found", func(mt *mtest.T) {
		repo := NewIntegrityReportRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, reportNS, mtest.FirstBatch,
			reportDoc(record.KindRemoval, 42, shared.IntegrityStatusTampered, checkedAt)))

		report, err := repo.Latest(context.Background(), record.KindRemoval, 42)
		require.NoError(mt, err)
		assert.Equal(mt, record.KindRemoval, report.RecordKind)
		assert.Equal(mt, int64(42), report.RecordID)
		assert.Equal(mt, shared.IntegrityStatusTampered, report.Status)
		assert.Equal(mt, "0xbb", report.LedgerDigest)
		assert.True(mt, checkedAt.Equal(report.CheckedAt))
		assert.False(mt, report.Verified())
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewIntegrityReportRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, reportNS, mtest.FirstBatch))

		report, err := repo.Latest(context.Background(), record.KindStock, 7)
		assert.Nil(mt, report)
		assert.ErrorIs(mt, err, integrity.ErrReportNotFound{Kind: record.KindStock, ID: 7})
	})

	mt.Run("command error", func(mt *mtest.T) {
		repo := NewIntegrityReportRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad query",
			Name:    "BadValue",
		}))

		report, err := repo.Latest(context.Background(), record.KindStock, 7)
		assert.Nil(mt, report)
		assert.Contains(mt, err.Error(), "failed to get latest integrity report")
	})
}

func TestIntegrityReportRepository_ListByStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	checkedAt := time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC)

	mt.Run("success", func(mt *mtest.T) {
		repo := NewIntegrityReportRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, reportNS, mtest.FirstBatch,
				reportDoc(record.KindRemoval, 42, shared.IntegrityStatusTampered, checkedAt),
				reportDoc(record.KindStock, 7, shared.IntegrityStatusTampered, checkedAt.Add(-time.Minute)),
			),
			mtest.CreateCursorResponse(0, reportNS, mtest.NextBatch),
		)

		reports, err := repo.ListByStatus(context.Background(), shared.IntegrityStatusTampered, 10, 0)
		require.NoError(mt, err)
		require.Len(mt, reports, 2)
		assert.Equal(mt, record.KindStock, reports[1].RecordKind)
	})

	mt.Run("command error", func(mt *mtest.T) {
		repo := NewIntegrityReportRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad sort", Name: "BadValue"}))

		reports, err := repo.ListByStatus(context.Background(), shared.IntegrityStatusTampered, 10, 0)
		assert.Nil(mt, reports)
		assert.Error(mt, err)
	})
}

func TestIntegrityReportRepository_CountByStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := NewIntegrityReportRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, reportNS, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}))

		count, err := repo.CountByStatus(context.Background(), shared.IntegrityStatusVerified)
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), count)
	})

	mt.Run("command error", func(mt *mtest.T) {
		repo := NewIntegrityReportRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad pipeline", Name: "BadValue"}))

		count, err := repo.CountByStatus(context.Background(), shared.IntegrityStatusVerified)
		assert.Zero(mt, count)
		assert.Error(mt, err)
	})
}

func TestIntegrityReportRepository_EnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := NewIntegrityReportRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, repo.EnsureIndexes(context.Background()))
		assert.Equal(mt, "createIndexes", mt.GetStartedEvent().CommandName)
	})
}

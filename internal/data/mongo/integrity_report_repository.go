package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/genluna-medchain/internal/domain/integrity"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/domain/shared"
)

const (
	// IntegrityReportCollectionName is the name of the integrity report collection in MongoDB
	IntegrityReportCollectionName = "integrity_reports"
)

// IntegrityReportRepository implements the integrity.Repository interface for MongoDB
type IntegrityReportRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewIntegrityReportRepository creates a new MongoDB integrity report repository
func NewIntegrityReportRepository(logger *slog.Logger, db *mongo.Database) *IntegrityReportRepository {
	return &IntegrityReportRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the lookup indexes used by Latest and ListByStatus
func (r *IntegrityReportRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(IntegrityReportCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "record_kind", Value: 1}, {Key: "record_id", Value: 1}, {Key: "checked_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "checked_at", Value: -1}}},
	})
	if err != nil {
		r.logger.Error("Failed to create integrity report indexes", "error", err)
		return fmt.Errorf("failed to create integrity report indexes: %w", err)
	}

	return nil
}

// Save appends a report; earlier reports of the same record are kept as history
func (r *IntegrityReportRepository) Save(ctx context.Context, report *integrity.Report) error {
	collection := r.db.Collection(IntegrityReportCollectionName)

	_, err := collection.InsertOne(ctx, report)
	if err != nil {
		r.logger.Error("Failed to save integrity report",
			"record_kind", string(report.RecordKind),
			"record_id", report.RecordID,
			"error", err)
		return fmt.Errorf("failed to save integrity report: %w", err)
	}

	return nil
}

// Latest returns the most recent report of a record.
// Returns ErrReportNotFound if the record was never checked.
func (r *IntegrityReportRepository) Latest(ctx context.Context, kind record.Kind, recordID int64) (*integrity.Report, error) {
	collection := r.db.Collection(IntegrityReportCollectionName)

	filter := bson.M{"record_kind": kind, "record_id": recordID}
	opts := options.FindOne().SetSort(bson.M{"checked_at": -1})

	var report integrity.Report
	err := collection.FindOne(ctx, filter, opts).Decode(&report)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, integrity.ErrReportNotFound{Kind: kind, ID: recordID}
		}
		r.logger.Error("Failed to get latest integrity report",
			"record_kind", string(kind),
			"record_id", recordID,
			"error", err)
		return nil, fmt.Errorf("failed to get latest integrity report: %w", err)
	}

	return &report, nil
}

// ListByStatus retrieves paginated reports with the given status, newest first
func (r *IntegrityReportRepository) ListByStatus(ctx context.Context, status shared.IntegrityStatus, limit, offset int) ([]*integrity.Report, error) {
	collection := r.db.Collection(IntegrityReportCollectionName)

	filter := bson.M{"status": status}
	opts := options.Find().
		SetSort(bson.M{"checked_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list integrity reports",
			"status", string(status),
			"error", err)
		return nil, fmt.Errorf("failed to list integrity reports: %w", err)
	}
	defer cursor.Close(ctx)

	var reports []*integrity.Report
	if err := cursor.All(ctx, &reports); err != nil {
		r.logger.Error("Failed to decode integrity reports",
			"status", string(status),
			"error", err)
		return nil, fmt.Errorf("failed to decode integrity reports: %w", err)
	}

	return reports, nil
}

// CountByStatus counts the reports with the given status
func (r *IntegrityReportRepository) CountByStatus(ctx context.Context, status shared.IntegrityStatus) (int64, error) {
	collection := r.db.Collection(IntegrityReportCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		r.logger.Error("Failed to count integrity reports",
			"status", string(status),
			"error", err)
		return 0, fmt.Errorf("failed to count integrity reports: %w", err)
	}

	return count, nil
}

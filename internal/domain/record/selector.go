package record

import (
	"fmt"
	"strings"
	"time"
)

// Fields is the canonical field set fed into the digest
type Fields map[string]any

// FieldSelector extracts the hashed fields of a record
type FieldSelector func(r Record) (Fields, error)

const dateLayout = "2006-01-02"

// SelectorFor returns the field selector registered for kind
func SelectorFor(kind Kind) (FieldSelector, error) {
	switch kind {
	case KindStock:
		return SelectStockFields, nil
	case KindRemoval:
		return SelectRemovalFields, nil
	default:
		return nil, fmt.Errorf("no field selector for record kind %q", kind)
	}
}

// SelectStockFields selects the hashed fields of a stock addition
func SelectStockFields(r Record) (Fields, error) {
	s, ok := r.(*Stock)
	if !ok || s == nil {
		return nil, EncodingError{Kind: KindStock, Field: "*", Reason: fmt.Sprintf("expected stock record, got %T", r)}
	}
	if s.StockID <= 0 {
		return nil, EncodingError{Kind: KindStock, Field: "stock_id", Reason: "is missing; record must be persisted first"}
	}
	if s.MedicineID <= 0 {
		return nil, EncodingError{Kind: KindStock, Field: "medicine_id", Reason: "is missing"}
	}
	if s.Quantity <= 0 {
		return nil, EncodingError{Kind: KindStock, Field: "quantity", Reason: "must be positive"}
	}
	expiry, err := normalizeDate(KindStock, "expiry_date", s.ExpiryDate)
	if err != nil {
		return nil, err
	}
	received, err := normalizeDate(KindStock, "date_received", s.DateReceived)
	if err != nil {
		return nil, err
	}

	return Fields{
		"stock_id":      s.StockID,
		"medicine_id":   s.MedicineID,
		"quantity":      s.Quantity,
		"batch_number":  strings.TrimSpace(s.BatchNumber),
		"expiry_date":   expiry,
		"date_received": received,
		"supplier":      strings.TrimSpace(s.Supplier),
		"notes":         s.Notes,
	}, nil
}

// SelectRemovalFields selects the hashed fields of a stock removal
func SelectRemovalFields(r Record) (Fields, error) {
	rm, ok := r.(*Removal)
	if !ok || rm == nil {
		return nil, EncodingError{Kind: KindRemoval, Field: "*", Reason: fmt.Sprintf("expected removal record, got %T", r)}
	}
	if rm.RemovalID <= 0 {
		return nil, EncodingError{Kind: KindRemoval, Field: "removal_id", Reason: "is missing; record must be persisted first"}
	}
	if rm.MedicineID <= 0 {
		return nil, EncodingError{Kind: KindRemoval, Field: "medicine_id", Reason: "is missing"}
	}
	if rm.QuantityRemoved <= 0 {
		return nil, EncodingError{Kind: KindRemoval, Field: "quantity_removed", Reason: "must be positive"}
	}
	reason := strings.TrimSpace(rm.Reason)
	if reason == "" {
		return nil, EncodingError{Kind: KindRemoval, Field: "reason", Reason: "is missing"}
	}
	removed, err := normalizeDate(KindRemoval, "date_removed", rm.DateRemoved)
	if err != nil {
		return nil, err
	}

	return Fields{
		"removal_id":       rm.RemovalID,
		"medicine_id":      rm.MedicineID,
		"quantity_removed": rm.QuantityRemoved,
		"reason":           reason,
		"date_removed":     removed,
		"notes":            rm.Notes,
	}, nil
}

// normalizeDate reduces a date or RFC 3339 timestamp to YYYY-MM-DD.
// The REST store returns date columns as timestamps, so both forms must hash alike.
func normalizeDate(kind Kind, field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", EncodingError{Kind: kind, Field: field, Reason: "is missing"}
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t.Format(dateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.Format(dateLayout), nil
	}
	return "", EncodingError{Kind: kind, Field: field, Reason: fmt.Sprintf("is not a date: %q", value)}
}

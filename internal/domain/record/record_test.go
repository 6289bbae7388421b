package record

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input    string
		expected Kind
		wantErr  bool
	}{
		{"stock", KindStock, false},
		{"Stocks", KindStock, false},
		{"removal", KindRemoval, false},
		{" removals ", KindRemoval, false},
		{"stock-removals", KindRemoval, false},
		{"resident", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			kind, err := ParseKind(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, kind)
		})
	}
}

func TestKind_Collection(t *testing.T) {
	assert.Equal(t, "stocks", KindStock.Collection())
	assert.Equal(t, "removals", KindRemoval.Collection())
}

func TestNew(t *testing.T) {
	rec, err := New(KindStock)
	require.NoError(t, err)
	assert.IsType(t, &Stock{}, rec)

	rec, err = New(KindRemoval)
	require.NoError(t, err)
	assert.IsType(t, &Removal{}, rec)

	_, err = New("consultation")
	assert.Error(t, err)
}

func TestRemoval_JSONFlattensLinkage(t *testing.T) {
	synced := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	rm := &Removal{
		RemovalID:       42,
		MedicineID:      7,
		QuantityRemoved: 5,
		Reason:          "EXPIRED",
		DateRemoved:     "2024-01-10",
	}
	rm.SetLinkage(Linkage{DataHash: "0xabc", LedgerTxHash: "0xdef", SignerAddress: "0x01", LastSyncedAt: &synced})

	raw, err := json.Marshal(rm)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(raw, &flat))
	assert.Equal(t, "0xabc", flat["data_hash"])
	assert.Equal(t, "0xdef", flat["ledger_tx_hash"])
	assert.Equal(t, float64(42), flat["removal_id"])
	assert.True(t, rm.LedgerLinkage().Synced())
}

func TestSelectRemovalFields(t *testing.T) {
	valid := func() *Removal {
		return &Removal{
			RemovalID:       42,
			MedicineID:      7,
			QuantityRemoved: 5,
			Reason:          "EXPIRED",
			DateRemoved:     "2024-01-10",
		}
	}

	t.Run("selects canonical fields", func(t *testing.T) {
		fields, err := SelectRemovalFields(valid())
		require.NoError(t, err)
		assert.Equal(t, Fields{
			"removal_id":       int64(42),
			"medicine_id":      int64(7),
			"quantity_removed": int64(5),
			"reason":           "EXPIRED",
			"date_removed":     "2024-01-10",
			"notes":            "",
		}, fields)
	})

	t.Run("timestamp date is truncated to the calendar date", func(t *testing.T) {
		rm := valid()
		rm.DateRemoved = "2024-01-10T00:00:00+08:00"
		fields, err := SelectRemovalFields(rm)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-10", fields["date_removed"])
	})

	tests := []struct {
		name   string
		mutate func(r *Removal)
		field  string
	}{
		{"unpersisted record", func(r *Removal) { r.RemovalID = 0 }, "removal_id"},
		{"missing medicine", func(r *Removal) { r.MedicineID = 0 }, "medicine_id"},
		{"zero quantity", func(r *Removal) { r.QuantityRemoved = 0 }, "quantity_removed"},
		{"blank reason", func(r *Removal) { r.Reason = "  " }, "reason"},
		{"missing date", func(r *Removal) { r.DateRemoved = "" }, "date_removed"},
		{"malformed date", func(r *Removal) { r.DateRemoved = "10/01/2024" }, "date_removed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := valid()
			tt.mutate(rm)
			_, err := SelectRemovalFields(rm)
			require.Error(t, err)
			var encErr EncodingError
			require.True(t, errors.As(err, &encErr))
			assert.Equal(t, tt.field, encErr.Field)
			assert.ErrorIs(t, err, EncodingError{})
		})
	}

	t.Run("wrong record type", func(t *testing.T) {
		_, err := SelectRemovalFields(&Stock{StockID: 1})
		assert.ErrorIs(t, err, EncodingError{Kind: KindRemoval})
	})
}

func TestSelectStockFields(t *testing.T) {
	s := &Stock{
		StockID:      10,
		MedicineID:   3,
		Quantity:     100,
		BatchNumber:  " B-2024-01 ",
		ExpiryDate:   "2026-06-30",
		DateReceived: "2024-01-05T09:30:00Z",
		Supplier:     "RHU Supply",
	}

	fields, err := SelectStockFields(s)
	require.NoError(t, err)
	assert.Equal(t, "B-2024-01", fields["batch_number"])
	assert.Equal(t, "2024-01-05", fields["date_received"])
	assert.Equal(t, int64(100), fields["quantity"])

	s.StockID = 0
	_, err = SelectStockFields(s)
	assert.ErrorIs(t, err, EncodingError{Kind: KindStock, Field: "stock_id"})
}

func TestSelectorFor(t *testing.T) {
	for _, kind := range Kinds {
		sel, err := SelectorFor(kind)
		require.NoError(t, err)
		assert.NotNil(t, sel)
	}
	_, err := SelectorFor("provider")
	assert.Error(t, err)
}

func TestErrRecordNotFound_Is(t *testing.T) {
	err := ErrRecordNotFound{Kind: KindStock, ID: 9}
	assert.ErrorIs(t, err, ErrRecordNotFound{})
	assert.ErrorIs(t, err, ErrRecordNotFound{Kind: KindStock, ID: 9})
	assert.NotErrorIs(t, err, ErrRecordNotFound{Kind: KindRemoval, ID: 9})
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("503 service unavailable")
	err := PersistenceError{Kind: KindRemoval, Op: "create", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, PersistenceError{})
	assert.Contains(t, err.Error(), "failed to create removal record")
}

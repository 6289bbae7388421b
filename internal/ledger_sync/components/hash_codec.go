package components

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/ledger_sync/service"
)

// HashCodecImpl digests records as keccak256 over RFC 8785 canonical JSON
type HashCodecImpl struct{}

func NewHashCodec() service.HashCodec {
	return HashCodecImpl{}
}

// Hash returns the 0x-prefixed keccak256 digest of the selected fields.
// Key order and number formatting are fixed by canonicalization, so equal fields
// always produce the same digest.
func (HashCodecImpl) Hash(rec record.Record, selector record.FieldSelector) (string, error) {
	if rec == nil {
		return "", record.EncodingError{Field: "*", Reason: "record is nil"}
	}
	if selector == nil {
		return "", record.EncodingError{Kind: rec.Kind(), Field: "*", Reason: "no field selector"}
	}

	fields, err := selector(rec)
	if err != nil {
		return "", err
	}

	canonical, err := CanonicalFields(fields)
	if err != nil {
		return "", record.EncodingError{Kind: rec.Kind(), Field: "*", Reason: err.Error()}
	}
	return hexutil.Encode(crypto.Keccak256(canonical)), nil
}

// CanonicalFields renders fields as RFC 8785 canonical JSON
func CanonicalFields(fields record.Fields) ([]byte, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	value := jsontext.Value(raw)
	if err := value.Canonicalize(); err != nil {
		return nil, fmt.Errorf("failed to canonicalize fields: %w", err)
	}
	return []byte(value), nil
}

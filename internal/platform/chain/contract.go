// Package chain talks to the hash-ledger smart contract: ABI packing, contract reads,
// the raw binding and relayer transports, signer lifecycle and error classification.
package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/genluna-medchain/internal/domain/ledger"
)

// methodsTemplate is the per-kind slice of the ledger ABI; %[1]s is the kind subject.
const methodsTemplate = `
{"type":"function","name":"store%[1]sHash","stateMutability":"nonpayable",
 "inputs":[{"name":"id","type":"uint256"},{"name":"dataHash","type":"bytes32"}],"outputs":[]},
{"type":"function","name":"update%[1]sHash","stateMutability":"nonpayable",
 "inputs":[{"name":"id","type":"uint256"},{"name":"dataHash","type":"bytes32"}],"outputs":[]},
{"type":"function","name":"delete%[1]sHash","stateMutability":"nonpayable",
 "inputs":[{"name":"id","type":"uint256"}],"outputs":[]},
{"type":"function","name":"get%[1]sHash","stateMutability":"view",
 "inputs":[{"name":"id","type":"uint256"}],
 "outputs":[{"name":"dataHash","type":"bytes32"},{"name":"submittedBy","type":"address"},
            {"name":"timestamp","type":"uint256"},{"name":"exists","type":"bool"}]},
{"type":"function","name":"verify%[1]sHash","stateMutability":"view",
 "inputs":[{"name":"id","type":"uint256"},{"name":"dataHash","type":"bytes32"}],
 "outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"get%[1]sCount","stateMutability":"view",
 "inputs":[],"outputs":[{"name":"","type":"uint256"}]}`

// LedgerABI is the JSON ABI of the medicine hash-ledger contract
var LedgerABI = "[" + fmt.Sprintf(methodsTemplate, "Stock") + "," + fmt.Sprintf(methodsTemplate, "Removal") + "]"

// Contract is a parsed ledger contract at a known address
type Contract struct {
	Address common.Address
	ABI     abi.ABI
}

// NewContract parses the ledger ABI for the contract deployed at address
func NewContract(address string) (*Contract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}
	parsed, err := abi.JSON(strings.NewReader(LedgerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger ABI: %w", err)
	}
	return &Contract{Address: common.HexToAddress(address), ABI: parsed}, nil
}

// Pack encodes the calldata for a mutating ledger call
func (c *Contract) Pack(call ledger.Call) ([]byte, error) {
	args, err := CallArgs(call)
	if err != nil {
		return nil, err
	}
	data, err := c.ABI.Pack(call.Method(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", call.Method(), err)
	}
	return data, nil
}

// CallArgs converts a call into typed contract arguments: uint256 id, then bytes32 digest
// unless the call is a delete.
func CallArgs(call ledger.Call) ([]interface{}, error) {
	if call.ID <= 0 {
		return nil, fmt.Errorf("invalid ledger id %d", call.ID)
	}
	args := []interface{}{big.NewInt(call.ID)}
	if call.Op == ledger.OpDelete {
		return args, nil
	}
	digest, err := DigestBytes(call.Digest)
	if err != nil {
		return nil, err
	}
	return append(args, digest), nil
}

// DigestBytes decodes a 0x-prefixed hex digest into a bytes32 value
func DigestBytes(digest string) ([32]byte, error) {
	var out [32]byte
	raw, err := hexutil.Decode(digest)
	if err != nil {
		return out, fmt.Errorf("invalid digest %q: %w", digest, err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("invalid digest %q: want %d bytes, got %d", digest, len(out), len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// DigestHex encodes a bytes32 value the way digests are stored in the system of record
func DigestHex(b [32]byte) string {
	return hexutil.Encode(b[:])
}

// AddressString renders an address in the lowercased form used for signer linkage
func AddressString(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

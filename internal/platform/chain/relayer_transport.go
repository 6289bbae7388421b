package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/genluna-medchain/internal/domain/ledger"
)

// RelayerError is an error envelope returned by the managed transaction API
type RelayerError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RelayerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("relayer returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("relayer returned %d: %s", e.StatusCode, e.Message)
}

// ErrorCode exposes a numeric provider code, or 0 when the code is symbolic
func (e *RelayerError) ErrorCode() int {
	code, err := strconv.Atoi(e.Code)
	if err != nil {
		return 0
	}
	return code
}

// HTTPStatus returns the HTTP status of the failed request
func (e *RelayerError) HTTPStatus() int {
	return e.StatusCode
}

type relayerWriteRequest struct {
	FunctionName string   `json:"functionName"`
	Args         []string `json:"args"`
}

type relayerErrorEnvelope struct {
	Error struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// RelayerOption configures a RelayerTransport
type RelayerOption func(*RelayerTransport)

// WithRelayerHTTPClient sets a custom HTTP client
func WithRelayerHTTPClient(c *http.Client) RelayerOption {
	return func(t *RelayerTransport) {
		t.httpClient = c
	}
}

// RelayerTransport submits ledger calls through a managed transaction API that signs
// with a backend wallet matching the active signer address.
type RelayerTransport struct {
	baseURL    string
	apiKey     string
	chainID    int64
	contract   common.Address
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRelayerTransport creates the managed-SDK transport
func NewRelayerTransport(baseURL, apiKey string, chainID int64, contract common.Address, logger *slog.Logger, opts ...RelayerOption) *RelayerTransport {
	t := &RelayerTransport{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		chainID:  chainID,
		contract: contract,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With("transport", TransportRelayer),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name identifies the transport in attempts and metrics
func (t *RelayerTransport) Name() string {
	return TransportRelayer
}

// Submit calls the contract write endpoint and normalizes the returned hash
func (t *RelayerTransport) Submit(ctx context.Context, signer SignerContext, call ledger.Call) (*ledger.TxReceipt, error) {
	from, err := signer.Address()
	if err != nil {
		return nil, t.fail(call, err)
	}

	body := relayerWriteRequest{
		FunctionName: call.Method(),
		Args:         []string{strconv.FormatInt(call.ID, 10)},
	}
	if call.Op != ledger.OpDelete {
		body.Args = append(body.Args, call.Digest)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, ledger.NewError(ledger.ReasonMalformed, call, TransportRelayer, err)
	}

	url := fmt.Sprintf("%s/contract/%d/%s/write", t.baseURL, t.chainID, t.contract.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, ledger.NewError(ledger.ReasonMalformed, call, TransportRelayer, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-backend-wallet-address", from.Hex())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, t.fail(call, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, t.fail(call, fmt.Errorf("failed to read relayer response: %w", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, t.fail(call, decodeRelayerError(resp.StatusCode, raw))
	}

	var decoded map[string]any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.logger.Warn("Relayer returned a non-JSON success body", "method", call.Method(), "status", resp.StatusCode)
		}
	}

	hash := ExtractTxHash(decoded)
	if hash == "" {
		t.logger.Warn("Relayer success carried no transaction hash", "method", call.Method(), "record_id", call.ID)
		return nil, ledger.MissingReceipt(call, TransportRelayer)
	}
	return &ledger.TxReceipt{TxHash: hash, Transport: TransportRelayer}, nil
}

func (t *RelayerTransport) fail(call ledger.Call, err error) error {
	return ledger.NewError(Classify(err), call, TransportRelayer, err)
}

func decodeRelayerError(status int, raw []byte) *RelayerError {
	rerr := &RelayerError{StatusCode: status}
	var envelope relayerErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil {
		rerr.Message = envelope.Error.Message
		if rerr.Message == "" {
			rerr.Message = envelope.Message
		}
		switch code := envelope.Error.Code.(type) {
		case string:
			rerr.Code = code
		case float64:
			rerr.Code = strconv.FormatInt(int64(code), 10)
		}
	}
	if rerr.Message == "" {
		rerr.Message = strings.TrimSpace(string(raw))
	}
	if rerr.Message == "" {
		rerr.Message = http.StatusText(status)
	}
	return rerr
}

// receiptHashPaths are the locations a relayer response may carry the transaction hash in,
// in lookup order.
var receiptHashPaths = [][]string{
	{"transactionHash"},
	{"hash"},
	{"txHash"},
	{"receipt", "transactionHash"},
	{"result", "transactionHash"},
	{"result", "hash"},
	{"result", "txHash"},
	{"result", "receipt", "transactionHash"},
}

// ExtractTxHash finds a well-formed transaction hash in a decoded relayer response and
// returns it lowercased, or "" if none resolves.
func ExtractTxHash(body map[string]any) string {
	for _, path := range receiptHashPaths {
		if s, ok := lookupString(body, path); ok && isTxHash(s) {
			return strings.ToLower(s)
		}
	}
	return ""
}

func lookupString(body map[string]any, path []string) (string, bool) {
	var cur any = body
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur = m[key]
	}
	s, ok := cur.(string)
	return s, ok
}

func isTxHash(s string) bool {
	if len(s) != 2+2*common.HashLength {
		return false
	}
	if _, err := hexutil.Decode(s); err != nil {
		return false
	}
	return common.HexToHash(s) != (common.Hash{})
}

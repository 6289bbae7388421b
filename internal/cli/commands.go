package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/genluna-medchain/internal/domain/integrity"
	"github.com/genluna-medchain/internal/domain/journal"
	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/ledger_sync/components"
	ledgersync "github.com/genluna-medchain/internal/ledger_sync/service"
)

var errInvalidArgument = errors.New("invalid argument")

func newHashCmd(opts *RootOptions) *cobra.Command {
	var data string
	var filePath string
	cmd := &cobra.Command{
		Use:   "hash <kind>",
		Short: "Compute the ledger digest of a record without contacting any service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := record.ParseKind(args[0])
			if err != nil {
				return err
			}
			raw, err := readJSONInput("data", data, filePath)
			if err != nil {
				return err
			}
			rec, err := record.New(kind)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, rec); err != nil {
				return fmt.Errorf("%w: record is not valid JSON: %v", errInvalidArgument, err)
			}
			selector, err := record.SelectorFor(kind)
			if err != nil {
				return err
			}
			digest, err := components.NewHashCodec().Hash(rec, selector)
			if err != nil {
				return err
			}
			return writeHashResult(cmd, rec, digest, opts.JSONOutput)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "Record as inline JSON")
	cmd.Flags().StringVar(&filePath, "file", "", "Path to a JSON file holding the record")
	return cmd
}

func newVerifyCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <kind> <id>",
		Short: "Check the stored record against its ledger entry; exits 6 unless verified",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseKindAndID(args)
			if err != nil {
				return err
			}
			return withBackend(cmd, opts, func(ctx context.Context, b *Backend) error {
				report, err := b.Ledger.Verify(ctx, kind, id)
				if err != nil {
					return err
				}
				if err := writeVerifyResult(cmd, report, opts.JSONOutput); err != nil {
					return err
				}
				if !report.Verified() {
					return ExitError{
						Code:    ExitIntegrity,
						Kind:    KindIntegrity,
						Message: fmt.Sprintf("%s %d is %s", kind, id, report.Status),
					}
				}
				return nil
			})
		},
	}
}

func newInspectCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <kind> <id>",
		Short: "Show the full integrity report of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseKindAndID(args)
			if err != nil {
				return err
			}
			return withBackend(cmd, opts, func(ctx context.Context, b *Backend) error {
				report, err := b.Ledger.Verify(ctx, kind, id)
				if err != nil {
					return err
				}
				return writeInspectResult(cmd, report, opts.JSONOutput)
			})
		},
	}
}

func newReadCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read <kind> <id>",
		Short: "Read the ledger entry of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseKindAndID(args)
			if err != nil {
				return err
			}
			return withBackend(cmd, opts, func(ctx context.Context, b *Backend) error {
				entry, err := b.Ledger.Read(ctx, kind, id)
				if err != nil {
					return err
				}
				return writeReadResult(cmd, kind, id, entry, opts.JSONOutput)
			})
		},
	}
}

func newCountCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count <kind>",
		Short: "Count the ledger entries of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := record.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withBackend(cmd, opts, func(ctx context.Context, b *Backend) error {
				count := b.Ledger.Count(ctx, kind)
				out := cmd.OutOrStdout()
				if opts.JSONOutput {
					return encodeJSON(out, countOutput{RecordKind: string(kind), Count: count})
				}
				return writeKV(out, "Count", strconv.FormatUint(count, 10))
			})
		},
	}
}

func newResyncCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resync <kind> <id>",
		Short: "Record the digest of the record as currently stored",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseKindAndID(args)
			if err != nil {
				return err
			}
			return withBackend(cmd, opts, func(ctx context.Context, b *Backend) error {
				result, err := b.Sync.ResyncRecord(ctx, kind, id)
				if result != nil {
					if werr := writeSyncResult(cmd, result, opts.JSONOutput); werr != nil {
						return werr
					}
				}
				return err
			})
		},
	}
}

func newAttemptsCmd(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "attempts <kind> <id>",
		Short: "List journaled ledger attempts of a record, newest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseKindAndID(args)
			if err != nil {
				return err
			}
			if limit <= 0 {
				return fmt.Errorf("%w: --limit must be positive", errInvalidArgument)
			}
			return withBackend(cmd, opts, func(ctx context.Context, b *Backend) error {
				attempts, err := b.Sync.ListAttempts(ctx, kind, id, limit)
				if err != nil {
					return err
				}
				return writeAttemptsResult(cmd, attempts, opts.JSONOutput)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of attempts to list")
	return cmd
}

// withBackend connects for the duration of fn, bounded by --timeout
func newMigrateCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending sync journal migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := opts.migrate(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.JSONOutput {
				return encodeJSON(out, migrateOutput{SchemaVersion: version})
			}
			return writeKV(out, "Schema version", strconv.FormatUint(uint64(version), 10))
		},
	}
}

func withBackend(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, b *Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	b, err := opts.connect(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}

func parseKindAndID(args []string) (record.Kind, int64, error) {
	kind, err := record.ParseKind(args[0])
	if err != nil {
		return "", 0, err
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("%w: record id %q must be a positive integer", errInvalidArgument, args[1])
	}
	return kind, id, nil
}

func readJSONInput(label, inline, filePath string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	filePath = strings.TrimSpace(filePath)
	if inline != "" && filePath != "" {
		return nil, fmt.Errorf("%w: use either --%s or --file, not both", errInvalidArgument, label)
	}
	if inline == "" && filePath == "" {
		return nil, fmt.Errorf("%w: %s is required (use --%s or --file)", errInvalidArgument, label, label)
	}
	if inline != "" {
		return []byte(inline), nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read %s file: %w", label, err)
	}
	return data, nil
}

type hashOutput struct {
	RecordKind string `json:"record_kind"`
	RecordID   int64  `json:"record_id"`
	DataHash   string `json:"data_hash"`
}

type entryOutput struct {
	RecordKind  string `json:"record_kind"`
	RecordID    int64  `json:"record_id"`
	Exists      bool   `json:"exists"`
	DataHash    string `json:"data_hash,omitempty"`
	SubmittedBy string `json:"submitted_by,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type countOutput struct {
	RecordKind string `json:"record_kind"`
	Count      uint64 `json:"count"`
}

type migrateOutput struct {
	SchemaVersion uint `json:"schema_version"`
}

func writeHashResult(cmd *cobra.Command, rec record.Record, digest string, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		return encodeJSON(out, hashOutput{RecordKind: string(rec.Kind()), RecordID: rec.LedgerID(), DataHash: digest})
	}
	_, err := fmt.Fprintln(out, digest)
	return err
}

func writeVerifyResult(cmd *cobra.Command, report *integrity.Report, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		return encodeJSON(out, struct {
			RecordKind string `json:"record_kind"`
			RecordID   int64  `json:"record_id"`
			Verified   bool   `json:"verified"`
			Status     string `json:"status"`
		}{string(report.RecordKind), report.RecordID, report.Verified(), string(report.Status)})
	}
	return writeKV(out, "Status", string(report.Status))
}

func writeInspectResult(cmd *cobra.Command, report *integrity.Report, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		return encodeJSON(out, report)
	}
	rows := [][2]string{
		{"Record", fmt.Sprintf("%s %d", report.RecordKind, report.RecordID)},
		{"Status", string(report.Status)},
		{"Computed Digest", report.ComputedDigest},
		{"Ledger Digest", orDash(report.LedgerDigest)},
		{"Claimed Digest", orDash(report.ClaimedDigest)},
		{"Submitted By", orDash(report.SubmittedBy)},
	}
	if report.LedgerTimestamp != nil {
		rows = append(rows, [2]string{"Ledger Timestamp", report.LedgerTimestamp.UTC().Format(time.RFC3339)})
	}
	rows = append(rows, [2]string{"Checked At", report.CheckedAt.UTC().Format(time.RFC3339)})
	return writeRows(out, rows)
}

func writeReadResult(cmd *cobra.Command, kind record.Kind, id int64, entry *ledger.Entry, asJSON bool) error {
	payload := entryOutput{RecordKind: string(kind), RecordID: id}
	if entry != nil && entry.Exists {
		payload.Exists = true
		payload.DataHash = entry.DataHash
		payload.SubmittedBy = entry.SubmittedBy
		if !entry.Timestamp.IsZero() {
			payload.Timestamp = entry.Timestamp.UTC().Format(time.RFC3339)
		}
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return encodeJSON(out, payload)
	}
	if !payload.Exists {
		return writeKV(out, "Exists", "false")
	}
	return writeRows(out, [][2]string{
		{"Exists", "true"},
		{"Data Hash", payload.DataHash},
		{"Submitted By", payload.SubmittedBy},
		{"Timestamp", orDash(payload.Timestamp)},
	})
}

func writeSyncResult(cmd *cobra.Command, result *ledgersync.SyncResult, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		return encodeJSON(out, result)
	}
	rows := [][2]string{
		{"Success", strconv.FormatBool(result.Success)},
		{"Outcome", result.Outcome.Code},
		{"Message", result.Message},
		{"Data Hash", orDash(result.Digest)},
		{"Attempts", strconv.Itoa(result.Attempts)},
	}
	if result.Receipt != nil {
		rows = append(rows,
			[2]string{"Tx Hash", result.Receipt.TxHash},
			[2]string{"Transport", result.Receipt.Transport},
		)
	}
	return writeRows(out, rows)
}

func writeAttemptsResult(cmd *cobra.Command, attempts []*journal.AttemptRecord, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		if attempts == nil {
			attempts = []*journal.AttemptRecord{}
		}
		return encodeJSON(out, attempts)
	}
	if len(attempts) == 0 {
		_, err := fmt.Fprintln(out, "No attempts recorded")
		return err
	}
	for _, a := range attempts {
		result := a.TxHash
		if !a.Succeeded() {
			result = fmt.Sprintf("%s (%s)", a.ErrorClass, a.ErrorReason)
		}
		if _, err := fmt.Fprintf(out, "%s  #%d  %-7s %-8s %s\n",
			a.CreatedAt.UTC().Format(time.RFC3339), a.Attempt, a.Operation, a.Transport, result); err != nil {
			return err
		}
	}
	return nil
}

func writeRows(out io.Writer, rows [][2]string) error {
	for _, row := range rows {
		if err := writeKV(out, row[0], row[1]); err != nil {
			return err
		}
	}
	return nil
}

func writeKV(out io.Writer, key, value string) error {
	_, err := fmt.Fprintf(out, "%s: %s\n", key, value)
	return err
}

func encodeJSON(out io.Writer, payload interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

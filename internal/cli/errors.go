package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/ledger_sync/components"
	ledgersync "github.com/genluna-medchain/internal/ledger_sync/service"
	"github.com/genluna-medchain/internal/platform/sor"
)

type ErrorKind string

const (
	KindInternal   ErrorKind = "internal"
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindLedger     ErrorKind = "ledger"
	KindIntegrity  ErrorKind = "integrity"
)

const (
	ExitInternal  = 1
	ExitInvalid   = 2
	ExitNotFound  = 3
	ExitConflict  = 4
	ExitLedger    = 5
	ExitIntegrity = 6
)

type ExitError struct {
	Code    int
	Kind    ErrorKind
	Message string
	Advice  string
	Err     error
}

func (e ExitError) Error() string {
	return errorMessage(e)
}

func (e ExitError) Unwrap() error {
	return e.Err
}

func NormalizeError(err error) ExitError {
	if err == nil {
		return ExitError{Code: 0}
	}
	var exitErr ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Code == 0 {
			exitErr.Code = ExitInternal
		}
		return exitErr
	}

	var lerr *ledger.Error
	var statusErr *sor.StatusError
	switch {
	case errors.Is(err, record.ErrRecordNotFound{}):
		return ExitError{Code: ExitNotFound, Kind: KindNotFound, Err: err}
	case errors.Is(err, ledgersync.ErrSyncInProgress{}):
		return ExitError{Code: ExitConflict, Kind: KindConflict, Err: err}
	case errors.Is(err, record.EncodingError{}),
		errors.Is(err, record.ErrUnknownKind),
		errors.Is(err, errInvalidArgument),
		errors.Is(err, components.ErrProcessLocalLedger):
		return ExitError{Code: ExitInvalid, Kind: KindValidation, Err: err}
	case errors.As(err, &lerr):
		outcome := ledger.Guidance(err)
		return ExitError{
			Code:    ExitLedger,
			Kind:    KindLedger,
			Message: fmt.Sprintf("%s: %s", outcome.Code, outcome.Message),
			Advice:  string(outcome.Advice),
			Err:     err,
		}
	case errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500:
		return ExitError{Code: ExitInvalid, Kind: KindValidation, Err: err}
	default:
		return ExitError{Code: ExitInternal, Kind: KindInternal, Err: err}
	}
}

func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return NormalizeError(err).Code
}

func writeCLIError(w io.Writer, exitErr ExitError, asJSON bool) error {
	if exitErr.Code == 0 {
		return nil
	}
	message := errorMessage(exitErr)
	if asJSON {
		payload := struct {
			Code    int    `json:"code"`
			Kind    string `json:"kind"`
			Message string `json:"message"`
			Advice  string `json:"advice,omitempty"`
		}{
			Code:    exitErr.Code,
			Kind:    string(exitErr.Kind),
			Message: message,
			Advice:  exitErr.Advice,
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	}

	prefix := "Error"
	if exitErr.Kind != "" {
		prefix = fmt.Sprintf("Error (%s)", exitErr.Kind)
	}
	if _, err := fmt.Fprintf(w, "%s: %s\n", prefix, message); err != nil {
		return err
	}
	if exitErr.Advice != "" && exitErr.Advice != string(ledger.AdviceNone) {
		_, err := fmt.Fprintf(w, "Advice: %s\n", exitErr.Advice)
		return err
	}
	return nil
}

func errorMessage(exitErr ExitError) string {
	if exitErr.Message != "" {
		return exitErr.Message
	}
	if exitErr.Err != nil {
		return exitErr.Err.Error()
	}
	return "unknown error"
}

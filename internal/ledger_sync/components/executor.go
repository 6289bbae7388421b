package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/ledger_sync/service"
	"github.com/genluna-medchain/internal/logger"
	"github.com/genluna-medchain/internal/metrics"
	"github.com/genluna-medchain/internal/platform/chain"
)

// RetryPolicy bounds the executor's attempts
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// TransactionExecutorImpl submits a call through the primary transport, falling back to the
// secondary transport inside the same attempt, and retries whole attempts on transient
// failures.
//
// Per attempt: success returns immediately; user cancellation and AlreadyExists end the run
// without trying the fallback; permanent failures end the run after the fallback try;
// transient and missing-receipt failures are retried after Backoff until MaxAttempts.
type TransactionExecutorImpl struct {
	primary  service.LedgerTransport
	fallback service.LedgerTransport
	recorder service.AttemptRecorder
	policy   RetryPolicy
	logger   *slog.Logger

	wait func(ctx context.Context, d time.Duration) error
	now  func() time.Time
}

// NewTransactionExecutor creates an executor. fallback and recorder may be nil.
func NewTransactionExecutor(
	primary service.LedgerTransport,
	fallback service.LedgerTransport,
	recorder service.AttemptRecorder,
	policy RetryPolicy,
	logger *slog.Logger,
) *TransactionExecutorImpl {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &TransactionExecutorImpl{
		primary:  primary,
		fallback: fallback,
		recorder: recorder,
		policy:   policy,
		logger:   logger,
		wait:     sleepContext,
		now:      time.Now,
	}
}

// Run executes call and returns every attempt made, whether or not it succeeded.
// A non-retryable failure ends the run on whichever attempt it occurs, not only the first.
func (e *TransactionExecutorImpl) Run(ctx context.Context, signer chain.SignerContext, call ledger.Call) (*ledger.Execution, error) {
	exec := &ledger.Execution{Call: call}
	log := logger.FromContext(ctx, e.logger).With(
		"method", call.Method(),
		"record_kind", string(call.Kind),
		"record_id", call.ID,
	)

	if !call.Op.Mutating() {
		return exec, ledger.NewError(ledger.ReasonMalformed, call, "", fmt.Errorf("operation %q does not submit a transaction", call.Op))
	}

	for n := 1; ; n++ {
		attempt := e.attempt(ctx, log, signer, call, n)
		exec.Attempts = append(exec.Attempts, attempt)
		e.record(ctx, call, attempt)

		if attempt.Succeeded() {
			exec.Receipt = attempt.Receipt
			log.Info("Ledger transaction confirmed",
				"attempt", n,
				"transport", attempt.Transport,
				"tx_hash", attempt.Receipt.TxHash,
			)
			return exec, nil
		}

		if !attempt.Retryable || n >= e.policy.MaxAttempts {
			log.Error("Ledger transaction failed",
				"attempt", n,
				"transport", attempt.Transport,
				"reason", string(attempt.Reason),
				"error", attempt.Err,
			)
			return exec, terminalError(call, attempt, n)
		}

		log.Warn("Ledger transaction failed, retrying",
			"attempt", n,
			"max_attempts", e.policy.MaxAttempts,
			"reason", string(attempt.Reason),
			"backoff", e.policy.Backoff.String(),
			"error", attempt.Err,
		)
		if err := e.wait(ctx, e.policy.Backoff); err != nil {
			lerr := ledger.NewError(chain.Classify(err), call, attempt.Transport, fmt.Errorf("retry aborted: %w", err))
			lerr.Attempts = n
			return exec, lerr
		}
	}
}

func (e *TransactionExecutorImpl) attempt(ctx context.Context, log *slog.Logger, signer chain.SignerContext, call ledger.Call, n int) ledger.Attempt {
	start := e.now()
	a := ledger.Attempt{Number: n, Transport: e.primary.Name(), StartedAt: start}

	receipt, err := submit(ctx, e.primary, signer, call)
	if err == nil {
		a.Receipt = receipt
		a.Duration = e.now().Sub(start)
		return a
	}

	reason := chain.Classify(err)
	if class := reason.Class(); e.fallback != nil && class != ledger.ClassUserCancelled && class != ledger.ClassAlreadyExists {
		log.Warn("Primary ledger transport failed, trying fallback",
			"attempt", n,
			"primary", e.primary.Name(),
			"fallback", e.fallback.Name(),
			"reason", string(reason),
			"error", err,
		)
		a.FallbackUsed = true
		a.Transport = e.fallback.Name()
		receipt, err = submit(ctx, e.fallback, signer, call)
		if err == nil {
			a.Receipt = receipt
			a.Duration = e.now().Sub(start)
			return a
		}
		reason = chain.Classify(err)
	}

	a.Err = err
	a.Reason = reason
	a.Retryable = reason.Class().Retryable()
	a.Duration = e.now().Sub(start)
	return a
}

// submit treats a success without a transaction hash as a missing receipt
func submit(ctx context.Context, t service.LedgerTransport, signer chain.SignerContext, call ledger.Call) (*ledger.TxReceipt, error) {
	receipt, err := t.Submit(ctx, signer, call)
	if err != nil {
		return nil, err
	}
	if receipt == nil || receipt.TxHash == "" {
		return nil, ledger.MissingReceipt(call, t.Name())
	}
	if receipt.Transport == "" {
		receipt.Transport = t.Name()
	}
	return receipt, nil
}

func (e *TransactionExecutorImpl) record(ctx context.Context, call ledger.Call, a ledger.Attempt) {
	class := ""
	if a.Err != nil {
		class = string(a.Reason.Class())
	}
	metrics.RecordAttempt(string(call.Op), a.Transport, class, a.Duration.Seconds())
	if e.recorder != nil {
		e.recorder.RecordAttempt(ctx, call, a)
	}
}

func terminalError(call ledger.Call, a ledger.Attempt, attempts int) error {
	var lerr *ledger.Error
	if errors.As(a.Err, &lerr) {
		out := *lerr
		out.Attempts = attempts
		if out.Transport == "" {
			out.Transport = a.Transport
		}
		if out.Method == "" {
			out.Op = call.Op
			out.Method = call.Method()
		}
		return &out
	}
	out := ledger.NewError(a.Reason, call, a.Transport, a.Err)
	out.Attempts = attempts
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

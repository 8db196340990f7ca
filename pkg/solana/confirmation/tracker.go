// Package confirmation polls the ledger until a submitted transaction lands.
package confirmation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-boost/pkg/metrics"
	"github.com/code-payments/code-boost/pkg/solana"
)

const (
	DefaultPollInterval = 2 * time.Second

	metricsStructName         = "confirmation.Tracker"
	confirmationLatencyMetric = "Solana/ConfirmationLatency"
	confirmationOutcomeEvent  = "SolanaConfirmationOutcome"
)

// ErrTimedOut indicates the transaction did not reach the required
// commitment in time. Its outcome is unknown: it may still land.
var ErrTimedOut = errors.New("timed out waiting for confirmation")

type State uint8

const (
	StatePending State = iota
	StateConfirmed
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// Outcome is the final observation of a tracked transaction.
type Outcome struct {
	Signature solana.Signature
	State     State
	Slot      uint64

	// Err is the on-chain error for a failed transaction.
	Err *solana.TransactionError

	Polls   int
	Elapsed time.Duration
}

// Tracker polls signature statuses.
type Tracker struct {
	log          *logrus.Entry
	client       solana.Client
	commitment   solana.Commitment
	pollInterval time.Duration
}

type Option func(*Tracker)

// WithCommitment sets the commitment a status must reach to be final.
func WithCommitment(commitment solana.Commitment) Option {
	return func(t *Tracker) {
		t.commitment = commitment
	}
}

// WithPollInterval sets the delay between status queries.
func WithPollInterval(interval time.Duration) Option {
	return func(t *Tracker) {
		if interval > 0 {
			t.pollInterval = interval
		}
	}
}

func NewTracker(client solana.Client, opts ...Option) *Tracker {
	t := &Tracker{
		log:          logrus.StandardLogger().WithField("type", "solana/confirmation"),
		client:       client,
		commitment:   solana.CommitmentConfirmed,
		pollInterval: DefaultPollInterval,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Confirm waits for sig to reach the tracker's commitment.
//
// It returns (true, nil) if the transaction landed without error, (false, nil)
// if it landed with an on-chain error, ErrTimedOut if timeout elapsed first,
// and ctx.Err() if ctx is done first.
func (t *Tracker) Confirm(ctx context.Context, sig solana.Signature, timeout time.Duration) (bool, error) {
	outcome, err := t.Track(ctx, sig, timeout)
	if err != nil {
		return false, err
	}
	return outcome.State == StateConfirmed, nil
}

// Track is Confirm, but returns the full outcome. On ErrTimedOut the returned
// outcome is still populated with State TimedOut.
func (t *Tracker) Track(ctx context.Context, sig solana.Signature, timeout time.Duration) (*Outcome, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Track")
	defer tracer.End()

	log := t.log.WithField("signature", sig.String())

	start := time.Now()
	outcome := &Outcome{
		Signature: sig,
		State:     StatePending,
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		outcome.Polls++

		status, err := t.client.GetSignatureStatus(ctx, sig)
		switch {
		case err == nil:
			outcome.Slot = status.Slot
			if status.Reached(t.commitment) {
				outcome.Elapsed = time.Since(start)
				if status.ErrorResult != nil {
					outcome.State = StateFailed
					outcome.Err = status.ErrorResult
					log.WithError(status.ErrorResult).Info("transaction failed")
				} else {
					outcome.State = StateConfirmed
					log.Debug("transaction confirmed")
				}

				t.record(ctx, outcome)
				tracer.AddAttribute("state", outcome.State.String())
				return outcome, nil
			}
		case errors.Is(err, solana.ErrSignatureNotFound):
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			log.WithError(err).Warn("failed to get signature status")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			outcome.State = StateTimedOut
			outcome.Elapsed = time.Since(start)
			log.WithField("polls", outcome.Polls).Info("timed out waiting for confirmation")

			t.record(ctx, outcome)
			tracer.OnError(ErrTimedOut)
			return outcome, ErrTimedOut
		case <-time.After(t.pollInterval):
		}
	}
}

func (t *Tracker) record(ctx context.Context, outcome *Outcome) {
	metrics.RecordDuration(ctx, confirmationLatencyMetric, outcome.Elapsed)
	metrics.RecordEvent(ctx, confirmationOutcomeEvent, map[string]interface{}{
		"signature": outcome.Signature.String(),
		"state":     outcome.State,
		"polls":     outcome.Polls,
	})
}

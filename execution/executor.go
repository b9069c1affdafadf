// Package execution drives an order through its lifecycle against a
// broker: submit, retry transport failures with backoff under the same
// deal reference, and emit exactly one terminal result per order.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/realKyawSwar/igfx-bot-timescale-update/broker"
	"github.com/sirupsen/logrus"
)

// State is one node of the order lifecycle.
type State int

const (
	StatePending State = iota
	StateSubmitted
	StateFilled
	StateRejected
	StateCancelled
	StateError
)

var stateNames = map[State]string{
	StatePending:   "PENDING",
	StateSubmitted: "SUBMITTED",
	StateFilled:    "FILLED",
	StateRejected:  "REJECTED",
	StateCancelled: "CANCELLED",
	StateError:     "ERROR",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition can occur.
func (s State) Terminal() bool {
	switch s {
	case StateFilled, StateRejected, StateCancelled:
		return true
	}
	return false
}

// Config bounds the retry loop.
type Config struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	AttemptTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BackoffBase:    time.Second,
		BackoffCap:     8 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// Outcome is the terminal record of one Execute call.
type Outcome struct {
	Request  broker.OrderRequest
	Result   broker.OrderResult
	State    State
	Attempts int
	Err      error
}

// TerminalFunc receives each terminal order result exactly once.
// The risk manager's apply-fill hangs off this hook.
type TerminalFunc func(req broker.OrderRequest, res broker.OrderResult)

// Executor is safe for concurrent use; each Execute call owns its own
// lifecycle, and Shutdown waits for all in-flight calls.
type Executor struct {
	broker broker.Broker
	cfg    Config
	log    *logrus.Logger

	mu         sync.Mutex
	onTerminal []TerminalFunc
	wg         sync.WaitGroup
}

func NewExecutor(b broker.Broker, cfg Config, log *logrus.Logger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultConfig().BackoffBase
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		cfg.BackoffCap = DefaultConfig().BackoffCap
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultConfig().AttemptTimeout
	}
	if log == nil {
		log = logrus.New()
	}
	return &Executor{broker: b, cfg: cfg, log: log}
}

// OnTerminal registers a hook invoked once per terminal order result.
func (e *Executor) OnTerminal(fn TerminalFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTerminal = append(e.onTerminal, fn)
}

// Execute submits the order and blocks until it reaches a terminal
// state. Transport failures are retried with exponential backoff, always
// reusing the request's deal reference so a lost reply cannot double a
// fill. Business rejections are terminal on the first answer. A
// cancelled context terminalizes the order as CANCELLED.
func (e *Executor) Execute(ctx context.Context, req broker.OrderRequest) Outcome {
	e.wg.Add(1)
	defer e.wg.Done()

	state := StatePending
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return e.terminal(req, broker.OrderResult{
				Reference: req.Reference,
				Status:    broker.StatusCancelled,
				Detail:    err.Error(),
				Closing:   req.Closing,
			}, StateCancelled, attempt-1, err)
		}

		e.transition(req, state, StateSubmitted, attempt)
		state = StateSubmitted

		actx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
		res, err := e.broker.SubmitOrder(actx, req)
		cancel()

		if err == nil && res.Status == broker.StatusAccepted {
			// The venue took the order but did not confirm a fill.
			// Resubmitting under the same reference resolves against
			// the existing deal, so treat it like a lost reply.
			err = fmt.Errorf("submit %s: accepted without fill confirmation", req.Reference)
		}
		if err == nil {
			switch res.Status {
			case broker.StatusFilled:
				return e.terminal(req, res, StateFilled, attempt, nil)
			case broker.StatusCancelled:
				return e.terminal(req, res, StateCancelled, attempt, nil)
			default:
				return e.terminal(req, res, StateRejected, attempt, nil)
			}
		}

		if broker.IsRejected(err) {
			return e.terminal(req, res, StateRejected, attempt, err)
		}

		// Transport failure or attempt timeout: ERROR, then retry.
		lastErr = err
		e.transition(req, state, StateError, attempt)
		state = StateError

		if attempt == e.cfg.MaxAttempts {
			break
		}
		select {
		case <-time.After(e.backoff(attempt)):
		case <-ctx.Done():
			return e.terminal(req, broker.OrderResult{
				Reference: req.Reference,
				Status:    broker.StatusCancelled,
				Detail:    ctx.Err().Error(),
				Closing:   req.Closing,
			}, StateCancelled, attempt, ctx.Err())
		}
	}

	// Retries exhausted: terminalize as REJECTED and surface the cause.
	return e.terminal(req, broker.OrderResult{
		Reference: req.Reference,
		Status:    broker.StatusRejected,
		Detail:    fmt.Sprintf("retries exhausted after %d attempts: %v", e.cfg.MaxAttempts, lastErr),
		Closing:   req.Closing,
	}, StateRejected, e.cfg.MaxAttempts, lastErr)
}

// Shutdown blocks until in-flight orders reach a terminal state, or the
// grace period elapses.
func (e *Executor) Shutdown(grace time.Duration) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(grace):
		return fmt.Errorf("execution: in-flight orders still pending after %s", grace)
	}
}

func (e *Executor) backoff(attempt int) time.Duration {
	d := e.cfg.BackoffBase << (attempt - 1)
	if d > e.cfg.BackoffCap {
		d = e.cfg.BackoffCap
	}
	return d
}

func (e *Executor) transition(req broker.OrderRequest, from, to State, attempt int) {
	e.log.WithFields(logrus.Fields{
		"reference": req.Reference,
		"from":      from.String(),
		"to":        to.String(),
		"attempt":   attempt,
	}).Debug("order transition")
}

func (e *Executor) terminal(req broker.OrderRequest, res broker.OrderResult, st State, attempts int, err error) Outcome {
	e.log.WithFields(logrus.Fields{
		"reference": req.Reference,
		"state":     st.String(),
		"attempts":  attempts,
		"detail":    res.Detail,
	}).Info("order terminal")

	e.mu.Lock()
	hooks := make([]TerminalFunc, len(e.onTerminal))
	copy(hooks, e.onTerminal)
	e.mu.Unlock()
	for _, fn := range hooks {
		fn(req, res)
	}

	return Outcome{Request: req, Result: res, State: st, Attempts: attempts, Err: err}
}

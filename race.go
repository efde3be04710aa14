package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// OrderOutcome is the resolved result of the order-placement race.
type OrderOutcome int

const (
	// OrderUnconfirmed: the submit went out but neither a confirmation nor
	// an error signal arrived before the poll horizon. Soft outcome: the
	// order may still have been accepted.
	OrderUnconfirmed OrderOutcome = iota
	OrderConfirmedSuccess
	OrderConfirmedFailure
)

func (o OrderOutcome) String() string {
	switch o {
	case OrderConfirmedSuccess:
		return "confirmed_success"
	case OrderConfirmedFailure:
		return "confirmed_failure"
	default:
		return "unconfirmed"
	}
}

// OrderResult carries the race outcome plus, on confirmed failure, the
// detected error text. SubmitErr is set when the race ends unconfirmed and
// the submit action itself had failed: the unconfirmed leniency only holds
// for a click that actually went out.
type OrderResult struct {
	Outcome   OrderOutcome
	Message   string
	Signal    *ErrorSignal
	SubmitErr error
}

// OrderRace runs the order-submission click concurrently with a bounded
// error-detection poll. The page gives no synchronous decline signal; the
// only reliable one is a delayed DOM mutation, so the poller watches a
// fixed selector set for error keywords on a fixed interval with a hard
// check-count horizon.
type OrderRace struct {
	session      Session
	log          zerolog.Logger
	errorSels    []string
	confirmSels  []string
	pollInterval time.Duration
	maxChecks    int
}

func NewOrderRace(session Session, log zerolog.Logger, errorSels, confirmSels []string, pollInterval time.Duration, maxChecks int) *OrderRace {
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}
	if maxChecks <= 0 {
		maxChecks = 50
	}
	return &OrderRace{
		session:      session,
		log:          log,
		errorSels:    errorSels,
		confirmSels:  confirmSels,
		pollInterval: pollInterval,
		maxChecks:    maxChecks,
	}
}

// Run starts submit without waiting for its navigation to settle and races
// it against the error poller. A confirmed failure from the poller always
// overrides a bare submit completion: the site may accept the click and
// still reject the order asynchronously. The race terminates within
// maxChecks polls even when no definitive signal ever arrives.
func (r *OrderRace) Run(ctx context.Context, submit func() error) OrderResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	submitDone := make(chan error, 1)
	go func() {
		submitDone <- submit()
	}()

	pollDone := make(chan OrderResult, 1)
	go func() {
		pollDone <- r.poll(ctx)
	}()

	var submitErr error
	submitFinished := false

	for {
		select {
		case err := <-submitDone:
			// Bare completion of the click is not definitive; keep the
			// poller running for the decline-after-accept pattern.
			submitErr = err
			submitFinished = true
			submitDone = nil
			if err != nil {
				r.log.Warn().Err(err).Msg("order submit action returned an error, awaiting poller verdict")
			}
		case res := <-pollDone:
			if res.Outcome == OrderUnconfirmed && submitFinished {
				if submitErr != nil {
					res.SubmitErr = submitErr
				} else {
					res.Message = "order submitted, no confirmation observed before poll horizon"
				}
			}
			return res
		case <-ctx.Done():
			return OrderResult{Outcome: OrderUnconfirmed, Message: "canceled before a definitive signal"}
		}
	}
}

// poll scans the confirmation and error selector sets once per interval.
// First definitive signal wins; horizon exhaustion reports unconfirmed.
func (r *OrderRace) poll(ctx context.Context) OrderResult {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for check := 1; check <= r.maxChecks; check++ {
		select {
		case <-ctx.Done():
			return OrderResult{Outcome: OrderUnconfirmed, Message: "poll canceled"}
		case <-ticker.C:
		}

		if sig := r.scanErrors(check); sig != nil {
			r.log.Warn().Str("text", sig.Text).Str("category", sig.Category).Int("check", check).
				Msg("error signal detected after order submission")
			return OrderResult{Outcome: OrderConfirmedFailure, Message: sig.Text, Signal: sig}
		}

		for _, sel := range r.confirmSels {
			if r.session.Exists(sel) {
				r.log.Info().Str("selector", sel).Int("check", check).Msg("order confirmation visible")
				return OrderResult{Outcome: OrderConfirmedSuccess, Message: "order confirmed"}
			}
		}
	}

	return OrderResult{Outcome: OrderUnconfirmed}
}

// scanErrors looks for visible error-indicating text containing one of the
// fixed keywords. Lookup faults are ignored: an unreachable selector is
// simply not a signal.
func (r *OrderRace) scanErrors(check int) *ErrorSignal {
	for _, sel := range r.errorSels {
		if !r.session.Exists(sel) {
			continue
		}
		el, err := r.session.Locate(sel, r.pollInterval)
		if err != nil {
			continue
		}
		text, err := el.Text()
		if err != nil || text == "" {
			continue
		}
		if cat := classifyErrorText(text); cat != "" {
			return &ErrorSignal{Text: text, Category: cat, Elapsed: check}
		}
	}
	return nil
}

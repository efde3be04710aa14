package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// StageName identifies one step of the checkout funnel.
type StageName string

const (
	StageStart             StageName = "Start"
	StageAgeVerification   StageName = "AgeVerification"
	StageAvailability      StageName = "AvailabilityAndShipSelect"
	StageAddToCart         StageName = "AddToCart"
	StageCartToCheckout    StageName = "CartToCheckout"
	StageContactInfo       StageName = "ContactInfo"
	StageShippingInfo      StageName = "ShippingInfo"
	StageAddressValidation StageName = "AddressValidation"
	StagePayment           StageName = "Payment"
	StagePlaceOrder        StageName = "PlaceOrder"
)

// Strategy is one candidate way to perform a stage's action. Strategies are
// tried in declared order; an attempt returning a Transient-wrapped error
// yields to the next strategy, any other error fails the stage outright.
type Strategy struct {
	Name    string
	Attempt func() error
}

// Stage is one named funnel step: markup that must be present before
// acting, an ordered action list, and markup that must appear afterwards.
type Stage struct {
	Name          StageName
	Precondition  string // selector; empty means "act immediately"
	Strategies    []Strategy
	Postcondition string // selector; empty means "no settle check"
	Timeout       time.Duration
	// Optional stages whose precondition never shows are skipped, not
	// failed. Many valid addresses never trigger a validation prompt.
	Optional bool
}

// StageStatus is the terminal disposition of one executed stage.
type StageStatus int

const (
	StageSucceeded StageStatus = iota
	StageSkipped
	StageFailed
)

// StageOutcome reports how a stage ended and, on success, which strategy
// carried it.
type StageOutcome struct {
	Status   StageStatus
	Strategy string
	Err      *StageError
}

// StageExecutor runs single stages against a session. It owns the
// inter-field pacing delay that form-fill strategies use to absorb
// client-side validation debounce on the target page.
type StageExecutor struct {
	session   Session
	log       zerolog.Logger
	fillPause time.Duration
}

func NewStageExecutor(session Session, log zerolog.Logger, fillPause time.Duration) *StageExecutor {
	return &StageExecutor{session: session, log: log, fillPause: fillPause}
}

// Run executes one stage: precondition wait, ordered strategy trial,
// postcondition wait. Strategy trial is deterministic and exhaustive;
// once a strategy succeeds, the rest are never attempted.
func (x *StageExecutor) Run(stage Stage) StageOutcome {
	log := x.log.With().Str("stage", string(stage.Name)).Logger()

	if stage.Precondition != "" {
		if err := x.session.WaitVisible(stage.Precondition, stage.Timeout); err != nil {
			if stage.Optional {
				log.Info().Str("precondition", stage.Precondition).Msg("optional stage absent, skipping")
				return StageOutcome{Status: StageSkipped}
			}
			return StageOutcome{Status: StageFailed, Err: &StageError{
				Stage: stage.Name,
				Kind:  FailPrecondition,
				Err:   fmt.Errorf("precondition %q not visible within %s: %w", stage.Precondition, stage.Timeout, err),
			}}
		}
	}

	var lastErr error
	succeeded := ""
	for _, strat := range stage.Strategies {
		err := strat.Attempt()
		if err == nil {
			succeeded = strat.Name
			break
		}
		if isTransient(err) {
			log.Debug().Str("strategy", strat.Name).Err(err).Msg("strategy raised transient fault, trying next")
			lastErr = err
			continue
		}
		// Hard fault: do not try further strategies. Strategies that
		// already classified their failure keep their kind.
		var se *StageError
		if errors.As(err, &se) {
			return StageOutcome{Status: StageFailed, Err: se}
		}
		return StageOutcome{Status: StageFailed, Err: &StageError{
			Stage: stage.Name,
			Kind:  FailAction,
			Err:   fmt.Errorf("strategy %q: %w", strat.Name, err),
		}}
	}

	if succeeded == "" && len(stage.Strategies) > 0 {
		return StageOutcome{Status: StageFailed, Err: &StageError{
			Stage: stage.Name,
			Kind:  FailAction,
			Err:   fmt.Errorf("all %d strategies exhausted: %w", len(stage.Strategies), lastErr),
		}}
	}

	if stage.Postcondition != "" {
		if err := x.session.WaitVisible(stage.Postcondition, stage.Timeout); err != nil {
			return StageOutcome{Status: StageFailed, Err: &StageError{
				Stage: stage.Name,
				Kind:  FailPostcondition,
				Err:   fmt.Errorf("postcondition %q not visible within %s: %w", stage.Postcondition, stage.Timeout, err),
			}}
		}
	}

	log.Info().Str("strategy", succeeded).Msg("stage succeeded")
	return StageOutcome{Status: StageSucceeded, Strategy: succeeded}
}

// fill enters text into el and pauses so the page's per-field validation
// timers fire before the next field is touched.
func (x *StageExecutor) fill(el Element, text string) error {
	if err := el.Fill(text); err != nil {
		return err
	}
	time.Sleep(x.fillPause)
	return nil
}

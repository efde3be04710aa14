package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestRace(session Session, maxChecks int) *OrderRace {
	return NewOrderRace(session, zerolog.Nop(),
		[]string{".error-message"}, []string{".order-confirmation"},
		2*time.Millisecond, maxChecks)
}

func TestOrderRaceErrorSignalOverridesSubmit(t *testing.T) {
	session := newFakeSession()
	session.addElement(".error-message", &fakeElement{visible: true, text: "Your card was declined"})
	// The indicator surfaces on the third poll cycle, after submit has
	// already returned cleanly.
	session.appearAfter[".error-message"] = 2

	race := newTestRace(session, 50)
	res := race.Run(context.Background(), func() error { return nil })

	if res.Outcome != OrderConfirmedFailure {
		t.Fatalf("outcome = %v, want confirmed failure", res.Outcome)
	}
	if res.Message != "Your card was declined" {
		t.Errorf("message = %q, want the detected page text", res.Message)
	}
	if res.Signal == nil || res.Signal.Category != "declined" {
		t.Errorf("signal = %+v, want category declined", res.Signal)
	}
	if res.Signal.Elapsed != 3 {
		t.Errorf("signal detected on check %d, want 3", res.Signal.Elapsed)
	}
}

func TestOrderRaceConfirmationWins(t *testing.T) {
	session := newFakeSession()
	session.show(".order-confirmation")

	race := newTestRace(session, 50)
	res := race.Run(context.Background(), func() error { return nil })

	if res.Outcome != OrderConfirmedSuccess {
		t.Fatalf("outcome = %v, want confirmed success", res.Outcome)
	}
}

func TestOrderRaceHorizonExhaustionIsUnconfirmed(t *testing.T) {
	session := newFakeSession()

	race := newTestRace(session, 5)
	start := time.Now()
	res := race.Run(context.Background(), func() error { return nil })

	if res.Outcome != OrderUnconfirmed {
		t.Fatalf("outcome = %v, want unconfirmed", res.Outcome)
	}
	if res.Message == "" {
		t.Error("clean submit with no signal should report the soft outcome")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("race ran %v, want bounded by the check horizon", elapsed)
	}
}

func TestOrderRaceSubmitErrorStillAwaitsVerdict(t *testing.T) {
	session := newFakeSession()
	session.addElement(".error-message", &fakeElement{visible: true, text: "Order failed"})
	session.appearAfter[".error-message"] = 1

	race := newTestRace(session, 50)
	res := race.Run(context.Background(), func() error { return errors.New("click: detached") })

	if res.Outcome != OrderConfirmedFailure {
		t.Fatalf("outcome = %v, want the poller verdict despite the submit error", res.Outcome)
	}
	if res.Message != "Order failed" {
		t.Errorf("message = %q, want %q", res.Message, "Order failed")
	}
}

func TestOrderRaceSurfacesFailedSubmit(t *testing.T) {
	session := newFakeSession()

	race := newTestRace(session, 4)
	res := race.Run(context.Background(), func() error {
		return errors.New("field not found: placeOrder after 3 selectors")
	})

	if res.Outcome != OrderUnconfirmed {
		t.Fatalf("outcome = %v, want unconfirmed", res.Outcome)
	}
	if res.SubmitErr == nil {
		t.Fatal("SubmitErr = nil, want the submit failure carried in the result")
	}
	if res.Message != "" {
		t.Errorf("message = %q, a failed submit must not claim the order went out", res.Message)
	}
}

func TestOrderRaceIgnoresNonKeywordText(t *testing.T) {
	session := newFakeSession()
	session.addElement(".error-message", &fakeElement{visible: true, text: "Processing your order"})

	race := newTestRace(session, 4)
	res := race.Run(context.Background(), func() error { return nil })

	if res.Outcome != OrderUnconfirmed {
		t.Fatalf("outcome = %v, want unconfirmed for text without error keywords", res.Outcome)
	}
}

func TestOrderRaceCancel(t *testing.T) {
	session := newFakeSession()
	ctx, cancel := context.WithCancel(context.Background())

	race := newTestRace(session, 1000)
	done := make(chan OrderResult, 1)
	go func() {
		done <- race.Run(ctx, func() error {
			time.Sleep(time.Second)
			return nil
		})
	}()
	cancel()

	select {
	case res := <-done:
		if res.Outcome != OrderUnconfirmed {
			t.Errorf("outcome = %v, want unconfirmed on cancellation", res.Outcome)
		}
	case <-time.After(time.Second):
		t.Fatal("race did not stop after cancellation")
	}
}

package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BuyerIdentity is who the order is placed for.
type BuyerIdentity struct {
	FirstName string `yaml:"first_name" validate:"required"`
	LastName  string `yaml:"last_name" validate:"required"`
	Email     string `yaml:"email" validate:"required,email"`
	Phone     string `yaml:"phone" validate:"required"`
}

// ShippingAddress is where the order ships.
type ShippingAddress struct {
	Street     string `yaml:"street" validate:"required"`
	City       string `yaml:"city" validate:"required"`
	State      string `yaml:"state"`
	PostalCode string `yaml:"postal_code" validate:"required"`
}

// PaymentInstrument is the card the order is charged to.
type PaymentInstrument struct {
	HolderName string `yaml:"holder_name" validate:"required"`
	CardNumber string `yaml:"card_number" validate:"required,credit_card"`
	CVV        string `yaml:"cvv" validate:"omitempty,min=3,max=4"`
	Expiry     string `yaml:"expiry" validate:"required"`
}

// CheckoutSession identifies one run. It is owned exclusively by the
// orchestrator for the run's lifetime: created at run start, discarded at
// run end after diagnostics are flushed to the sink.
type CheckoutSession struct {
	RunID       string
	ProductURL  string
	Buyer       BuyerIdentity
	Shipping    ShippingAddress
	Payment     PaymentInstrument
	Stage       StageName
	Diagnostics []string
	StartedAt   time.Time
}

func (s *CheckoutSession) note(format string, args ...interface{}) {
	s.Diagnostics = append(s.Diagnostics, fmt.Sprintf(format, args...))
}

// Checkout sequences the funnel stages in fixed order over one browser
// session. Any stage failure is terminal for the whole run: no stage is
// retried once it has failed, and no stage is skipped ahead of.
type Checkout struct {
	cfg      *Config
	session  Session
	executor *StageExecutor
	locator  *FieldLocator
	race     *OrderRace
	diag     *Diagnostics
	sink     ResultSink
	log      zerolog.Logger
}

func NewCheckout(cfg *Config, session Session, sink ResultSink, log zerolog.Logger) *Checkout {
	locator := NewFieldLocator(cfg.fieldSelectors(), cfg.locatorProbe())
	return &Checkout{
		cfg:      cfg,
		session:  session,
		executor: NewStageExecutor(session, log, cfg.fillPause()),
		locator:  locator,
		race:     NewOrderRace(session, log, cfg.errorSelectors(), cfg.confirmationSelectors(), cfg.pollInterval(), cfg.ErrorPollMaxChecks),
		diag:     NewDiagnostics(cfg.ArtifactsDir, log),
		sink:     sink,
		log:      log,
	}
}

// Run drives one full checkout. The browser session is released before the
// outcome is reported on every path, success or failure, and the sink
// receives exactly one terminal callback.
func (c *Checkout) Run(ctx context.Context) error {
	sess := &CheckoutSession{
		RunID:      uuid.NewString(),
		ProductURL: c.cfg.ProductURL,
		Buyer:      c.cfg.Buyer,
		Shipping:   c.cfg.Shipping,
		Payment:    c.cfg.Payment,
		Stage:      StageStart,
		StartedAt:  time.Now(),
	}
	log := c.log.With().Str("run_id", sess.RunID).Logger()
	log.Info().Str("url", sess.ProductURL).Msg("checkout run starting")

	// Backstop only; succeed/fail release before reporting. Release is
	// idempotent.
	defer c.session.Release()

	if err := c.navigateToProduct(sess); err != nil {
		return c.fail(sess, &StageError{Stage: StageStart, Kind: FailPrecondition, Err: err})
	}

	for _, stage := range c.funnel(sess) {
		sess.Stage = stage.Name
		outcome := c.executor.Run(stage)
		switch outcome.Status {
		case StageSkipped:
			sess.note("stage %s skipped: precondition absent", stage.Name)
		case StageFailed:
			return c.fail(sess, outcome.Err)
		case StageSucceeded:
			if outcome.Strategy != "" {
				sess.note("stage %s via %s", stage.Name, outcome.Strategy)
			}
		}
	}

	return c.placeOrder(ctx, sess)
}

// navigateToProduct loads the product page, retrying while the page 404s
// or lacks product markup. Release-day pages often do not exist until the
// drop goes live.
func (c *Checkout) navigateToProduct(sess *CheckoutSession) error {
	deadline := time.Now().Add(c.cfg.availabilityBudget())
	attempt := 0
	for {
		attempt++
		err := c.session.Navigate(sess.ProductURL, c.cfg.stageTimeout())
		if err == nil && c.session.Exists(c.cfg.Selectors.ProductReady) {
			if attempt > 1 {
				c.log.Info().Int("attempts", attempt).Msg("product page became available")
			}
			return nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return fmt.Errorf("product page unavailable after %d attempts: %w", attempt, err)
			}
			return fmt.Errorf("product page loaded but never showed product markup (%d attempts)", attempt)
		}
		if attempt == 1 || attempt%10 == 0 {
			c.log.Warn().Int("attempt", attempt).Err(err).Msg("product page not ready, retrying")
		}
		time.Sleep(c.cfg.availabilityInterval())
	}
}

// funnel declares the fixed stage order and each stage's strategy list.
func (c *Checkout) funnel(sess *CheckoutSession) []Stage {
	sel := c.cfg.Selectors
	timeout := c.cfg.stageTimeout()

	return []Stage{
		{
			Name:         StageAgeVerification,
			Precondition: sel.AgeGate,
			Strategies: []Strategy{
				c.clickFieldStrategy("confirm-button", "ageConfirm"),
				c.clickSelectorStrategy("first-gate-button", sel.AgeGate+" button"),
			},
			Postcondition: sel.ProductReady,
			Timeout:       timeout,
		},
		{
			Name:         StageAvailability,
			Precondition: sel.ProductReady,
			Strategies: []Strategy{
				c.shipSelectStrategy(sess),
			},
			Postcondition: sel.AddToCartReady,
			Timeout:       timeout,
		},
		{
			Name:         StageAddToCart,
			Precondition: sel.AddToCartReady,
			Strategies: []Strategy{
				c.clickFieldStrategy("add-to-cart-button", "addToCart"),
				c.clickSelectorStrategy("product-form-submit", "form.product-detail button[type='submit']"),
			},
			Postcondition: sel.CartReady,
			Timeout:       timeout,
		},
		{
			Name:         StageCartToCheckout,
			Precondition: sel.CartReady,
			Strategies: []Strategy{
				c.clickFieldStrategy("checkout-button", "checkoutButton"),
				c.viaCartPageStrategy(sess),
				c.directNavigateStrategy(sess),
			},
			Postcondition: sel.ContactForm,
			Timeout:       timeout,
		},
		{
			Name:         StageContactInfo,
			Precondition: sel.ContactForm,
			Strategies: []Strategy{
				c.contactInfoStrategy(sess),
			},
			Postcondition: sel.ShippingForm,
			Timeout:       timeout,
		},
		{
			Name:         StageShippingInfo,
			Precondition: sel.ShippingForm,
			Strategies: []Strategy{
				c.shippingInfoStrategy(sess),
			},
			Postcondition: sel.PaymentSection,
			Timeout:       timeout,
		},
		{
			Name:         StageAddressValidation,
			Precondition: sel.AddressValidation,
			Strategies: []Strategy{
				c.clickFieldStrategy("accept-suggested-address", "addressValidationAccept"),
			},
			Timeout:  c.cfg.addressValidationTimeout(),
			Optional: true,
		},
		{
			Name:         StagePayment,
			Precondition: sel.PaymentSection,
			Strategies: []Strategy{
				c.paymentStrategy(sess),
			},
			Postcondition: sel.PlaceOrderReady,
			Timeout:       timeout,
		},
	}
}

// clickFieldStrategy clicks a semantically named field resolved by the
// locator. Locator misses and non-interactable clicks are transient so the
// next strategy gets its turn.
func (c *Checkout) clickFieldStrategy(name, field string) Strategy {
	return Strategy{Name: name, Attempt: func() error {
		el, err := c.locator.Locate(c.session, field)
		if err != nil {
			return Transient(err)
		}
		if err := el.Click(); err != nil {
			if isNotInteractable(err) || isNavigationAborted(err) {
				return Transient(err)
			}
			return err
		}
		return nil
	}}
}

// clickSelectorStrategy clicks one concrete selector.
func (c *Checkout) clickSelectorStrategy(name, selector string) Strategy {
	return Strategy{Name: name, Attempt: func() error {
		el, err := c.session.Locate(selector, c.cfg.locatorProbe())
		if err != nil {
			return Transient(err)
		}
		if err := el.Click(); err != nil {
			if isNotInteractable(err) || isNavigationAborted(err) {
				return Transient(err)
			}
			return err
		}
		return nil
	}}
}

// viaCartPageStrategy reaches checkout by opening the cart page first.
func (c *Checkout) viaCartPageStrategy(sess *CheckoutSession) Strategy {
	return Strategy{Name: "via-cart-page", Attempt: func() error {
		el, err := c.locator.Locate(c.session, "cartLink")
		if err != nil {
			return Transient(err)
		}
		if err := el.Click(); err != nil {
			return Transient(err)
		}
		checkout, err := c.locator.Locate(c.session, "checkoutButton")
		if err != nil {
			return Transient(err)
		}
		if err := checkout.Click(); err != nil {
			return Transient(err)
		}
		return nil
	}}
}

// directNavigateStrategy is the last resort: jump straight to the checkout
// URL derived from the product origin.
func (c *Checkout) directNavigateStrategy(sess *CheckoutSession) Strategy {
	return Strategy{Name: "direct-checkout-url", Attempt: func() error {
		url, err := checkoutURL(sess.ProductURL)
		if err != nil {
			return Transient(err)
		}
		if err := c.session.Navigate(url, c.cfg.stageTimeout()); err != nil {
			return Transient(err)
		}
		return nil
	}}
}

// shipSelectStrategy picks the ship-to state when the page asks for one,
// then verifies the product can actually be bought.
func (c *Checkout) shipSelectStrategy(sess *CheckoutSession) Strategy {
	return Strategy{Name: "select-ship-state", Attempt: func() error {
		if sess.Shipping.State != "" {
			if el, err := c.locator.Locate(c.session, "shipStateSelect"); err == nil {
				if err := c.executor.fill(el, sess.Shipping.State); err != nil {
					return Transient(err)
				}
			}
			// No state selector on the page is fine: not every cohort
			// gates availability by destination.
		}
		if c.session.Exists(c.cfg.Selectors.SoldOut) {
			return fmt.Errorf("product is sold out")
		}
		return nil
	}}
}

// contactInfoStrategy fills the buyer identity form and continues.
func (c *Checkout) contactInfoStrategy(sess *CheckoutSession) Strategy {
	return Strategy{Name: "fill-contact-form", Attempt: func() error {
		fields := []struct {
			name  string
			value string
		}{
			{"firstName", sess.Buyer.FirstName},
			{"lastName", sess.Buyer.LastName},
			{"email", sess.Buyer.Email},
			{"phone", sess.Buyer.Phone},
		}
		for _, f := range fields {
			el, err := c.locator.Locate(c.session, f.name)
			if err != nil {
				return Transient(err)
			}
			if err := c.executor.fill(el, f.value); err != nil {
				return Transient(err)
			}
		}
		return c.clickFieldStrategy("", "contactContinue").Attempt()
	}}
}

// shippingInfoStrategy fills the shipping address form and continues.
func (c *Checkout) shippingInfoStrategy(sess *CheckoutSession) Strategy {
	return Strategy{Name: "fill-shipping-form", Attempt: func() error {
		fields := []struct {
			name  string
			value string
		}{
			{"address", sess.Shipping.Street},
			{"city", sess.Shipping.City},
			{"zip", sess.Shipping.PostalCode},
		}
		for _, f := range fields {
			el, err := c.locator.Locate(c.session, f.name)
			if err != nil {
				return Transient(err)
			}
			if err := c.executor.fill(el, f.value); err != nil {
				return Transient(err)
			}
		}
		return c.clickFieldStrategy("", "shippingContinue").Attempt()
	}}
}

// paymentStrategy fills the card form. Card number and CVV live in a
// cross-origin iframe with no stable identifiers; cardholder name and
// expiry are regular page fields. An unreachable iframe is a hard failure,
// a missing CVV field is not.
func (c *Checkout) paymentStrategy(sess *CheckoutSession) Strategy {
	return Strategy{Name: "fill-payment-form", Attempt: func() error {
		frame, err := c.session.Frame(c.cfg.Selectors.PaymentFrame, c.cfg.stageTimeout())
		if err != nil {
			return &StageError{Stage: StagePayment, Kind: FailFrameAccess,
				Err: fmt.Errorf("payment iframe %q unreachable: %w", c.cfg.Selectors.PaymentFrame, err)}
		}

		classifier := NewPaymentClassifier(frame)

		cardField, err := classifier.CardNumberField()
		if err != nil {
			return err
		}
		if err := c.executor.fill(cardField, sess.Payment.CardNumber); err != nil {
			return err
		}

		cvvField, found, err := classifier.CVVField()
		if err != nil {
			return err
		}
		switch {
		case !found:
			sess.note("no CVV field classified in payment iframe, proceeding without CVV")
			c.log.Warn().Msg("no CVV field classified, attempting order without CVV entry")
		case sess.Payment.CVV == "":
			sess.note("no CVV configured, leaving the classified CVV field empty")
			c.log.Warn().Msg("no CVV configured, leaving the CVV field empty")
		default:
			if err := c.executor.fill(cvvField, sess.Payment.CVV); err != nil {
				return err
			}
		}

		for _, f := range []struct{ name, value string }{
			{"cardholderName", sess.Payment.HolderName},
			{"expiry", sess.Payment.Expiry},
		} {
			el, err := c.locator.Locate(c.session, f.name)
			if err != nil {
				return Transient(err)
			}
			if err := c.executor.fill(el, f.value); err != nil {
				return Transient(err)
			}
		}
		return nil
	}}
}

// checkoutURL derives the retailer's checkout entry point from the
// product page's origin.
func checkoutURL(productURL string) (string, error) {
	u, err := url.Parse(productURL)
	if err != nil {
		return "", fmt.Errorf("parse product url: %w", err)
	}
	u.Path = "/checkout"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// placeOrder runs the final stage: the submit click raced against the
// error-detection poller.
func (c *Checkout) placeOrder(ctx context.Context, sess *CheckoutSession) error {
	sess.Stage = StagePlaceOrder

	if err := c.session.WaitVisible(c.cfg.Selectors.PlaceOrderReady, c.cfg.stageTimeout()); err != nil {
		return c.fail(sess, &StageError{Stage: StagePlaceOrder, Kind: FailPrecondition,
			Err: fmt.Errorf("place-order control never appeared: %w", err)})
	}

	if c.cfg.DryRun {
		c.log.Info().Msg("dry run: stopping before order placement")
		return c.succeed(sess, "dry run: order not placed")
	}

	result := c.race.Run(ctx, func() error {
		el, err := c.locator.Locate(c.session, "placeOrder")
		if err != nil {
			return err
		}
		return el.Click()
	})

	switch result.Outcome {
	case OrderConfirmedFailure:
		return c.fail(sess, &StageError{Stage: StagePlaceOrder, Kind: FailOrderDeclined,
			Err: fmt.Errorf("%s", result.Message)})
	case OrderConfirmedSuccess:
		return c.succeed(sess, "order confirmed")
	default:
		if result.SubmitErr != nil {
			// Nothing ever went out; an unconfirmed outcome here is not a
			// possibly-placed order.
			return c.fail(sess, &StageError{Stage: StagePlaceOrder, Kind: FailAction,
				Err: fmt.Errorf("order submission failed: %w", result.SubmitErr)})
		}
		sess.note("order submitted but unconfirmed within the poll horizon")
		return c.succeed(sess, "order submitted, unconfirmed")
	}
}

// succeed releases the browser and emits the single OnComplete callback.
// Sinks may block (webhook retries); the session must not be held through
// them.
func (c *Checkout) succeed(sess *CheckoutSession, message string) error {
	c.session.Release()
	c.log.Info().Str("run_id", sess.RunID).Str("outcome", message).
		Strs("diagnostics", sess.Diagnostics).
		Dur("elapsed", time.Since(sess.StartedAt)).
		Msg("checkout succeeded")
	c.sink.OnComplete(RunResult{Success: true, Message: message})
	return nil
}

// fail captures a page snapshot, releases the browser, and emits the single
// OnError callback with one summarized error. Capture must come first: it
// needs the page; the sink must come last: the session must not be held
// through a blocking sink.
func (c *Checkout) fail(sess *CheckoutSession, stageErr *StageError) error {
	if path, err := c.diag.Capture(c.session, sess.RunID, stageErr); err == nil && path != "" {
		sess.note("diagnostic snapshot: %s", path)
	}
	c.session.Release()
	c.log.Error().Str("run_id", sess.RunID).Str("stage", string(stageErr.Stage)).
		Str("kind", string(stageErr.Kind)).
		Strs("diagnostics", sess.Diagnostics).
		Dur("elapsed", time.Since(sess.StartedAt)).
		Err(stageErr.Err).
		Msg("checkout failed")

	msg := stageErr.Error()
	if stageErr.Kind == FailOrderDeclined && stageErr.Err != nil {
		// Declines are reported with the detected page text, not a
		// generic infrastructure message.
		msg = stageErr.Err.Error()
	}
	c.sink.OnError(RunResult{Success: false, Error: msg})
	return stageErr
}

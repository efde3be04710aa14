package main

import (
	"fmt"
	"time"
)

// FieldScope is the slice of Session a locator needs: it can look elements
// up but never mutates the page. Both Session pages and payment Frames
// satisfy it through small adapters below.
type FieldScope interface {
	Locate(selector string, timeout time.Duration) (Element, error)
}

// FieldLocator resolves semantic field names to concrete elements using an
// ordered list of candidate selectors per field. Retail checkout markup
// changes without notice and varies by A/B cohort, so every field carries
// attribute-based, text-based, and structural fallbacks tried in order.
type FieldLocator struct {
	selectors map[string][]string
	probe     time.Duration // per-selector existence check budget
}

// NewFieldLocator builds a locator from a field → ordered-selectors map.
// A zero probe defaults to a short existence check.
func NewFieldLocator(selectors map[string][]string, probe time.Duration) *FieldLocator {
	if probe <= 0 {
		probe = 500 * time.Millisecond
	}
	return &FieldLocator{selectors: selectors, probe: probe}
}

// Locate tries each configured selector for field with a short existence
// check and returns the first match. It fails with ErrFieldNotFound only
// after exhausting every selector; callers decide whether that is fatal.
func (l *FieldLocator) Locate(scope FieldScope, field string) (Element, error) {
	candidates, ok := l.selectors[field]
	if !ok || len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no selectors configured for %q", ErrFieldNotFound, field)
	}

	for _, sel := range candidates {
		el, err := scope.Locate(sel, l.probe)
		if err != nil {
			continue
		}
		return el, nil
	}

	return nil, fmt.Errorf("%w: %q after %d selectors", ErrFieldNotFound, field, len(candidates))
}

// Selectors returns the configured selector list for field, in trial order.
func (l *FieldLocator) Selectors(field string) []string {
	return l.selectors[field]
}

// defaultFieldSelectors is the documented selector mapping for the target
// retailer. Each list is ordered: stable attributes first, then label text,
// then positional fallbacks.
func defaultFieldSelectors() map[string][]string {
	return map[string][]string{
		"ageConfirm": {
			"button#btn-yes",
			"button[data-age-gate='confirm']",
			".age-gate button.confirm",
		},
		"shipStateSelect": {
			"select#shipping-state",
			"select[name='state']",
			".availability select",
		},
		"addToCart": {
			"button#add-to-cart",
			"button[name='addToCart']",
			"form.product-detail button[type='submit']",
		},
		"cartLink": {
			"a[href*='/cart']",
			".mini-cart a",
			"#header-cart",
		},
		"checkoutButton": {
			"button#checkout",
			"a[href*='/checkout']",
			".cart-summary button[type='submit']",
		},
		"firstName": {
			"input#firstName",
			"input[name='firstName']",
			"input[autocomplete='given-name']",
		},
		"lastName": {
			"input#lastName",
			"input[name='lastName']",
			"input[autocomplete='family-name']",
		},
		"email": {
			"input#email",
			"input[name='email']",
			"input[type='email']",
		},
		"phone": {
			"input#phone",
			"input[name='phone']",
			"input[type='tel']",
		},
		"contactContinue": {
			"button#contact-continue",
			"form.contact-info button[type='submit']",
		},
		"address": {
			"input#address1",
			"input[name='address1']",
			"input[autocomplete='address-line1']",
		},
		"city": {
			"input#city",
			"input[name='city']",
			"input[autocomplete='address-level2']",
		},
		"zip": {
			"input#postalCode",
			"input[name='zip']",
			"input[autocomplete='postal-code']",
		},
		"shippingContinue": {
			"button#shipping-continue",
			"form.shipping-info button[type='submit']",
		},
		"addressValidationAccept": {
			"button#use-suggested-address",
			".address-validation button.primary",
			".modal-address button[type='submit']",
		},
		"cardholderName": {
			"input#cardholderName",
			"input[name='cardholderName']",
			"input[autocomplete='cc-name']",
		},
		"expiry": {
			"input#expiry",
			"input[name='expiry']",
			"input[autocomplete='cc-exp']",
		},
		"placeOrder": {
			"button#place-order",
			"button[name='placeOrder']",
			".order-summary button[type='submit']",
		},
	}
}

// defaultErrorSelectors are the fixed error-indicating elements the
// order-result poller scans after submission.
func defaultErrorSelectors() []string {
	return []string{
		".error-message",
		".alert-danger",
		"[role='alert']",
		".payment-error",
		".order-error",
	}
}

// defaultConfirmationSelectors announce a confirmed order.
func defaultConfirmationSelectors() []string {
	return []string{
		".order-confirmation",
		"#order-number",
		"h1.thank-you",
	}
}

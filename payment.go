package main

import (
	"fmt"
	"strings"
)

// FieldCandidate is one input element observed inside the payment iframe.
// The iframe is cross-origin and the retailer exposes no stable
// identifiers, so classification works purely off observable attributes.
type FieldCandidate struct {
	Index       int
	Visible     bool
	Enabled     bool
	Type        string
	Name        string
	ID          string
	Placeholder string
	MaxLength   string
}

// cvvFallbackPatterns are the attribute-pattern strategies tried, in order,
// when ordinal classification finds no CVV candidate.
var cvvFallbackPatterns = []func(FieldCandidate) bool{
	func(c FieldCandidate) bool {
		hay := strings.ToLower(c.Placeholder + " " + c.Name + " " + c.ID)
		return strings.Contains(hay, "cvv") ||
			strings.Contains(hay, "cvc") ||
			strings.Contains(hay, "security")
	},
	func(c FieldCandidate) bool { return c.MaxLength == "3" || c.MaxLength == "4" },
}

// classifyCardNumber picks the card-number input: the first visible,
// non-hidden text/tel input. The funnel's iframe layout guarantees the
// card number is always the leading field.
func classifyCardNumber(candidates []FieldCandidate) (int, bool) {
	for _, c := range candidates {
		if !c.Visible || c.Type == "hidden" {
			continue
		}
		if c.Type == "" || c.Type == "text" || c.Type == "tel" {
			return c.Index, true
		}
	}
	return 0, false
}

// classifyCVV picks the CVV input. The first field is reserved for the card
// number; hidden or disabled fields are excluded; the first remaining
// visible+enabled field wins. When nothing qualifies, the attribute-pattern
// fallbacks run in declared order against the same exclusions.
func classifyCVV(candidates []FieldCandidate, cardIndex int) (int, bool) {
	for _, c := range candidates {
		if c.Index == cardIndex || c.Index == 0 {
			continue
		}
		if !c.Visible || !c.Enabled || c.Type == "hidden" {
			continue
		}
		return c.Index, true
	}

	for _, match := range cvvFallbackPatterns {
		for _, c := range candidates {
			if c.Index == cardIndex {
				continue
			}
			if c.Type == "hidden" || !c.Visible {
				continue
			}
			if match(c) {
				return c.Index, true
			}
		}
	}

	return 0, false
}

// PaymentClassifier resolves card fields inside the cross-origin payment
// iframe. It separates observation (collecting attribute tuples) from the
// pure classification above so the latter is testable without a browser.
type PaymentClassifier struct {
	frame Frame
}

func NewPaymentClassifier(frame Frame) *PaymentClassifier {
	return &PaymentClassifier{frame: frame}
}

// observe enumerates every input in the frame and records its attribute
// tuple. Attribute reads on untrusted frames fail often; a failed read is
// recorded as an empty value, not an error.
func (p *PaymentClassifier) observe() ([]FieldCandidate, []Element, error) {
	inputs, err := p.frame.Elements("input")
	if err != nil {
		return nil, nil, fmt.Errorf("enumerate payment inputs: %w", err)
	}

	candidates := make([]FieldCandidate, 0, len(inputs))
	for i, el := range inputs {
		visible, _ := el.Visible()
		enabled, _ := el.Enabled()
		typ, _ := el.Attribute("type")
		name, _ := el.Attribute("name")
		id, _ := el.Attribute("id")
		placeholder, _ := el.Attribute("placeholder")
		maxLen, _ := el.Attribute("maxlength")

		candidates = append(candidates, FieldCandidate{
			Index:       i,
			Visible:     visible,
			Enabled:     enabled,
			Type:        typ,
			Name:        name,
			ID:          id,
			Placeholder: placeholder,
			MaxLength:   maxLen,
		})
	}
	return candidates, inputs, nil
}

// CardNumberField resolves the card-number input element.
func (p *PaymentClassifier) CardNumberField() (Element, error) {
	candidates, inputs, err := p.observe()
	if err != nil {
		return nil, err
	}
	idx, ok := classifyCardNumber(candidates)
	if !ok {
		return nil, fmt.Errorf("no visible card number input among %d candidates", len(candidates))
	}
	return inputs[idx], nil
}

// CVVField resolves the CVV input element. A miss is not fatal to the
// Payment stage: some instruments do not require CVV, so callers record a
// warning and proceed.
func (p *PaymentClassifier) CVVField() (Element, bool, error) {
	candidates, inputs, err := p.observe()
	if err != nil {
		return nil, false, err
	}
	cardIdx, ok := classifyCardNumber(candidates)
	if !ok {
		cardIdx = 0
	}
	idx, ok := classifyCVV(candidates, cardIdx)
	if !ok {
		return nil, false, nil
	}
	return inputs[idx], true, nil
}

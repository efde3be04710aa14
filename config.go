package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ProductURL string `yaml:"product_url" validate:"required,url"`

	Buyer    BuyerIdentity     `yaml:"buyer"`
	Shipping ShippingAddress   `yaml:"shipping"`
	Payment  PaymentInstrument `yaml:"payment"`

	Headless           bool   `yaml:"headless"`
	BrowserProfilePath string `yaml:"browser_profile_path"`
	ArtifactsDir       string `yaml:"artifacts_dir"`

	StageTimeoutSeconds             int `yaml:"stage_timeout_seconds"`
	AddressValidationTimeoutSeconds int `yaml:"address_validation_timeout_seconds"`
	FieldFillDelayMs                int `yaml:"field_fill_delay_ms"`
	LocatorProbeMs                  int `yaml:"locator_probe_ms"`

	ErrorPollIntervalMs int `yaml:"error_poll_interval_ms"`
	ErrorPollMaxChecks  int `yaml:"error_poll_max_checks"`

	AvailabilityRetrySeconds    int `yaml:"availability_retry_seconds"`
	AvailabilityIntervalSeconds int `yaml:"availability_interval_seconds"`

	// ReleaseTime delays the run until shortly before a timed drop.
	// Formats: "2025-01-15 16:00" or RFC3339, UTC.
	ReleaseTime               string `yaml:"release_time"`
	StartBeforeReleaseSeconds int    `yaml:"start_before_release_seconds"`

	WebhookURL string `yaml:"webhook_url"`

	DryRun    bool `yaml:"dry_run"`
	DebugMode bool `yaml:"debug_mode"`

	Selectors SelectorConfig `yaml:"selectors"`
}

// SelectorConfig carries the per-retailer markup map: stage pre/post
// conditions, the payment iframe, the poller's watch lists, and optional
// per-field selector overrides for the locator.
type SelectorConfig struct {
	AgeGate           string `yaml:"age_gate"`
	ProductReady      string `yaml:"product_ready"`
	AddToCartReady    string `yaml:"add_to_cart_ready"`
	SoldOut           string `yaml:"sold_out"`
	CartReady         string `yaml:"cart_ready"`
	ContactForm       string `yaml:"contact_form"`
	ShippingForm      string `yaml:"shipping_form"`
	AddressValidation string `yaml:"address_validation"`
	PaymentSection    string `yaml:"payment_section"`
	PaymentFrame      string `yaml:"payment_frame"`
	PlaceOrderReady   string `yaml:"place_order_ready"`

	ErrorIndicators []string `yaml:"error_indicators"`
	Confirmations   []string `yaml:"confirmations"`

	Fields map[string][]string `yaml:"fields"`
}

func DefaultConfig() *Config {
	return &Config{
		BrowserProfilePath:              filepath.Join(userDataDir(), "browser-profile"),
		ArtifactsDir:                    filepath.Join(userDataDir(), "artifacts"),
		Headless:                        true,
		StageTimeoutSeconds:             30,
		AddressValidationTimeoutSeconds: 5,
		FieldFillDelayMs:                150,
		LocatorProbeMs:                  500,
		ErrorPollIntervalMs:             200,
		ErrorPollMaxChecks:              50,
		AvailabilityRetrySeconds:        300,
		AvailabilityIntervalSeconds:     2,
		StartBeforeReleaseSeconds:       30,
		DryRun:                          false,
		DebugMode:                       false,
		Selectors: SelectorConfig{
			AgeGate:           ".age-gate, #age-gate-modal",
			ProductReady:      ".product-detail, [data-product-id]",
			AddToCartReady:    "button#add-to-cart, button[name='addToCart']",
			SoldOut:           ".sold-out, .out-of-stock",
			CartReady:         ".mini-cart, a[href*='/cart']",
			ContactForm:       "input#email, form.contact-info",
			ShippingForm:      "input#address1, form.shipping-info",
			AddressValidation: ".address-validation, .modal-address",
			PaymentSection:    ".payment, #payment-section",
			PaymentFrame:      "iframe#payment-frame, iframe[src*='payment']",
			PlaceOrderReady:   "button#place-order, button[name='placeOrder']",
			ErrorIndicators:   defaultErrorSelectors(),
			Confirmations:     defaultConfirmationSelectors(),
		},
	}
}

// LoadConfig reads path, writing a starter file first when none exists.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overlays the CHECKOUT_* environment contract on top of the
// file values. Env wins when set.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.ProductURL, "PRODUCT_URL")
	set(&c.Buyer.FirstName, "CHECKOUT_FIRST_NAME")
	set(&c.Buyer.LastName, "CHECKOUT_LAST_NAME")
	set(&c.Buyer.Email, "CHECKOUT_EMAIL")
	set(&c.Buyer.Phone, "CHECKOUT_PHONE")
	set(&c.Shipping.Street, "CHECKOUT_ADDRESS")
	set(&c.Shipping.City, "CHECKOUT_CITY")
	set(&c.Shipping.State, "CHECKOUT_STATE")
	set(&c.Shipping.PostalCode, "CHECKOUT_ZIP")
	set(&c.Payment.HolderName, "CHECKOUT_CARDHOLDER_NAME")
	set(&c.Payment.CardNumber, "CHECKOUT_CARD_NUMBER")
	set(&c.Payment.CVV, "CHECKOUT_CVV")
	set(&c.Payment.Expiry, "CHECKOUT_EXPIRY")

	if v := os.Getenv("CHECKOUT_HEADLESS"); v != "" {
		c.Headless = strings.EqualFold(v, "true")
	}
}

// Validate checks value formats before any browser work starts. A run with
// a malformed email or card number would otherwise only fail twenty clicks
// in.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}

// placeholderMarkers flag values that were never replaced with real data.
var placeholderMarkers = []string{
	"replace", "changeme", "change_me", "your-", "your_", "example.com",
	"xxxx", "0000 0000", "john doe", "jane doe",
}

// HasPlaceholders reports whether any configured buyer/shipping/payment
// value still looks like a sample. The engine treats the values as opaque
// otherwise; this is only a pre-flight warning signal.
func (c *Config) HasPlaceholders() bool {
	values := []string{
		c.Buyer.FirstName, c.Buyer.LastName, c.Buyer.Email, c.Buyer.Phone,
		c.Shipping.Street, c.Shipping.City, c.Shipping.PostalCode,
		c.Payment.HolderName, c.Payment.CardNumber, c.Payment.Expiry,
	}
	for _, v := range values {
		lower := strings.ToLower(v)
		for _, marker := range placeholderMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

func (c *Config) stageTimeout() time.Duration {
	return time.Duration(c.StageTimeoutSeconds) * time.Second
}

func (c *Config) addressValidationTimeout() time.Duration {
	return time.Duration(c.AddressValidationTimeoutSeconds) * time.Second
}

func (c *Config) fillPause() time.Duration {
	return time.Duration(c.FieldFillDelayMs) * time.Millisecond
}

func (c *Config) locatorProbe() time.Duration {
	return time.Duration(c.LocatorProbeMs) * time.Millisecond
}

func (c *Config) pollInterval() time.Duration {
	return time.Duration(c.ErrorPollIntervalMs) * time.Millisecond
}

func (c *Config) availabilityBudget() time.Duration {
	return time.Duration(c.AvailabilityRetrySeconds) * time.Second
}

func (c *Config) availabilityInterval() time.Duration {
	return time.Duration(c.AvailabilityIntervalSeconds) * time.Second
}

// fieldSelectors merges per-field overrides over the built-in retailer map.
func (c *Config) fieldSelectors() map[string][]string {
	merged := defaultFieldSelectors()
	for field, sels := range c.Selectors.Fields {
		if len(sels) > 0 {
			merged[field] = sels
		}
	}
	return merged
}

func (c *Config) errorSelectors() []string {
	if len(c.Selectors.ErrorIndicators) > 0 {
		return c.Selectors.ErrorIndicators
	}
	return defaultErrorSelectors()
}

func (c *Config) confirmationSelectors() []string {
	if len(c.Selectors.Confirmations) > 0 {
		return c.Selectors.Confirmations
	}
	return defaultConfirmationSelectors()
}

func userDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./decanter-data"
	}
	return filepath.Join(home, ".decanter")
}

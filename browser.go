package main

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"
)

// RodSession drives a real Chrome/Chromium page through go-rod. It is the
// production implementation of Session; the checkout engine only ever sees
// the interface.
type RodSession struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	log      zerolog.Logger
	release  sync.Once
}

// LaunchBrowser starts a browser and opens a stealth page. System Chrome is
// preferred when present to avoid the Chromium download.
func LaunchBrowser(cfg *Config, log zerolog.Logger) (*RodSession, error) {
	// Leakless deadlocks on Windows, see go-rod/rod#853.
	useLeakless := runtime.GOOS != "windows"

	l := launcher.New().
		Leakless(useLeakless).
		Headless(cfg.Headless)

	if cfg.BrowserProfilePath != "" {
		l = l.UserDataDir(cfg.BrowserProfilePath)
	}

	if chromePath, ok := launcher.LookPath(); ok {
		l = l.Bin(chromePath)
		log.Debug().Str("path", chromePath).Msg("using system chrome")
	} else {
		log.Info().Msg("system chrome not found, downloading chromium")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("create stealth page: %w", err)
	}

	log.Info().Bool("headless", cfg.Headless).Msg("browser launched")
	return &RodSession{browser: browser, page: page, launcher: l, log: log}, nil
}

func (s *RodSession) Navigate(url string, timeout time.Duration) error {
	page := s.page.Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

func (s *RodSession) Locate(selector string, timeout time.Duration) (Element, error) {
	el, err := s.page.Timeout(timeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("locate %q: %w", selector, err)
	}
	return &rodElement{el: el}, nil
}

func (s *RodSession) Exists(selector string) bool {
	els, err := s.page.Elements(selector)
	if err != nil || len(els) == 0 {
		return false
	}
	for _, el := range els {
		if visible, err := el.Visible(); err == nil && visible {
			return true
		}
	}
	return false
}

func (s *RodSession) WaitVisible(selector string, timeout time.Duration) error {
	el, err := s.page.Timeout(timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("wait visible %q: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("wait visible %q: %w", selector, err)
	}
	return nil
}

func (s *RodSession) Frame(selector string, timeout time.Duration) (Frame, error) {
	el, err := s.page.Timeout(timeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("frame element %q: %w", selector, err)
	}
	framePage, err := el.Frame()
	if err != nil {
		return nil, fmt.Errorf("enter frame %q: %w", selector, err)
	}
	return &rodFrame{page: framePage, timeout: timeout}, nil
}

func (s *RodSession) Snapshot() ([]byte, string, error) {
	shot, err := s.page.Screenshot(true, nil)
	if err != nil {
		return nil, "", fmt.Errorf("screenshot: %w", err)
	}
	html, err := s.page.HTML()
	if err != nil {
		return shot, "", fmt.Errorf("page html: %w", err)
	}
	return shot, html, nil
}

func (s *RodSession) Release() {
	s.release.Do(func() {
		s.log.Debug().Msg("releasing browser session")
		if s.page != nil {
			s.page.Close()
		}
		if s.browser != nil {
			s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Cleanup()
		}
	})
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Fill(text string) error {
	tag, err := e.el.Property("tagName")
	if err == nil && tag.Str() == "SELECT" {
		return e.el.Select([]string{text}, true, rod.SelectorTypeText)
	}
	// Overwrite rather than append when the field already carries a value.
	_ = e.el.SelectAllText()
	return e.el.Input(text)
}

func (e *rodElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Visible() (bool, error) {
	return e.el.Visible()
}

func (e *rodElement) Enabled() (bool, error) {
	attr, err := e.el.Attribute("disabled")
	if err != nil {
		return false, err
	}
	return attr == nil, nil
}

func (e *rodElement) Attribute(name string) (string, error) {
	attr, err := e.el.Attribute(name)
	if err != nil {
		return "", err
	}
	if attr == nil {
		return "", nil
	}
	return *attr, nil
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}

type rodFrame struct {
	page    *rod.Page
	timeout time.Duration
}

func (f *rodFrame) Elements(selector string) ([]Element, error) {
	els, err := f.page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("frame elements %q: %w", selector, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (f *rodFrame) Locate(selector string, timeout time.Duration) (Element, error) {
	el, err := f.page.Timeout(timeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("frame locate %q: %w", selector, err)
	}
	return &rodElement{el: el}, nil
}

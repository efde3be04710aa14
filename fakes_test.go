package main

import (
	"fmt"
	"sync"
	"time"
)

// fakeElement is a scriptable Element for tests.
type fakeElement struct {
	mu          sync.Mutex
	visible     bool
	enabled     bool
	typ         string
	name        string
	id          string
	placeholder string
	maxLength   string
	text        string

	fillErr  error
	clickErr error
	fills    []string
	clicks   int
}

func (e *fakeElement) Fill(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fillErr != nil {
		return e.fillErr
	}
	e.fills = append(e.fills, text)
	return nil
}

func (e *fakeElement) Click() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clickErr != nil {
		return e.clickErr
	}
	e.clicks++
	return nil
}

func (e *fakeElement) Visible() (bool, error) { return e.visible, nil }
func (e *fakeElement) Enabled() (bool, error) { return e.enabled, nil }

func (e *fakeElement) Attribute(name string) (string, error) {
	switch name {
	case "type":
		return e.typ, nil
	case "name":
		return e.name, nil
	case "id":
		return e.id, nil
	case "placeholder":
		return e.placeholder, nil
	case "maxlength":
		return e.maxLength, nil
	}
	return "", nil
}

func (e *fakeElement) Text() (string, error) { return e.text, nil }

// fakeFrame serves a fixed input list.
type fakeFrame struct {
	inputs []*fakeElement
	err    error
}

func (f *fakeFrame) Elements(selector string) ([]Element, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Element, 0, len(f.inputs))
	for _, el := range f.inputs {
		out = append(out, el)
	}
	return out, nil
}

func (f *fakeFrame) Locate(selector string, timeout time.Duration) (Element, error) {
	if f.err != nil || len(f.inputs) == 0 {
		return nil, fmt.Errorf("frame locate %q: not found", selector)
	}
	return f.inputs[0], nil
}

// fakeSession is a scriptable Session. Selector visibility is keyed on the
// exact selector string the engine asks about; appearAfter delays a
// selector until its Nth existence probe.
type fakeSession struct {
	mu          sync.Mutex
	elements    map[string]*fakeElement
	visible     map[string]bool
	appearAfter map[string]int // Exists probes remaining before visible
	frames      map[string]Frame
	navErr      error
	navigated   []string
	snapErr     error
	released    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		elements:    make(map[string]*fakeElement),
		visible:     make(map[string]bool),
		appearAfter: make(map[string]int),
		frames:      make(map[string]Frame),
	}
}

func (s *fakeSession) addElement(selector string, el *fakeElement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[selector] = el
}

func (s *fakeSession) show(selector string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible[selector] = true
}

func (s *fakeSession) hide(selector string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.visible, selector)
}

func (s *fakeSession) removeElement(selector string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.elements, selector)
}

func (s *fakeSession) Navigate(url string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigated = append(s.navigated, url)
	return s.navErr
}

func (s *fakeSession) Locate(selector string, timeout time.Duration) (Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.elements[selector]
	if !ok {
		return nil, fmt.Errorf("locate %q: not found", selector)
	}
	return el, nil
}

func (s *fakeSession) Exists(selector string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.appearAfter[selector]; ok {
		if n > 0 {
			s.appearAfter[selector] = n - 1
			return false
		}
		return true
	}
	if s.visible[selector] {
		return true
	}
	if el, ok := s.elements[selector]; ok && el.visible {
		return true
	}
	return false
}

func (s *fakeSession) WaitVisible(selector string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		ok := s.visible[selector]
		if !ok {
			if el, found := s.elements[selector]; found && el.visible {
				ok = true
			}
		}
		s.mu.Unlock()
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("wait visible %q: timeout", selector)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (s *fakeSession) Frame(selector string, timeout time.Duration) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame, ok := s.frames[selector]
	if !ok {
		return nil, fmt.Errorf("frame %q: not found", selector)
	}
	return frame, nil
}

func (s *fakeSession) Snapshot() ([]byte, string, error) {
	if s.snapErr != nil {
		return nil, "", s.snapErr
	}
	return []byte("png"), "<html></html>", nil
}

func (s *fakeSession) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
}

func (s *fakeSession) releaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// recordSink captures terminal callbacks.
type recordSink struct {
	mu        sync.Mutex
	completes []RunResult
	errors    []RunResult
}

func (r *recordSink) OnComplete(result RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes = append(r.completes, result)
}

func (r *recordSink) OnError(result RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, result)
}

func (r *recordSink) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.completes), len(r.errors)
}

// hookSink runs a callback at terminal-report time, so tests can observe
// what state the run is in when the sink fires.
type hookSink struct {
	onComplete func(RunResult)
	onError    func(RunResult)
}

func (h *hookSink) OnComplete(result RunResult) {
	if h.onComplete != nil {
		h.onComplete(result)
	}
}

func (h *hookSink) OnError(result RunResult) {
	if h.onError != nil {
		h.onError(result)
	}
}

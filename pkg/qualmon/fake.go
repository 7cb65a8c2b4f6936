package qualmon

import (
	"sync"

	"github.com/telcoware/qns/pkg"
	"github.com/telcoware/qns/pkg/signal"
)

// FakeCellularSource is an in-memory CellularSource for tests and bring-up
// on hardware without a modem. SetSnapshot drives the change callback.
type FakeCellularSource struct {
	mu        sync.Mutex
	snapshot  *signal.Snapshot
	callback  func(*signal.Snapshot)
	requested []SignalThresholdInfo

	RequestCalls int
	ClearCalls   int
	RequestErr   error
	ClearErr     error
}

func NewFakeCellularSource() *FakeCellularSource {
	return &FakeCellularSource{}
}

func (f *FakeCellularSource) Snapshot() *signal.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *FakeCellularSource) Subscribe(fn func(*signal.Snapshot)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callback = fn
	return nil
}

func (f *FakeCellularSource) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callback = nil
}

func (f *FakeCellularSource) RequestThresholdUpdates(infos []SignalThresholdInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RequestCalls++
	if f.RequestErr != nil {
		return f.RequestErr
	}
	f.requested = copyInfos(infos)
	return nil
}

func (f *FakeCellularSource) ClearThresholdUpdates() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ClearCalls++
	if f.ClearErr != nil {
		return f.ClearErr
	}
	f.requested = nil
	return nil
}

// Requested returns the last requested merged view.
func (f *FakeCellularSource) Requested() []SignalThresholdInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyInfos(f.requested)
}

// SetSnapshot stores the snapshot and fires the change callback when one is
// installed.
func (f *FakeCellularSource) SetSnapshot(s *signal.Snapshot) {
	f.mu.Lock()
	f.snapshot = s
	cb := f.callback
	f.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// Subscribed reports whether a callback is installed.
func (f *FakeCellularSource) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callback != nil
}

// FakeWifiSource is an in-memory WifiSource for tests.
type FakeWifiSource struct {
	mu       sync.Mutex
	rssi     int
	callback func(int)
}

func NewFakeWifiSource() *FakeWifiSource {
	return &FakeWifiSource{rssi: pkg.SignalUnavailable}
}

func (f *FakeWifiSource) RSSI() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rssi
}

func (f *FakeWifiSource) Subscribe(fn func(int)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callback = fn
	return nil
}

func (f *FakeWifiSource) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callback = nil
}

// SetRSSI stores the reading and fires the change callback when installed.
func (f *FakeWifiSource) SetRSSI(rssi int) {
	f.mu.Lock()
	f.rssi = rssi
	cb := f.callback
	f.mu.Unlock()
	if cb != nil {
		cb(rssi)
	}
}

// Subscribed reports whether a callback is installed.
func (f *FakeWifiSource) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callback != nil
}

// FakeSourceProvider hands out fakes per slot, creating them on demand.
type FakeSourceProvider struct {
	mu        sync.Mutex
	Cellulars map[int]*FakeCellularSource
	Wifis     map[int]*FakeWifiSource
}

func NewFakeSourceProvider() *FakeSourceProvider {
	return &FakeSourceProvider{
		Cellulars: make(map[int]*FakeCellularSource),
		Wifis:     make(map[int]*FakeWifiSource),
	}
}

func (p *FakeSourceProvider) CellularSource(slot int) CellularSource {
	p.mu.Lock()
	defer p.mu.Unlock()
	src, ok := p.Cellulars[slot]
	if !ok {
		src = NewFakeCellularSource()
		p.Cellulars[slot] = src
	}
	return src
}

func (p *FakeSourceProvider) WifiSource(slot int) WifiSource {
	p.mu.Lock()
	defer p.mu.Unlock()
	src, ok := p.Wifis[slot]
	if !ok {
		src = NewFakeWifiSource()
		p.Wifis[slot] = src
	}
	return src
}

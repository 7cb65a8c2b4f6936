package qualmon

import (
	"sync"

	"github.com/telcoware/qns/pkg"
	"github.com/telcoware/qns/pkg/logx"
	"github.com/telcoware/qns/pkg/telem"
)

// Monitor is the registration surface shared by both monitor variants.
type Monitor interface {
	RegisterThresholdChange(listener ThresholdListener, capability pkg.NetCapability, slot int, thresholds []pkg.Threshold)
	UpdateThresholdsForNetCapability(capability pkg.NetCapability, slot int, thresholds []pkg.Threshold)
	UnregisterThresholdChange(capability pkg.NetCapability, slot int)
	SignalThresholdInfo() []SignalThresholdInfo
	CurrentQuality(an pkg.AccessNetwork, meas pkg.Measurement) int
	Close()
}

var (
	_ Monitor = (*CellularMonitor)(nil)
	_ Monitor = (*WifiMonitor)(nil)
)

// SourceProvider supplies platform signal sources per slot.
type SourceProvider interface {
	CellularSource(slot int) CellularSource
	WifiSource(slot int) WifiSource
}

// Registry owns one monitor per (transport, slot). The surrounding service
// constructs one registry and hands it to consumers; there is no package
// level singleton.
type Registry struct {
	mu       sync.Mutex
	provider SourceProvider
	logger   *logx.Logger
	store    *telem.Store

	cellular map[int]*CellularMonitor
	wifi     map[int]*WifiMonitor
	closed   bool
}

// NewRegistry creates a registry. store may be nil.
func NewRegistry(provider SourceProvider, logger *logx.Logger, store *telem.Store) *Registry {
	if logger == nil {
		logger = logx.NewLogger("info", "qualmon")
	}
	return &Registry{
		provider: provider,
		logger:   logger,
		store:    store,
		cellular: make(map[int]*CellularMonitor),
		wifi:     make(map[int]*WifiMonitor),
	}
}

// Cellular returns the slot's cellular monitor, constructing it on first
// use. Returns nil after Close.
func (r *Registry) Cellular(slot int) *CellularMonitor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	m, ok := r.cellular[slot]
	if !ok {
		m = NewCellularMonitor(r.provider.CellularSource(slot), slot, r.logger, r.store)
		r.cellular[slot] = m
		r.logger.Info("created cellular monitor", "slot", slot)
	}
	return m
}

// Wifi returns the slot's Wi-Fi monitor, constructing it on first use.
// Returns nil after Close.
func (r *Registry) Wifi(slot int) *WifiMonitor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	m, ok := r.wifi[slot]
	if !ok {
		m = NewWifiMonitor(r.provider.WifiSource(slot), slot, r.logger, r.store)
		r.wifi[slot] = m
		r.logger.Info("created wifi monitor", "slot", slot)
	}
	return m
}

// Close disposes every monitor. Idempotent and safe from any thread.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	cellular := r.cellular
	wifi := r.wifi
	r.cellular = make(map[int]*CellularMonitor)
	r.wifi = make(map[int]*WifiMonitor)
	r.mu.Unlock()

	for _, m := range cellular {
		m.Close()
	}
	for _, m := range wifi {
		m.Close()
	}
}

package qualmon

import (
	"sync"
	"time"

	"github.com/telcoware/qns/pkg"
	"github.com/telcoware/qns/pkg/logx"
	"github.com/telcoware/qns/pkg/metrics"
	"github.com/telcoware/qns/pkg/telem"
)

// WifiMonitor tracks RSSI thresholds for one slot's Wi-Fi transport. Only
// the RSSI measurement exists on this transport; thresholds registered here
// ignore their access network field.
type WifiMonitor struct {
	logger *logx.Logger
	source WifiSource
	slot   int
	store  *telem.Store

	w         *worker
	closeOnce sync.Once

	// Worker-owned state.
	consumers  map[consumerKey]*consumerState
	merged     []SignalThresholdInfo
	subscribed bool
	closed     bool
}

// NewWifiMonitor creates a monitor bound to one slot's Wi-Fi source. store
// may be nil to disable sample recording.
func NewWifiMonitor(source WifiSource, slot int, logger *logx.Logger, store *telem.Store) *WifiMonitor {
	if logger == nil {
		logger = logx.NewLogger("info", "qualmon")
	}
	return &WifiMonitor{
		logger:    logger.WithComponent("qualmon.wifi"),
		source:    source,
		slot:      slot,
		store:     store,
		w:         newWorker(),
		consumers: make(map[consumerKey]*consumerState),
	}
}

// RegisterThresholdChange installs or replaces the listener and thresholds
// for (capability, slot). Enqueues and returns immediately.
func (m *WifiMonitor) RegisterThresholdChange(listener ThresholdListener, capability pkg.NetCapability, slot int, thresholds []pkg.Threshold) {
	m.w.submit(func() {
		if m.closed {
			return
		}
		k := consumerKey{capability: capability, slot: slot}
		if prev, ok := m.consumers[k]; ok {
			prev.cancelTimer()
		}
		st := &consumerState{listener: listener}
		st.setThresholds(thresholds)
		m.consumers[k] = st
		m.logger.Debug("registered consumer",
			"capability", capability.String(), "slot", slot, "thresholds", len(st.thresholds))
		m.recompute()
	})
}

// UpdateThresholdsForNetCapability replaces only the threshold list for an
// existing registration.
func (m *WifiMonitor) UpdateThresholdsForNetCapability(capability pkg.NetCapability, slot int, thresholds []pkg.Threshold) {
	m.w.submit(func() {
		if m.closed {
			return
		}
		st, ok := m.consumers[consumerKey{capability: capability, slot: slot}]
		if !ok {
			m.logger.Warn("update for unregistered consumer",
				"capability", capability.String(), "slot", slot)
			return
		}
		st.setThresholds(thresholds)
		m.recompute()
	})
}

// UnregisterThresholdChange removes (capability, slot) entirely.
func (m *WifiMonitor) UnregisterThresholdChange(capability pkg.NetCapability, slot int) {
	m.w.submit(func() {
		if m.closed {
			return
		}
		k := consumerKey{capability: capability, slot: slot}
		st, ok := m.consumers[k]
		if !ok {
			return
		}
		st.cancelTimer()
		delete(m.consumers, k)
		m.recompute()
	})
}

// SignalThresholdInfo returns the merged RSSI threshold view.
func (m *WifiMonitor) SignalThresholdInfo() []SignalThresholdInfo {
	var out []SignalThresholdInfo
	m.w.call(func() {
		out = copyInfos(m.merged)
	})
	return out
}

// CurrentQuality returns the live RSSI regardless of the requested
// measurement pair; pkg.SignalUnavailable without an active connection.
func (m *WifiMonitor) CurrentQuality(_ pkg.AccessNetwork, _ pkg.Measurement) int {
	quality := pkg.SignalUnavailable
	m.w.call(func() {
		if !m.closed {
			quality = m.source.RSSI()
		}
	})
	return quality
}

// RegisteredRoveInThreshold returns the single RSSI value tracked for
// rove-in-oriented thresholds: the smallest EQUAL_OR_LARGER value across
// all consumers, the most conservative entry point. Returns
// pkg.SignalUnavailable when none is registered.
func (m *WifiMonitor) RegisteredRoveInThreshold() int {
	return m.registeredThreshold(pkg.MatchEqualOrLarger)
}

// RegisteredRoveOutThreshold returns the single RSSI value tracked for
// rove-out-oriented thresholds: the largest EQUAL_OR_SMALLER value across
// all consumers, the most conservative exit point.
func (m *WifiMonitor) RegisteredRoveOutThreshold() int {
	return m.registeredThreshold(pkg.MatchEqualOrSmaller)
}

func (m *WifiMonitor) registeredThreshold(match pkg.MatchType) int {
	result := pkg.SignalUnavailable
	m.w.call(func() {
		for _, st := range m.consumers {
			for _, th := range st.thresholds {
				if th.Match != match {
					continue
				}
				if result == pkg.SignalUnavailable {
					result = th.Value
					continue
				}
				if match == pkg.MatchEqualOrLarger && th.Value < result {
					result = th.Value
				}
				if match == pkg.MatchEqualOrSmaller && th.Value > result {
					result = th.Value
				}
			}
		}
	})
	return result
}

// Close releases the platform subscription and clears all registrations.
// Idempotent and safe from any thread.
func (m *WifiMonitor) Close() {
	m.closeOnce.Do(func() {
		m.w.call(func() {
			for _, st := range m.consumers {
				st.cancelTimer()
			}
			m.consumers = make(map[consumerKey]*consumerState)
			if m.subscribed {
				m.source.Unsubscribe()
				m.subscribed = false
			}
			m.merged = nil
			m.closed = true
			metrics.ThresholdRegistrations.WithLabelValues(pkg.TransportWifi.String()).Set(0)
		})
		m.w.close()
	})
}

// recompute rebuilds the merged view after a registry change. Runs on the
// worker.
func (m *WifiMonitor) recompute() {
	lists := make(map[consumerKey][]pkg.Threshold, len(m.consumers))
	for k, st := range m.consumers {
		lists[k] = st.thresholds
	}
	m.merged = mergeThresholds(lists)

	metrics.ThresholdRegistrations.WithLabelValues(pkg.TransportWifi.String()).
		Set(float64(len(m.consumers)))

	if len(m.consumers) > 0 && !m.subscribed {
		if err := m.source.Subscribe(m.onRSSIChanged); err != nil {
			m.logger.Warn("failed to subscribe to rssi updates", "error", err)
			return
		}
		m.subscribed = true
	} else if len(m.consumers) == 0 && m.subscribed {
		m.source.Unsubscribe()
		m.subscribed = false
	}
}

// onRSSIChanged is the platform broadcast handler; it hands the reading to
// the worker.
func (m *WifiMonitor) onRSSIChanged(rssi int) {
	m.w.submit(func() {
		if m.closed {
			return
		}
		metrics.SignalEvents.WithLabelValues(pkg.TransportWifi.String()).Inc()
		if m.store != nil && rssi != pkg.SignalUnavailable {
			m.store.Add(pkg.TransportWifi, m.slot, telem.Sample{
				Timestamp:     time.Now(),
				AccessNetwork: pkg.IWLAN,
				Measurement:   pkg.RSSI,
				Value:         rssi,
			})
		}
		for k, st := range m.consumers {
			m.evaluateConsumer(k, st, rssi)
		}
	})
}

// evaluateConsumer updates one consumer's match state against the RSSI and
// notifies, immediately or after the backhaul timer, when a threshold is
// newly crossed. Runs on the worker.
func (m *WifiMonitor) evaluateConsumer(k consumerKey, st *consumerState, rssi int) {
	newly := false
	any := false
	for i, th := range st.thresholds {
		match := th.Matches(rssi)
		if match && !st.matched[i] {
			newly = true
		}
		if match {
			any = true
		}
		st.matched[i] = match
	}

	if !any {
		st.cancelTimer()
		return
	}
	if !newly {
		return
	}

	wait := minWaitMS(st.thresholds, st.matched)
	if wait <= 0 {
		m.notify(k, st)
		return
	}

	st.cancelTimer()
	st.timer = time.AfterFunc(time.Duration(wait)*time.Millisecond, func() {
		m.w.submit(func() {
			m.deferredNotify(k)
		})
	})
}

// deferredNotify fires a backhaul-delayed notification if the condition
// still holds against the live RSSI.
func (m *WifiMonitor) deferredNotify(k consumerKey) {
	if m.closed {
		return
	}
	st, ok := m.consumers[k]
	if !ok {
		return
	}
	st.timer = nil

	rssi := m.source.RSSI()
	for i, th := range st.thresholds {
		if st.matched[i] && th.Matches(rssi) {
			m.notify(k, st)
			return
		}
	}
}

func (m *WifiMonitor) notify(k consumerKey, st *consumerState) {
	if st.listener == nil {
		return
	}
	metrics.Notifications.WithLabelValues(pkg.TransportWifi.String()).Inc()
	ths := pkg.CopyThresholds(st.thresholds)
	listener := st.listener
	go listener.OnThresholdsMatched(k.capability, k.slot, ths)
}

// settle blocks until all queued worker tasks have run. Test hook.
func (m *WifiMonitor) settle() {
	m.w.call(func() {})
}

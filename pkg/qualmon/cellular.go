package qualmon

import (
	"sync"
	"time"

	"github.com/telcoware/qns/pkg"
	"github.com/telcoware/qns/pkg/logx"
	"github.com/telcoware/qns/pkg/metrics"
	"github.com/telcoware/qns/pkg/signal"
	"github.com/telcoware/qns/pkg/telem"
)

// CellularMonitor tracks the union of all consumers' cellular thresholds
// for one slot, keeps the platform threshold request minimal, and notifies
// listeners whose thresholds are newly crossed.
type CellularMonitor struct {
	logger *logx.Logger
	source CellularSource
	slot   int
	store  *telem.Store

	w         *worker
	closeOnce sync.Once

	// Worker-owned state.
	consumers  map[consumerKey]*consumerState
	merged     []SignalThresholdInfo
	subscribed bool
	requested  bool
	closed     bool
}

// NewCellularMonitor creates a monitor bound to one slot's cellular source.
// store may be nil to disable sample recording.
func NewCellularMonitor(source CellularSource, slot int, logger *logx.Logger, store *telem.Store) *CellularMonitor {
	if logger == nil {
		logger = logx.NewLogger("info", "qualmon")
	}
	return &CellularMonitor{
		logger:    logger.WithComponent("qualmon.cellular"),
		source:    source,
		slot:      slot,
		store:     store,
		w:         newWorker(),
		consumers: make(map[consumerKey]*consumerState),
	}
}

// RegisterThresholdChange installs or replaces the listener and thresholds
// for (capability, slot). A nil threshold slice registers the listener with
// zero thresholds. The call enqueues and returns immediately.
func (m *CellularMonitor) RegisterThresholdChange(listener ThresholdListener, capability pkg.NetCapability, slot int, thresholds []pkg.Threshold) {
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
// existing registration; the listener is untouched. A nil slice clears the
// key's contribution without removing the listener.
func (m *CellularMonitor) UpdateThresholdsForNetCapability(capability pkg.NetCapability, slot int, thresholds []pkg.Threshold) {
	m.w.submit(func() {
		if m.closed {
			return
		}
		k := consumerKey{capability: capability, slot: slot}
		st, ok := m.consumers[k]
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
func (m *CellularMonitor) UnregisterThresholdChange(capability pkg.NetCapability, slot int) {
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

// SignalThresholdInfo returns the current merged threshold view: one entry
// per distinct (RAT, measurement) with ascending distinct values and the
// minimum hysteresis among contributors.
func (m *CellularMonitor) SignalThresholdInfo() []SignalThresholdInfo {
	var out []SignalThresholdInfo
	m.w.call(func() {
		out = copyInfos(m.merged)
	})
	return out
}

// CurrentQuality extracts the requested value from the live snapshot, or
// pkg.SignalUnavailable for unknown combinations.
func (m *CellularMonitor) CurrentQuality(an pkg.AccessNetwork, meas pkg.Measurement) int {
	quality := pkg.SignalUnavailable
	m.w.call(func() {
		if !m.closed {
			quality = signal.Extract(m.source.Snapshot(), an, meas)
		}
	})
	return quality
}

// Close releases the platform subscription and clears all registrations.
// Idempotent and safe from any thread; pending hysteresis timers are
// cancelled before the maps are cleared.
func (m *CellularMonitor) Close() {
	m.closeOnce.Do(func() {
		m.w.call(func() {
			for _, st := range m.consumers {
				st.cancelTimer()
			}
			m.consumers = make(map[consumerKey]*consumerState)
			if m.requested {
				if err := m.source.ClearThresholdUpdates(); err != nil {
					m.logger.Warn("failed to clear threshold updates on close", "error", err)
				}
				m.requested = false
			}
			if m.subscribed {
				m.source.Unsubscribe()
				m.subscribed = false
			}
			m.merged = nil
			m.closed = true
			metrics.ThresholdRegistrations.WithLabelValues(pkg.TransportCellular.String()).Set(0)
		})
		m.w.close()
	})
}

// recompute rebuilds the merged view after a registry change and refreshes
// the platform subscription when the union changed. Runs on the worker.
func (m *CellularMonitor) recompute() {
	lists := make(map[consumerKey][]pkg.Threshold, len(m.consumers))
	for k, st := range m.consumers {
		lists[k] = st.thresholds
	}
	merged := mergeThresholds(lists)
	changed := !infosEqual(merged, m.merged)
	wasEmpty := len(m.merged) == 0
	m.merged = merged

	metrics.ThresholdRegistrations.WithLabelValues(pkg.TransportCellular.String()).
		Set(float64(len(m.consumers)))

	m.ensureSubscription()
	if changed {
		m.refreshPlatform(wasEmpty)
	}
}

// ensureSubscription keeps the platform callback installed while any
// consumer is registered. Best effort; registry state never depends on it.
func (m *CellularMonitor) ensureSubscription() {
	if len(m.consumers) > 0 && !m.subscribed {
		if err := m.source.Subscribe(m.onSignalChanged); err != nil {
			m.logger.Warn("failed to subscribe to signal updates", "error", err)
			return
		}
		m.subscribed = true
	} else if len(m.consumers) == 0 && m.subscribed {
		m.source.Unsubscribe()
		m.subscribed = false
	}
}

// refreshPlatform re-requests threshold updates for the new merged union.
// The clear call is issued only on the non-empty to empty transition.
func (m *CellularMonitor) refreshPlatform(wasEmpty bool) {
	if len(m.merged) == 0 {
		if !wasEmpty && m.requested {
			if err := m.source.ClearThresholdUpdates(); err != nil {
				m.logger.Warn("failed to clear threshold updates", "error", err)
			}
			m.requested = false
		}
		return
	}
	if err := m.source.RequestThresholdUpdates(copyInfos(m.merged)); err != nil {
		m.logger.Warn("failed to request threshold updates", "error", err)
		return
	}
	m.requested = true
}

// onSignalChanged is the platform callback; it hands the snapshot to the
// worker.
func (m *CellularMonitor) onSignalChanged(snap *signal.Snapshot) {
	m.w.submit(func() {
		if m.closed {
			return
		}
		metrics.SignalEvents.WithLabelValues(pkg.TransportCellular.String()).Inc()
		m.recordSamples(snap)
		for k, st := range m.consumers {
			m.evaluateConsumer(k, st, snap)
		}
	})
}

// recordSamples stores one sample per merged (RAT, measurement) entry.
func (m *CellularMonitor) recordSamples(snap *signal.Snapshot) {
	if m.store == nil {
		return
	}
	now := time.Now()
	for _, info := range m.merged {
		v := signal.Extract(snap, info.AccessNetwork, info.Measurement)
		if v == pkg.SignalUnavailable {
			continue
		}
		m.store.Add(pkg.TransportCellular, m.slot, telem.Sample{
			Timestamp:     now,
			AccessNetwork: info.AccessNetwork,
			Measurement:   info.Measurement,
			Value:         v,
		})
	}
}

// evaluateConsumer updates one consumer's match state against the snapshot
// and notifies, immediately or after the hysteresis wait, when at least one
// threshold newly matches. Runs on the worker.
func (m *CellularMonitor) evaluateConsumer(k consumerKey, st *consumerState, snap *signal.Snapshot) {
	newly := false
	any := false
	for i, th := range st.thresholds {
		v := signal.Extract(snap, th.AccessNetwork, th.Measurement)
		match := th.Matches(v)
		if match && !st.matched[i] {
			newly = true
		}
		if match {
			any = true
		}
		st.matched[i] = match
	}

	if !any {
		// Condition reverted before a pending deferred notification fired.
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

// deferredNotify fires a hysteresis-delayed notification if the consumer is
// still registered and its condition still holds against the live snapshot.
func (m *CellularMonitor) deferredNotify(k consumerKey) {
	if m.closed {
		return
	}
	st, ok := m.consumers[k]
	if !ok {
		return
	}
	st.timer = nil

	snap := m.source.Snapshot()
	for i, th := range st.thresholds {
		if st.matched[i] && th.Matches(signal.Extract(snap, th.AccessNetwork, th.Measurement)) {
			m.notify(k, st)
			return
		}
	}
}

// notify delivers the consumer's full current threshold list on a separate
// goroutine.
func (m *CellularMonitor) notify(k consumerKey, st *consumerState) {
	if st.listener == nil {
		return
	}
	metrics.Notifications.WithLabelValues(pkg.TransportCellular.String()).Inc()
	ths := pkg.CopyThresholds(st.thresholds)
	listener := st.listener
	go listener.OnThresholdsMatched(k.capability, k.slot, ths)
}

// settle blocks until all queued worker tasks have run. Test hook.
func (m *CellularMonitor) settle() {
	m.w.call(func() {})
}

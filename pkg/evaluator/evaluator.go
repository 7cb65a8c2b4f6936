// Package evaluator consumes the selection policy and the quality monitor
// notifications for one (capability, slot) and turns them into rove-in /
// rove-out decisions for the surrounding service.
package evaluator

import (
	"strings"
	"sync"
	"time"

	"github.com/telcoware/qns/pkg"
	"github.com/telcoware/qns/pkg/logx"
	"github.com/telcoware/qns/pkg/metrics"
	"github.com/telcoware/qns/pkg/mqtt"
	"github.com/telcoware/qns/pkg/policy"
	"github.com/telcoware/qns/pkg/predictive"
	"github.com/telcoware/qns/pkg/qnsconfig"
	"github.com/telcoware/qns/pkg/qualmon"
	"github.com/telcoware/qns/pkg/telem"
)

// Decision is one rove decision emitted to the surrounding service.
type Decision struct {
	Direction pkg.RoveDirection
	Transport pkg.Transport
	Reason    string
}

// DecisionFunc receives decisions. Called from monitor notification
// goroutines.
type DecisionFunc func(Decision)

// defaultMeasurement is the measurement the evaluator judges each cellular
// RAT by.
var defaultMeasurement = map[pkg.AccessNetwork]pkg.Measurement{
	pkg.NGRAN:  pkg.SSRSRP,
	pkg.EUTRAN: pkg.RSRP,
	pkg.UTRAN:  pkg.RSCP,
	pkg.GERAN:  pkg.RSSI,
}

// Evaluator drives handover decisions for one capability on one slot.
type Evaluator struct {
	logger     *logx.Logger
	config     *qnsconfig.Config
	builder    *policy.Builder
	capability pkg.NetCapability
	slot       int

	cellular *qualmon.CellularMonitor
	wifi     *qualmon.WifiMonitor

	store      *telem.Store
	publisher  *mqtt.Publisher
	onDecision DecisionFunc

	mu               sync.Mutex
	pre              pkg.PreCondition
	currentTransport pkg.Transport
	closed           bool
}

// New creates an evaluator and registers its derived thresholds with both
// monitors. store, publisher and onDecision may be nil.
func New(cfg *qnsconfig.Config, capability pkg.NetCapability, slot int,
	cellular *qualmon.CellularMonitor, wifi *qualmon.WifiMonitor,
	store *telem.Store, publisher *mqtt.Publisher,
	onDecision DecisionFunc, logger *logx.Logger,
) *Evaluator {
	if logger == nil {
		logger = logx.NewLogger("info", "evaluator")
	}
	e := &Evaluator{
		logger:           logger.WithComponent("evaluator"),
		config:           cfg,
		builder:          policy.NewBuilder(cfg, capability, logger),
		capability:       capability,
		slot:             slot,
		cellular:         cellular,
		wifi:             wifi,
		store:            store,
		publisher:        publisher,
		onDecision:       onDecision,
		pre:              pkg.PreCondition{CallType: pkg.CallIdle, Preference: pkg.WifiPref, Coverage: pkg.CoverageHome},
		currentTransport: pkg.TransportCellular,
	}

	cellThs, wifiThs := e.deriveThresholds()
	e.cellular.RegisterThresholdChange(qualmon.ThresholdListenerFunc(e.onCellularMatched), capability, slot, cellThs)
	e.wifi.RegisterThresholdChange(qualmon.ThresholdListenerFunc(e.onWifiMatched), capability, slot, wifiThs)
	return e
}

// SetCallType updates the call state and re-derives registrations.
func (e *Evaluator) SetCallType(ct pkg.CallType) {
	e.mu.Lock()
	e.pre.CallType = ct
	e.mu.Unlock()
	e.refreshThresholds()
}

// SetPreference updates the transport preference and re-derives
// registrations.
func (e *Evaluator) SetPreference(p pkg.Preference) {
	e.mu.Lock()
	e.pre.Preference = p
	e.mu.Unlock()
	e.refreshThresholds()
}

// SetCoverage updates the coverage state and re-derives registrations.
func (e *Evaluator) SetCoverage(c pkg.Coverage) {
	e.mu.Lock()
	e.pre.Coverage = c
	e.mu.Unlock()
	e.refreshThresholds()
}

// SetCurrentTransport records where the service currently routes this
// capability's traffic.
func (e *Evaluator) SetCurrentTransport(t pkg.Transport) {
	e.mu.Lock()
	e.currentTransport = t
	e.mu.Unlock()
}

// PreCondition returns the current precondition.
func (e *Evaluator) PreCondition() pkg.PreCondition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pre
}

// refreshThresholds pushes re-derived thresholds to both monitors, leaving
// the listeners in place.
func (e *Evaluator) refreshThresholds() {
	cellThs, wifiThs := e.deriveThresholds()
	e.cellular.UpdateThresholdsForNetCapability(e.capability, e.slot, cellThs)
	e.wifi.UpdateThresholdsForNetCapability(e.capability, e.slot, wifiThs)
}

// deriveThresholds maps the condition tags of the current policies onto
// concrete thresholds built from the configured level boundaries.
func (e *Evaluator) deriveThresholds() (cellular, wifi []pkg.Threshold) {
	e.mu.Lock()
	pre := e.pre
	e.mu.Unlock()

	tags := make(map[string]struct{})
	for _, direction := range []pkg.RoveDirection{pkg.RoveIn, pkg.RoveOut} {
		for _, grp := range e.builder.Policy(direction, pre) {
			for _, tag := range splitGroup(grp) {
				tags[tag] = struct{}{}
			}
		}
	}

	wait := e.config.WaitMSForCallType(pre.CallType)
	addWifi := func(value int, match pkg.MatchType) {
		th := pkg.NewThreshold(pkg.IWLAN, pkg.RSSI, value, match)
		th.SetWaitMS(wait)
		wifi = append(wifi, th)
	}
	addCellular := func(level func(qnsconfig.Levels) int, match pkg.MatchType) {
		for _, an := range pkg.CellularAccessNetworks {
			if !e.config.IsAccessNetworkAllowed(an, e.capability) {
				continue
			}
			lv, ok := e.config.CellularLevelsFor(an, defaultMeasurement[an])
			if !ok {
				continue
			}
			th := pkg.NewThreshold(an, defaultMeasurement[an], level(lv), match)
			th.SetWaitMS(wait)
			cellular = append(cellular, th)
		}
	}

	for tag := range tags {
		switch tag {
		case pkg.CondWifiGood:
			addWifi(e.config.WifiRSSIGood, pkg.MatchEqualOrLarger)
		case pkg.CondWifiBad:
			addWifi(e.config.WifiRSSIBad, pkg.MatchEqualOrSmaller)
		case pkg.CondCellGood:
			addCellular(func(lv qnsconfig.Levels) int { return lv.Good }, pkg.MatchEqualOrLarger)
		case pkg.CondCellBad:
			addCellular(func(lv qnsconfig.Levels) int { return lv.Bad }, pkg.MatchEqualOrSmaller)
		case pkg.CondCellTolerable:
			addCellular(func(lv qnsconfig.Levels) int { return lv.Tolerable }, pkg.MatchEqualOrLarger)
		}
	}
	return cellular, wifi
}

func (e *Evaluator) onCellularMatched(capability pkg.NetCapability, slot int, ths []pkg.Threshold) {
	e.publishCrossing(pkg.TransportCellular, ths)
	e.Evaluate()
}

func (e *Evaluator) onWifiMatched(capability pkg.NetCapability, slot int, ths []pkg.Threshold) {
	e.publishCrossing(pkg.TransportWifi, ths)
	e.Evaluate()
}

func (e *Evaluator) publishCrossing(transport pkg.Transport, ths []pkg.Threshold) {
	if e.publisher == nil {
		return
	}
	err := e.publisher.PublishCrossing(&mqtt.CrossingEvent{
		Slot:       e.slot,
		Capability: e.capability.String(),
		Transport:  transport.String(),
		Thresholds: mqtt.ThresholdStrings(ths),
	})
	if err != nil {
		e.logger.Warn("failed to publish crossing event", "error", err)
	}
}

// Evaluate checks the rove policies against current link qualities and
// emits a decision when the first satisfied group calls for a transport
// change. Rove-in is considered while on cellular, rove-out while on Wi-Fi.
func (e *Evaluator) Evaluate() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	pre := e.pre
	current := e.currentTransport
	e.mu.Unlock()

	direction := pkg.RoveIn
	target := pkg.TransportWifi
	if current == pkg.TransportWifi {
		direction = pkg.RoveOut
		target = pkg.TransportCellular
	}

	groups := e.builder.Policy(direction, pre)
	if len(groups) == 0 {
		// No governing condition: rove-in never fires, rove-out is always
		// eligible.
		if direction == pkg.RoveOut {
			e.emit(Decision{Direction: direction, Transport: target, Reason: "no governing condition"})
			return
		}
		metrics.Evaluations.WithLabelValues("no_policy").Inc()
		return
	}

	state := e.conditionState()
	for _, grp := range groups {
		if e.groupSatisfied(grp, state) {
			e.emit(Decision{Direction: direction, Transport: target, Reason: grp})
			return
		}
	}
	metrics.Evaluations.WithLabelValues("hold").Inc()
}

// conditionState captures the truth value of every condition tag from the
// live monitors.
type conditionState struct {
	tags map[string]bool
}

func (e *Evaluator) conditionState() conditionState {
	st := conditionState{tags: make(map[string]bool)}

	rssi := e.wifi.CurrentQuality(pkg.IWLAN, pkg.RSSI)
	wifiAvailable := rssi != pkg.SignalUnavailable
	st.tags[pkg.CondWifiAvailable] = wifiAvailable
	st.tags[pkg.CondWifiGood] = wifiAvailable && rssi >= e.config.WifiRSSIGood
	st.tags[pkg.CondWifiBad] = wifiAvailable && rssi <= e.config.WifiRSSIBad

	// The serving cellular RAT is the highest-priority allowed RAT with an
	// available reading.
	var servingLevels qnsconfig.Levels
	servingValue := pkg.SignalUnavailable
	haveServing := false
	for _, an := range pkg.CellularAccessNetworks {
		allowed := e.config.IsAccessNetworkAllowed(an, e.capability)
		v := pkg.SignalUnavailable
		if allowed {
			v = e.cellular.CurrentQuality(an, defaultMeasurement[an])
		}
		st.tags[pkg.CondAvailable(an)] = v != pkg.SignalUnavailable
		if !haveServing && v != pkg.SignalUnavailable {
			if lv, ok := e.config.CellularLevelsFor(an, defaultMeasurement[an]); ok {
				servingLevels = lv
				servingValue = v
				haveServing = true
			}
		}
	}
	if haveServing {
		st.tags[pkg.CondCellGood] = servingValue >= servingLevels.Good
		st.tags[pkg.CondCellBad] = servingValue <= servingLevels.Bad
		st.tags[pkg.CondCellTolerable] = servingValue >= servingLevels.Tolerable && servingValue < servingLevels.Good
	}
	return st
}

func (e *Evaluator) groupSatisfied(grp string, st conditionState) bool {
	tags := splitGroup(grp)
	for _, tag := range tags {
		if !st.tags[tag] {
			return false
		}
	}
	return true
}

// splitGroup strips the condition prefix and splits the tags; a bare prefix
// yields no tags (unconditional).
func splitGroup(grp string) []string {
	body := strings.TrimPrefix(grp, pkg.CondPrefix)
	if body == "" {
		return nil
	}
	return strings.Split(body, ",")
}

// emit delivers a decision to the service and observers.
func (e *Evaluator) emit(d Decision) {
	metrics.Evaluations.WithLabelValues(d.Direction.String()).Inc()
	e.logger.Info("rove decision",
		"direction", d.Direction.String(),
		"transport", d.Transport.String(),
		"capability", e.capability.String(),
		"slot", e.slot,
		"reason", d.Reason)

	if e.publisher != nil {
		err := e.publisher.PublishDecision(&mqtt.DecisionEvent{
			Slot:       e.slot,
			Capability: e.capability.String(),
			Direction:  d.Direction.String(),
			Transport:  d.Transport.String(),
			Reason:     d.Reason,
		})
		if err != nil {
			e.logger.Warn("failed to publish decision event", "error", err)
		}
	}
	if e.onDecision != nil {
		e.onDecision(d)
	}
}

// PredictedRoveOut estimates, from recorded Wi-Fi history, how long until
// RSSI decays to the rove-out boundary. ok is false without enough history
// or when the trend is not decaying.
func (e *Evaluator) PredictedRoveOut(window time.Duration) (time.Duration, bool) {
	if e.store == nil {
		return 0, false
	}
	samples := e.store.Since(pkg.TransportWifi, e.slot, window, pkg.RSSI)
	trend, err := predictive.AnalyzeTrend(samples)
	if err != nil {
		return 0, false
	}
	if trend.SlopePerSec >= 0 {
		return 0, false
	}
	return trend.TimeToCross(e.config.WifiRSSIBad, time.Now())
}

// Close unregisters from both monitors. Idempotent.
func (e *Evaluator) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.cellular.UnregisterThresholdChange(e.capability, e.slot)
	e.wifi.UnregisterThresholdChange(e.capability, e.slot)
}

package evaluator

import (
	"testing"
	"time"

	"github.com/telcoware/qns/pkg"
	"github.com/telcoware/qns/pkg/logx"
	"github.com/telcoware/qns/pkg/qnsconfig"
	"github.com/telcoware/qns/pkg/qualmon"
	"github.com/telcoware/qns/pkg/signal"
	"github.com/telcoware/qns/pkg/telem"
)

type harness struct {
	cfg       *qnsconfig.Config
	provider  *qualmon.FakeSourceProvider
	registry  *qualmon.Registry
	eval      *Evaluator
	decisions chan Decision
}

func newHarness(t *testing.T, cfg *qnsconfig.Config) *harness {
	t.Helper()
	logger := logx.NewLogger("error", "evaluator-test")
	provider := qualmon.NewFakeSourceProvider()
	registry := qualmon.NewRegistry(provider, logger, nil)
	decisions := make(chan Decision, 16)

	h := &harness{
		cfg:       cfg,
		provider:  provider,
		registry:  registry,
		decisions: decisions,
	}
	h.eval = New(cfg, pkg.CapIMS, 0, registry.Cellular(0), registry.Wifi(0), nil, nil,
		func(d Decision) { decisions <- d }, logger)
	t.Cleanup(func() {
		h.eval.Close()
		h.registry.Close()
	})
	return h
}

func (h *harness) waitDecision(t *testing.T, timeout time.Duration) Decision {
	t.Helper()
	select {
	case d := <-h.decisions:
		return d
	case <-time.After(timeout):
		t.Fatal("timed out waiting for decision")
		return Decision{}
	}
}

func (h *harness) expectNoDecision(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case d := <-h.decisions:
		t.Fatalf("unexpected decision: %+v", d)
	case <-time.After(wait):
	}
}

func TestEvaluatorRegistersDerivedThresholds(t *testing.T) {
	h := newHarness(t, qnsconfig.DefaultConfig())

	// WIFI_PREF base policies reference WIFI_GOOD and WIFI_BAD, so the
	// Wi-Fi monitor carries the two configured RSSI boundaries.
	infos := h.registry.Wifi(0).SignalThresholdInfo()
	if len(infos) != 1 {
		t.Fatalf("wifi merged entries = %d, want 1", len(infos))
	}
	if len(infos[0].Values) != 2 {
		t.Fatalf("wifi merged values = %v, want good and bad boundaries", infos[0].Values)
	}
	if infos[0].Values[0] != h.cfg.WifiRSSIBad || infos[0].Values[1] != h.cfg.WifiRSSIGood {
		t.Errorf("wifi boundaries = %v", infos[0].Values)
	}
}

func TestEvaluatorRoveInOnGoodWifi(t *testing.T) {
	h := newHarness(t, qnsconfig.DefaultConfig())

	// On cellular; Wi-Fi comes up well above the good boundary.
	h.provider.Wifis[0].SetRSSI(-60)

	d := h.waitDecision(t, 2*time.Second)
	if d.Direction != pkg.RoveIn || d.Transport != pkg.TransportWifi {
		t.Fatalf("decision = %+v, want rove-in to wifi", d)
	}
}

func TestEvaluatorHoldsOnMediocreWifi(t *testing.T) {
	h := newHarness(t, qnsconfig.DefaultConfig())

	// Between the boundaries: no threshold crossed, no decision.
	h.provider.Wifis[0].SetRSSI(-75)
	h.expectNoDecision(t, 300*time.Millisecond)
}

func TestEvaluatorRoveOutOnBadWifi(t *testing.T) {
	h := newHarness(t, qnsconfig.DefaultConfig())
	h.eval.SetCurrentTransport(pkg.TransportWifi)

	h.provider.Wifis[0].SetRSSI(-85)

	d := h.waitDecision(t, 2*time.Second)
	if d.Direction != pkg.RoveOut || d.Transport != pkg.TransportCellular {
		t.Fatalf("decision = %+v, want rove-out to cellular", d)
	}
}

func TestEvaluatorCellPrefNeedsBothConditions(t *testing.T) {
	cfg := qnsconfig.DefaultConfig()
	h := newHarness(t, cfg)
	h.eval.SetPreference(pkg.CellPref)

	// Good Wi-Fi alone does not satisfy WIFI_GOOD,CELLULAR_BAD while LTE
	// is healthy.
	lte := signal.NewLTESignal()
	lte.RSRP = -95
	h.provider.Cellulars[0].SetSnapshot(&signal.Snapshot{LTE: lte})
	h.provider.Wifis[0].SetRSSI(-60)
	h.expectNoDecision(t, 300*time.Millisecond)

	// Cellular degrading below the bad boundary completes the group.
	lte2 := signal.NewLTESignal()
	lte2.RSRP = -120
	h.provider.Cellulars[0].SetSnapshot(&signal.Snapshot{LTE: lte2})

	d := h.waitDecision(t, 2*time.Second)
	if d.Direction != pkg.RoveIn {
		t.Fatalf("decision = %+v, want rove-in", d)
	}
}

func TestEvaluatorPreconditionUpdates(t *testing.T) {
	h := newHarness(t, qnsconfig.DefaultConfig())

	h.eval.SetPreference(pkg.CellPref)
	h.eval.SetCallType(pkg.CallVoice)
	h.eval.SetCoverage(pkg.CoverageRoam)

	got := h.eval.PreCondition()
	want := pkg.PreCondition{CallType: pkg.CallVoice, Preference: pkg.CellPref, Coverage: pkg.CoverageRoam}
	if got != want {
		t.Fatalf("precondition = %+v, want %+v", got, want)
	}

	// CELL_PREF policies add cellular boundaries to the cellular monitor.
	infos := h.registry.Cellular(0).SignalThresholdInfo()
	if len(infos) == 0 {
		t.Fatal("cell_pref left no cellular thresholds registered")
	}
}

func TestEvaluatorPredictedRoveOut(t *testing.T) {
	cfg := qnsconfig.DefaultConfig()
	store, err := telem.NewStore(time.Hour, 100)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	logger := logx.NewLogger("error", "evaluator-test")
	provider := qualmon.NewFakeSourceProvider()
	registry := qualmon.NewRegistry(provider, logger, store)
	defer registry.Close()

	eval := New(cfg, pkg.CapIMS, 0, registry.Cellular(0), registry.Wifi(0), store, nil, nil, logger)
	defer eval.Close()

	// Seed a decaying RSSI history: 1 dBm lost per second from -60, ending
	// about 10 dBm above the rove-out boundary.
	start := time.Now().Add(-10 * time.Second)
	for i := 0; i < 10; i++ {
		store.Add(pkg.TransportWifi, 0, telem.Sample{
			Timestamp:   start.Add(time.Duration(i) * time.Second),
			Measurement: pkg.RSSI,
			Value:       -60 - i,
		})
	}

	d, ok := eval.PredictedRoveOut(time.Minute)
	if !ok {
		t.Fatal("expected a rove-out prediction for a decaying signal")
	}
	if d <= 0 || d > time.Minute {
		t.Errorf("predicted time to rove-out = %v", d)
	}

	// No history, no prediction.
	if _, ok := eval.PredictedRoveOut(time.Nanosecond); ok {
		t.Error("prediction produced without history")
	}
}

func TestEvaluatorCloseUnregisters(t *testing.T) {
	h := newHarness(t, qnsconfig.DefaultConfig())

	h.eval.Close()
	h.eval.Close()

	if infos := h.registry.Wifi(0).SignalThresholdInfo(); len(infos) != 0 {
		t.Fatalf("thresholds survived close: %v", infos)
	}

	h.provider.Wifis[0].SetRSSI(-60)
	h.expectNoDecision(t, 300*time.Millisecond)
}

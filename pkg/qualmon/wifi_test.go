package qualmon

import (
	"reflect"
	"testing"
	"time"

	"github.com/telcoware/qns/pkg"
)

func wifiThreshold(value int, match pkg.MatchType) pkg.Threshold {
	return pkg.NewThreshold(pkg.IWLAN, pkg.RSSI, value, match)
}

func TestWifiConservativeRoveInSelection(t *testing.T) {
	src := NewFakeWifiSource()
	m := NewWifiMonitor(src, 0, quietLogger(), nil)
	defer m.Close()

	a := newNotifyRecorder()
	b := newNotifyRecorder()
	m.RegisterThresholdChange(a, pkg.CapIMS, 0, []pkg.Threshold{
		wifiThreshold(-100, pkg.MatchEqualOrLarger),
	})
	m.RegisterThresholdChange(b, pkg.CapMMS, 0, []pkg.Threshold{
		wifiThreshold(-80, pkg.MatchEqualOrLarger),
	})

	if got := m.RegisteredRoveInThreshold(); got != -100 {
		t.Fatalf("registered rove-in threshold = %d, want -100 (smallest)", got)
	}

	// Removing the -100 contributor promotes the remaining value.
	m.UnregisterThresholdChange(pkg.CapIMS, 0)
	if got := m.RegisteredRoveInThreshold(); got != -80 {
		t.Fatalf("registered rove-in threshold after removal = %d, want -80", got)
	}
}

func TestWifiConservativeRoveOutSelection(t *testing.T) {
	src := NewFakeWifiSource()
	m := NewWifiMonitor(src, 0, quietLogger(), nil)
	defer m.Close()

	a := newNotifyRecorder()
	m.RegisterThresholdChange(a, pkg.CapIMS, 0, []pkg.Threshold{
		wifiThreshold(-90, pkg.MatchEqualOrSmaller),
		wifiThreshold(-75, pkg.MatchEqualOrSmaller),
	})

	if got := m.RegisteredRoveOutThreshold(); got != -75 {
		t.Fatalf("registered rove-out threshold = %d, want -75 (largest)", got)
	}
	if got := m.RegisteredRoveInThreshold(); got != pkg.SignalUnavailable {
		t.Fatalf("rove-in threshold with no gte entries = %d, want unavailable", got)
	}
}

func TestWifiMergedInfo(t *testing.T) {
	src := NewFakeWifiSource()
	m := NewWifiMonitor(src, 0, quietLogger(), nil)
	defer m.Close()

	a := newNotifyRecorder()
	b := newNotifyRecorder()
	m.RegisterThresholdChange(a, pkg.CapIMS, 0, []pkg.Threshold{
		withWait(wifiThreshold(-70, pkg.MatchEqualOrLarger), 400),
	})
	m.RegisterThresholdChange(b, pkg.CapXCAP, 0, []pkg.Threshold{
		withWait(wifiThreshold(-80, pkg.MatchEqualOrSmaller), 250),
	})

	infos := m.SignalThresholdInfo()
	if len(infos) != 1 {
		t.Fatalf("merged entries = %d, want 1 (single RSSI measurement)", len(infos))
	}
	if !reflect.DeepEqual(infos[0].Values, []int{-80, -70}) {
		t.Errorf("merged values = %v", infos[0].Values)
	}
	if infos[0].HysteresisMS != 250 {
		t.Errorf("merged hysteresis = %d, want 250", infos[0].HysteresisMS)
	}
}

func TestWifiNotifyOnCrossing(t *testing.T) {
	src := NewFakeWifiSource()
	m := NewWifiMonitor(src, 0, quietLogger(), nil)
	defer m.Close()

	a := newNotifyRecorder()
	b := newNotifyRecorder()
	m.RegisterThresholdChange(a, pkg.CapIMS, 0, []pkg.Threshold{
		wifiThreshold(-70, pkg.MatchEqualOrLarger),
	})
	m.RegisterThresholdChange(b, pkg.CapMMS, 0, []pkg.Threshold{
		wifiThreshold(-85, pkg.MatchEqualOrSmaller),
	})
	m.settle()

	// RSSI between the two thresholds: nobody crosses.
	src.SetRSSI(-78)
	a.expectNone(t, 100*time.Millisecond)
	b.expectNone(t, 50*time.Millisecond)

	// Only the rove-in consumer crosses.
	src.SetRSSI(-65)
	got := a.wait(t, 2*time.Second)
	if len(got) != 1 || got[0].Value != -70 {
		t.Errorf("notification thresholds = %v", got)
	}
	b.expectNone(t, 100*time.Millisecond)

	// Only the rove-out consumer crosses.
	src.SetRSSI(-90)
	got = b.wait(t, 2*time.Second)
	if len(got) != 1 || got[0].Value != -85 {
		t.Errorf("notification thresholds = %v", got)
	}
}

func TestWifiBackhaulTimer(t *testing.T) {
	src := NewFakeWifiSource()
	m := NewWifiMonitor(src, 0, quietLogger(), nil)
	defer m.Close()

	a := newNotifyRecorder()
	m.RegisterThresholdChange(a, pkg.CapIMS, 0, []pkg.Threshold{
		withWait(wifiThreshold(-70, pkg.MatchEqualOrLarger), 120),
	})
	m.settle()

	t.Run("condition_persists", func(t *testing.T) {
		src.SetRSSI(-60)
		a.expectNone(t, 40*time.Millisecond)
		a.wait(t, 2*time.Second)
	})

	t.Run("condition_reverts", func(t *testing.T) {
		// Drop out and re-cross, then revert before the timer fires.
		src.SetRSSI(-90)
		src.SetRSSI(-62)
		src.SetRSSI(-90)
		a.expectNone(t, 400*time.Millisecond)
	})
}

func TestWifiCurrentQuality(t *testing.T) {
	src := NewFakeWifiSource()
	m := NewWifiMonitor(src, 0, quietLogger(), nil)
	defer m.Close()

	if got := m.CurrentQuality(pkg.IWLAN, pkg.RSSI); got != pkg.SignalUnavailable {
		t.Fatalf("quality without connection = %d, want unavailable", got)
	}
	src.SetRSSI(-58)
	if got := m.CurrentQuality(pkg.IWLAN, pkg.RSSI); got != -58 {
		t.Fatalf("quality = %d, want -58", got)
	}
}

func TestWifiSubscriptionLifecycle(t *testing.T) {
	src := NewFakeWifiSource()
	m := NewWifiMonitor(src, 0, quietLogger(), nil)
	defer m.Close()

	a := newNotifyRecorder()
	m.RegisterThresholdChange(a, pkg.CapIMS, 0, []pkg.Threshold{
		wifiThreshold(-70, pkg.MatchEqualOrLarger),
	})
	m.settle()
	if !src.Subscribed() {
		t.Fatal("monitor did not subscribe on first registration")
	}

	m.UnregisterThresholdChange(pkg.CapIMS, 0)
	m.settle()
	if src.Subscribed() {
		t.Fatal("monitor kept subscription after last unregister")
	}
}

package pkg

import "testing"

func TestThresholdMatches(t *testing.T) {
	tests := []struct {
		name  string
		th    Threshold
		value int
		want  bool
	}{
		{"gte_above", NewThreshold(EUTRAN, RSRP, -110, MatchEqualOrLarger), -100, true},
		{"gte_equal", NewThreshold(EUTRAN, RSRP, -110, MatchEqualOrLarger), -110, true},
		{"gte_below", NewThreshold(EUTRAN, RSRP, -110, MatchEqualOrLarger), -120, false},
		{"lte_below", NewThreshold(IWLAN, RSSI, -80, MatchEqualOrSmaller), -90, true},
		{"lte_equal", NewThreshold(IWLAN, RSSI, -80, MatchEqualOrSmaller), -80, true},
		{"lte_above", NewThreshold(IWLAN, RSSI, -80, MatchEqualOrSmaller), -70, false},
		{"eq_hit", NewThreshold(GERAN, RSSI, -79, MatchEqual), -79, true},
		{"eq_miss", NewThreshold(GERAN, RSSI, -79, MatchEqual), -80, false},
		{"unavailable_never_matches", NewThreshold(EUTRAN, RSRP, -110, MatchEqualOrLarger), SignalUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.th.Matches(tt.value); got != tt.want {
				t.Errorf("Matches(%d) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestThresholdWaitDefaultsInvalid(t *testing.T) {
	th := NewThreshold(NGRAN, SSRSRP, -110, MatchEqualOrSmaller)
	if th.WaitMS != WaitInvalid {
		t.Fatalf("new threshold wait = %d, want WaitInvalid", th.WaitMS)
	}
	th.SetWaitMS(3000)
	if th.WaitMS != 3000 {
		t.Fatalf("wait after SetWaitMS = %d, want 3000", th.WaitMS)
	}
}

func TestThresholdEqualIgnoresWait(t *testing.T) {
	a := NewThreshold(EUTRAN, RSRP, -110, MatchEqualOrSmaller)
	b := a
	b.SetWaitMS(500)
	if !a.Equal(b) {
		t.Error("thresholds differing only in wait should be Equal")
	}
	b.Value = -111
	if a.Equal(b) {
		t.Error("thresholds with different values should not be Equal")
	}
}

func TestCopyThresholds(t *testing.T) {
	if CopyThresholds(nil) != nil {
		t.Error("CopyThresholds(nil) should be nil")
	}
	orig := []Threshold{NewThreshold(EUTRAN, RSRP, -110, MatchEqualOrSmaller)}
	cp := CopyThresholds(orig)
	cp[0].Value = -90
	if orig[0].Value != -110 {
		t.Error("copy shares backing array with original")
	}
}

func TestCondAvailable(t *testing.T) {
	if got := CondAvailable(NGRAN); got != "NGRAN_AVAILABLE" {
		t.Errorf("CondAvailable(NGRAN) = %q", got)
	}
	if got := CondAvailable(GERAN); got != "GERAN_AVAILABLE" {
		t.Errorf("CondAvailable(GERAN) = %q", got)
	}
}

func TestNetCapabilityString(t *testing.T) {
	if got := (CapIMS | CapXCAP).String(); got != "ims|xcap" {
		t.Errorf("capability string = %q", got)
	}
	if got := NetCapability(0).String(); got != "none" {
		t.Errorf("empty capability string = %q", got)
	}
}

package policy

import (
	"reflect"
	"testing"

	"github.com/telcoware/qns/pkg"
	"github.com/telcoware/qns/pkg/logx"
	"github.com/telcoware/qns/pkg/qnsconfig"
)

func testLogger() *logx.Logger {
	return logx.NewLogger("error", "policy-test")
}

func pre(ct pkg.CallType, p pkg.Preference, c pkg.Coverage) pkg.PreCondition {
	return pkg.PreCondition{CallType: ct, Preference: p, Coverage: c}
}

var allCallTypes = []pkg.CallType{pkg.CallIdle, pkg.CallVoice, pkg.CallVideo}

var allCoverages = []pkg.Coverage{pkg.CoverageHome, pkg.CoverageRoam}

func TestBasePolicies(t *testing.T) {
	b := NewBuilder(qnsconfig.DefaultConfig(), pkg.CapIMS, testLogger())

	for _, ct := range allCallTypes {
		for _, cov := range allCoverages {
			if got := b.Policy(pkg.RoveIn, pre(ct, pkg.WifiPref, cov)); !reflect.DeepEqual(got, []string{"Condition:WIFI_GOOD"}) {
				t.Errorf("rove_in wifi_pref %s/%s = %v", ct, cov, got)
			}
			if got := b.Policy(pkg.RoveOut, pre(ct, pkg.WifiPref, cov)); !reflect.DeepEqual(got, []string{"Condition:WIFI_BAD"}) {
				t.Errorf("rove_out wifi_pref %s/%s = %v", ct, cov, got)
			}
			if got := b.Policy(pkg.RoveIn, pre(ct, pkg.CellPref, cov)); !reflect.DeepEqual(got, []string{"Condition:WIFI_GOOD,CELLULAR_BAD"}) {
				t.Errorf("rove_in cell_pref %s/%s = %v", ct, cov, got)
			}
			want := []string{"Condition:CELLULAR_GOOD", "Condition:WIFI_BAD,CELLULAR_TOLERABLE"}
			if got := b.Policy(pkg.RoveOut, pre(ct, pkg.CellPref, cov)); !reflect.DeepEqual(got, want) {
				t.Errorf("rove_out cell_pref %s/%s = %v", ct, cov, got)
			}
		}
	}
}

func TestPolicyDeterminism(t *testing.T) {
	cfg := qnsconfig.DefaultConfig()
	cfg.BothBadCellPref = true
	b := NewBuilder(cfg, pkg.CapIMS, testLogger())

	p := pre(pkg.CallVoice, pkg.CellPref, pkg.CoverageRoam)
	first := b.Policy(pkg.RoveOut, p)
	for i := 0; i < 50; i++ {
		got := b.Policy(pkg.RoveOut, p)
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("call %d diverged: %v vs %v", i, got, first)
		}
	}
}

func TestPolicyReturnsFreshSlice(t *testing.T) {
	b := NewBuilder(qnsconfig.DefaultConfig(), pkg.CapIMS, testLogger())
	p := pre(pkg.CallIdle, pkg.WifiPref, pkg.CoverageHome)

	first := b.Policy(pkg.RoveIn, p)
	first[0] = "mutated"
	second := b.Policy(pkg.RoveIn, p)
	if second[0] != "Condition:WIFI_GOOD" {
		t.Fatalf("mutation leaked into later call: %v", second)
	}
}

func TestConfigOverrideWins(t *testing.T) {
	cfg := qnsconfig.DefaultConfig()
	cfg.BothBadCellPref = true
	override := []string{"Condition:WIFI_AVAILABLE,CELLULAR_BAD"}
	p := pre(pkg.CallVideo, pkg.CellPref, pkg.CoverageHome)
	cfg.OverridePolicies[qnsconfig.PolicyKey{Direction: pkg.RoveOut, PreCondition: p}] = override

	b := NewBuilder(cfg, pkg.CapIMS, testLogger())
	got := b.Policy(pkg.RoveOut, p)
	if !reflect.DeepEqual(got, override) {
		t.Fatalf("override not honored: %v", got)
	}

	// The override is served as a copy.
	got[0] = "mutated"
	if cfg.OverridePolicies[qnsconfig.PolicyKey{Direction: pkg.RoveOut, PreCondition: p}][0] != override[0] {
		t.Fatal("override map mutated through returned slice")
	}
}

func TestBothBadOverride(t *testing.T) {
	t.Run("cell_pref_rove_out", func(t *testing.T) {
		cfg := qnsconfig.DefaultConfig()
		cfg.BothBadCellPref = true
		b := NewBuilder(cfg, pkg.CapIMS, testLogger())

		want := []string{"Condition:WIFI_BAD", "Condition:CELLULAR_GOOD"}
		for _, ct := range allCallTypes {
			for _, cov := range allCoverages {
				if got := b.Policy(pkg.RoveOut, pre(ct, pkg.CellPref, cov)); !reflect.DeepEqual(got, want) {
					t.Errorf("%s/%s = %v, want %v", ct, cov, got, want)
				}
			}
		}

		// Other combinations keep the base case.
		if got := b.Policy(pkg.RoveIn, pre(pkg.CallIdle, pkg.CellPref, pkg.CoverageHome)); !reflect.DeepEqual(got, []string{"Condition:WIFI_GOOD,CELLULAR_BAD"}) {
			t.Errorf("rove_in affected: %v", got)
		}
	})

	t.Run("wifi_pref_rove_in", func(t *testing.T) {
		cfg := qnsconfig.DefaultConfig()
		cfg.BothBadWifiPref = true
		b := NewBuilder(cfg, pkg.CapIMS, testLogger())

		want := []string{"Condition:WIFI_GOOD", "Condition:CELLULAR_BAD"}
		if got := b.Policy(pkg.RoveIn, pre(pkg.CallIdle, pkg.WifiPref, pkg.CoverageHome)); !reflect.DeepEqual(got, want) {
			t.Errorf("rove_in wifi_pref = %v, want %v", got, want)
		}
		if got := b.Policy(pkg.RoveOut, pre(pkg.CallIdle, pkg.WifiPref, pkg.CoverageHome)); !reflect.DeepEqual(got, []string{"Condition:WIFI_BAD"}) {
			t.Errorf("rove_out affected: %v", got)
		}
	})
}

func TestVoiceCallTransportOverride(t *testing.T) {
	cfg := qnsconfig.DefaultConfig()
	cfg.CurrentTransportInVoiceCall = true
	b := NewBuilder(cfg, pkg.CapIMS, testLogger())

	got := b.Policy(pkg.RoveOut, pre(pkg.CallVoice, pkg.CellPref, pkg.CoverageHome))
	if !reflect.DeepEqual(got, []string{"Condition:WIFI_BAD"}) {
		t.Errorf("voice rove_out = %v", got)
	}

	// Idle calls keep the two-group base case.
	got = b.Policy(pkg.RoveOut, pre(pkg.CallIdle, pkg.CellPref, pkg.CoverageHome))
	want := []string{"Condition:CELLULAR_GOOD", "Condition:WIFI_BAD,CELLULAR_TOLERABLE"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("idle rove_out = %v", got)
	}
}

func TestRoamWithoutSignalStrength(t *testing.T) {
	newCfg := func() *qnsconfig.Config {
		cfg := qnsconfig.DefaultConfig()
		cfg.TransportSelWithoutSSInRoam = true
		return cfg
	}

	t.Run("primary_cases_need_wifi_available", func(t *testing.T) {
		b := NewBuilder(newCfg(), pkg.CapIMS, testLogger())
		want := []string{"Condition:WIFI_AVAILABLE"}
		if got := b.Policy(pkg.RoveOut, pre(pkg.CallIdle, pkg.CellPref, pkg.CoverageRoam)); !reflect.DeepEqual(got, want) {
			t.Errorf("cell_pref rove_out = %v", got)
		}
		if got := b.Policy(pkg.RoveIn, pre(pkg.CallIdle, pkg.WifiPref, pkg.CoverageRoam)); !reflect.DeepEqual(got, want) {
			t.Errorf("wifi_pref rove_in = %v", got)
		}
	})

	t.Run("complementary_without_iwlan_flag_is_unconditional", func(t *testing.T) {
		b := NewBuilder(newCfg(), pkg.CapIMS, testLogger())
		want := []string{"Condition:"}
		if got := b.Policy(pkg.RoveIn, pre(pkg.CallIdle, pkg.CellPref, pkg.CoverageRoam)); !reflect.DeepEqual(got, want) {
			t.Errorf("cell_pref rove_in = %v", got)
		}
		if got := b.Policy(pkg.RoveOut, pre(pkg.CallIdle, pkg.WifiPref, pkg.CoverageRoam)); !reflect.DeepEqual(got, want) {
			t.Errorf("wifi_pref rove_out = %v", got)
		}
	})

	t.Run("home_coverage_keeps_base_case", func(t *testing.T) {
		b := NewBuilder(newCfg(), pkg.CapIMS, testLogger())
		if got := b.Policy(pkg.RoveIn, pre(pkg.CallIdle, pkg.WifiPref, pkg.CoverageHome)); !reflect.DeepEqual(got, []string{"Condition:WIFI_GOOD"}) {
			t.Errorf("home rove_in = %v", got)
		}
	})

	t.Run("iwlan_limited_expands_allowed_rats", func(t *testing.T) {
		cfg := newCfg()
		cfg.AllowImsOverIwlanCellularLimited = true
		cfg.AllowedAccessNetworks[pkg.CapIMS] = []pkg.AccessNetwork{pkg.NGRAN, pkg.EUTRAN}
		b := NewBuilder(cfg, pkg.CapIMS, testLogger())

		got := b.Policy(pkg.RoveIn, pre(pkg.CallIdle, pkg.CellPref, pkg.CoverageRoam))
		want := []string{
			"Condition:WIFI_AVAILABLE,NGRAN_AVAILABLE",
			"Condition:WIFI_AVAILABLE,EUTRAN_AVAILABLE",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("cell_pref rove_in expansion = %v, want %v", got, want)
		}
	})

	t.Run("iwlan_limited_rove_out_uses_complement", func(t *testing.T) {
		cfg := newCfg()
		cfg.AllowImsOverIwlanCellularLimited = true
		cfg.AllowedAccessNetworks[pkg.CapIMS] = []pkg.AccessNetwork{pkg.NGRAN, pkg.EUTRAN}
		b := NewBuilder(cfg, pkg.CapIMS, testLogger())

		got := b.Policy(pkg.RoveOut, pre(pkg.CallIdle, pkg.WifiPref, pkg.CoverageRoam))
		want := []string{
			"Condition:WIFI_AVAILABLE,UTRAN_AVAILABLE",
			"Condition:WIFI_AVAILABLE,GERAN_AVAILABLE",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("wifi_pref rove_out complement = %v, want %v", got, want)
		}
	})

	t.Run("roam_override_precedes_both_bad", func(t *testing.T) {
		cfg := newCfg()
		cfg.BothBadCellPref = true
		b := NewBuilder(cfg, pkg.CapIMS, testLogger())

		got := b.Policy(pkg.RoveOut, pre(pkg.CallIdle, pkg.CellPref, pkg.CoverageRoam))
		if !reflect.DeepEqual(got, []string{"Condition:WIFI_AVAILABLE"}) {
			t.Errorf("roam override lost precedence: %v", got)
		}
	})
}

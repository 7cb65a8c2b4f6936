// Package qnsconfig holds the carrier configuration consumed by the policy
// builder and the evaluator. The bundle is loaded by the surrounding service
// and handed in read-only; all lookups are plain getters over a flat typed
// struct.
package qnsconfig

import "github.com/telcoware/qns/pkg"

// PolicyKey addresses one explicit override policy.
type PolicyKey struct {
	Direction    pkg.RoveDirection
	PreCondition pkg.PreCondition
}

// Levels carries the good/bad/tolerable boundaries for one measurement.
// A reading at or above Good is good, at or below Bad is bad, and anything
// at or above Tolerable but below Good counts as tolerable.
type Levels struct {
	Good      int
	Tolerable int
	Bad       int
}

// MeasurementKey scopes cellular levels to one (RAT, measurement) pair.
type MeasurementKey struct {
	AccessNetwork pkg.AccessNetwork
	Measurement   pkg.Measurement
}

// Config is the carrier configuration bundle for one (capability, slot)
// evaluator and its monitors.
type Config struct {
	// Policy flags
	TransportSelWithoutSSInRoam      bool
	CurrentTransportInVoiceCall      bool
	BothBadWifiPref                  bool
	BothBadCellPref                  bool
	AllowImsOverIwlanCellularLimited bool

	// Allowed cellular access networks per capability bitmask.
	AllowedAccessNetworks map[pkg.NetCapability][]pkg.AccessNetwork

	// Explicit override policies; nil entries fall through to the built-in
	// default policy.
	OverridePolicies map[PolicyKey][]string

	// Wi-Fi RSSI boundaries.
	WifiRSSIGood int
	WifiRSSIBad  int

	// Cellular boundaries per (RAT, measurement).
	CellularLevels map[MeasurementKey]Levels

	// Hysteresis wait applied to registered thresholds, per call type.
	WaitIdleMS  int
	WaitVoiceMS int
	WaitVideoMS int
}

// DefaultConfig returns a bundle with carrier-neutral defaults.
func DefaultConfig() *Config {
	return &Config{
		AllowedAccessNetworks: map[pkg.NetCapability][]pkg.AccessNetwork{
			pkg.CapIMS: {pkg.NGRAN, pkg.EUTRAN, pkg.UTRAN, pkg.GERAN},
		},
		OverridePolicies: map[PolicyKey][]string{},
		WifiRSSIGood:     -70,
		WifiRSSIBad:      -80,
		CellularLevels: map[MeasurementKey]Levels{
			{pkg.NGRAN, pkg.SSRSRP}: {Good: -105, Tolerable: -110, Bad: -115},
			{pkg.EUTRAN, pkg.RSRP}:  {Good: -105, Tolerable: -110, Bad: -115},
			{pkg.UTRAN, pkg.RSCP}:   {Good: -95, Tolerable: -100, Bad: -105},
			{pkg.GERAN, pkg.RSSI}:   {Good: -89, Tolerable: -95, Bad: -100},
		},
		WaitIdleMS:  pkg.WaitInvalid,
		WaitVoiceMS: pkg.WaitInvalid,
		WaitVideoMS: pkg.WaitInvalid,
	}
}

// IsTransportTypeSelWithoutSSInRoamSupported reports whether roaming
// transport selection ignores signal strength.
func (c *Config) IsTransportTypeSelWithoutSSInRoamSupported() bool {
	return c.TransportSelWithoutSSInRoam
}

// IsCurrentTransportTypeInVoiceCallSupported reports whether an ongoing
// voice call pins traffic to the current transport.
func (c *Config) IsCurrentTransportTypeInVoiceCallSupported() bool {
	return c.CurrentTransportInVoiceCall
}

// IsChooseWfcPreferredTransportInBothBadCondition reports whether, for the
// given preference, the preferred transport is chosen when both links are bad.
func (c *Config) IsChooseWfcPreferredTransportInBothBadCondition(pref pkg.Preference) bool {
	if pref == pkg.CellPref {
		return c.BothBadCellPref
	}
	return c.BothBadWifiPref
}

// AllowImsOverIwlanCellularLimitedCaseSupported reports whether IMS may stay
// on IWLAN while cellular is limited to specific access networks.
func (c *Config) AllowImsOverIwlanCellularLimitedCaseSupported() bool {
	return c.AllowImsOverIwlanCellularLimited
}

// IsAccessNetworkAllowed reports whether the capability may use the given
// cellular access network.
func (c *Config) IsAccessNetworkAllowed(an pkg.AccessNetwork, cap pkg.NetCapability) bool {
	for _, allowed := range c.AllowedAccessNetworks[cap] {
		if allowed == an {
			return true
		}
	}
	return false
}

// Policy returns the explicit override policy for (direction, precondition),
// or nil when the default policy applies. Callers receive a copy.
func (c *Config) Policy(direction pkg.RoveDirection, pre pkg.PreCondition) []string {
	override, ok := c.OverridePolicies[PolicyKey{Direction: direction, PreCondition: pre}]
	if !ok || override == nil {
		return nil
	}
	out := make([]string, len(override))
	copy(out, override)
	return out
}

// CellularLevelsFor returns the configured boundaries for a (RAT,
// measurement) pair.
func (c *Config) CellularLevelsFor(an pkg.AccessNetwork, m pkg.Measurement) (Levels, bool) {
	lv, ok := c.CellularLevels[MeasurementKey{AccessNetwork: an, Measurement: m}]
	return lv, ok
}

// WaitMSForCallType returns the hysteresis wait configured for a call type.
func (c *Config) WaitMSForCallType(ct pkg.CallType) int {
	switch ct {
	case pkg.CallVoice:
		return c.WaitVoiceMS
	case pkg.CallVideo:
		return c.WaitVideoMS
	default:
		return c.WaitIdleMS
	}
}

package pkg

import (
	"fmt"
	"strings"
)

// SignalUnavailable is returned by quality queries when the requested
// measurement cannot be read from the current radio state. It never matches
// any threshold.
const SignalUnavailable = 0x7FFFFFFF

// WaitInvalid marks a threshold with no configured hysteresis wait time.
const WaitInvalid = -1

// Transport identifies the link a quality monitor watches.
type Transport int

const (
	TransportCellular Transport = iota
	TransportWifi
)

func (t Transport) String() string {
	switch t {
	case TransportCellular:
		return "cellular"
	case TransportWifi:
		return "wifi"
	}
	return "unknown"
}

// AccessNetwork enumerates radio access network types in the 3GPP naming.
type AccessNetwork int

const (
	AccessNetworkUnknown AccessNetwork = iota
	GERAN
	UTRAN
	EUTRAN
	NGRAN
	IWLAN
)

// CellularAccessNetworks lists the cellular RATs in the declared priority
// order used when a policy expands per access network.
var CellularAccessNetworks = []AccessNetwork{NGRAN, EUTRAN, UTRAN, GERAN}

func (a AccessNetwork) String() string {
	switch a {
	case GERAN:
		return "GERAN"
	case UTRAN:
		return "UTRAN"
	case EUTRAN:
		return "EUTRAN"
	case NGRAN:
		return "NGRAN"
	case IWLAN:
		return "IWLAN"
	}
	return "UNKNOWN"
}

// Measurement enumerates the signal quality measurement types.
type Measurement int

const (
	MeasurementUnknown Measurement = iota
	RSSI
	RSCP
	RSRP
	RSRQ
	RSSNR
	SSRSRP
	SSRSRQ
	SSSINR
	ECNO
)

func (m Measurement) String() string {
	switch m {
	case RSSI:
		return "rssi"
	case RSCP:
		return "rscp"
	case RSRP:
		return "rsrp"
	case RSRQ:
		return "rsrq"
	case RSSNR:
		return "rssnr"
	case SSRSRP:
		return "ssrsrp"
	case SSRSRQ:
		return "ssrsrq"
	case SSSINR:
		return "sssinr"
	case ECNO:
		return "ecno"
	}
	return "unknown"
}

// MatchType selects the comparison a threshold applies to a live value.
type MatchType int

const (
	MatchEqual MatchType = iota
	MatchEqualOrLarger
	MatchEqualOrSmaller
)

func (mt MatchType) String() string {
	switch mt {
	case MatchEqual:
		return "eq"
	case MatchEqualOrLarger:
		return "gte"
	case MatchEqualOrSmaller:
		return "lte"
	}
	return "unknown"
}

// Threshold is one (access network, measurement, value, match, wait) tuple.
// Consumers construct thresholds and hand copies to a quality monitor; only
// the wait time may be adjusted, and only before registration.
type Threshold struct {
	AccessNetwork AccessNetwork
	Measurement   Measurement
	Value         int
	Match         MatchType
	WaitMS        int
}

// NewThreshold returns a threshold with no hysteresis wait configured.
func NewThreshold(an AccessNetwork, m Measurement, value int, match MatchType) Threshold {
	return Threshold{
		AccessNetwork: an,
		Measurement:   m,
		Value:         value,
		Match:         match,
		WaitMS:        WaitInvalid,
	}
}

// SetWaitMS sets the hysteresis wait time. Call before registering the
// threshold with a monitor; registered copies are never mutated.
func (t *Threshold) SetWaitMS(ms int) {
	t.WaitMS = ms
}

// Matches reports whether the live value v satisfies the threshold.
// SignalUnavailable matches nothing.
func (t Threshold) Matches(v int) bool {
	if v == SignalUnavailable {
		return false
	}
	switch t.Match {
	case MatchEqual:
		return v == t.Value
	case MatchEqualOrLarger:
		return v >= t.Value
	case MatchEqualOrSmaller:
		return v <= t.Value
	}
	return false
}

// Equal reports value equality ignoring the wait time.
func (t Threshold) Equal(o Threshold) bool {
	return t.AccessNetwork == o.AccessNetwork &&
		t.Measurement == o.Measurement &&
		t.Value == o.Value &&
		t.Match == o.Match
}

func (t Threshold) String() string {
	return fmt.Sprintf("%s/%s %s %d (wait %dms)",
		t.AccessNetwork, t.Measurement, t.Match, t.Value, t.WaitMS)
}

// CopyThresholds returns an independent copy of ths; nil in, nil out.
func CopyThresholds(ths []Threshold) []Threshold {
	if ths == nil {
		return nil
	}
	out := make([]Threshold, len(ths))
	copy(out, ths)
	return out
}

// CallType is the active call state used to select a policy.
type CallType int

const (
	CallIdle CallType = iota
	CallVoice
	CallVideo
	CallEmergency
)

func (c CallType) String() string {
	switch c {
	case CallIdle:
		return "idle"
	case CallVoice:
		return "voice"
	case CallVideo:
		return "video"
	case CallEmergency:
		return "emergency"
	}
	return "unknown"
}

// Preference is the user/carrier transport preference.
type Preference int

const (
	WifiPref Preference = iota
	CellPref
)

func (p Preference) String() string {
	if p == CellPref {
		return "cell_pref"
	}
	return "wifi_pref"
}

// Coverage distinguishes home vs roaming network attachment.
type Coverage int

const (
	CoverageHome Coverage = iota
	CoverageRoam
)

func (c Coverage) String() string {
	if c == CoverageRoam {
		return "roam"
	}
	return "home"
}

// PreCondition selects which selection policy applies. Value type,
// constructed fresh per policy query.
type PreCondition struct {
	CallType   CallType
	Preference Preference
	Coverage   Coverage
}

func (p PreCondition) String() string {
	return fmt.Sprintf("%s/%s/%s", p.CallType, p.Preference, p.Coverage)
}

// RoveDirection names a handover decision direction: onto Wi-Fi (rove in)
// or back to cellular (rove out).
type RoveDirection int

const (
	RoveIn RoveDirection = iota
	RoveOut
)

func (d RoveDirection) String() string {
	if d == RoveOut {
		return "rove_out"
	}
	return "rove_in"
}

// NetCapability identifies the traffic category a registration is scoped to.
// Values combine as a bitmask.
type NetCapability int

const (
	CapIMS NetCapability = 1 << iota
	CapEmergency
	CapMMS
	CapXCAP
	CapCBS
	CapInternet
)

func (c NetCapability) String() string {
	var parts []string
	for _, e := range []struct {
		bit  NetCapability
		name string
	}{
		{CapIMS, "ims"},
		{CapEmergency, "emergency"},
		{CapMMS, "mms"},
		{CapXCAP, "xcap"},
		{CapCBS, "cbs"},
		{CapInternet, "internet"},
	} {
		if c&e.bit != 0 {
			parts = append(parts, e.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Condition tags emitted by the policy builder. A policy group is
// "Condition:" followed by comma-joined tags; a bare "Condition:" always
// matches.
const (
	CondPrefix        = "Condition:"
	CondWifiGood      = "WIFI_GOOD"
	CondWifiBad       = "WIFI_BAD"
	CondCellGood      = "CELLULAR_GOOD"
	CondCellBad       = "CELLULAR_BAD"
	CondCellTolerable = "CELLULAR_TOLERABLE"
	CondWifiAvailable = "WIFI_AVAILABLE"
)

// CondAvailable returns the availability tag for an access network, e.g.
// "NGRAN_AVAILABLE".
func CondAvailable(an AccessNetwork) string {
	return an.String() + "_AVAILABLE"
}

// Package signal models the multi-RAT signal strength snapshot reported by
// the platform radio layer and the extraction of individual quality values
// from it.
package signal

import "github.com/telcoware/qns/pkg"

// GSMSignal carries the 2G measurements of a snapshot.
type GSMSignal struct {
	RSSI int `json:"rssi"`
}

// WCDMASignal carries the 3G measurements of a snapshot.
type WCDMASignal struct {
	RSCP int `json:"rscp"`
	ECNO int `json:"ecno"`
}

// LTESignal carries the 4G measurements of a snapshot.
type LTESignal struct {
	RSSI  int `json:"rssi"`
	RSRP  int `json:"rsrp"`
	RSRQ  int `json:"rsrq"`
	RSSNR int `json:"rssnr"`
}

// NRSignal carries the 5G SS measurements of a snapshot.
type NRSignal struct {
	SSRSRP int `json:"ssrsrp"`
	SSRSRQ int `json:"ssrsrq"`
	SSSINR int `json:"sssinr"`
}

// Snapshot is one point-in-time view of all radio technologies. Absent
// technologies are nil; absent fields hold pkg.SignalUnavailable.
type Snapshot struct {
	GSM   *GSMSignal   `json:"gsm,omitempty"`
	WCDMA *WCDMASignal `json:"wcdma,omitempty"`
	LTE   *LTESignal   `json:"lte,omitempty"`
	NR    *NRSignal    `json:"nr,omitempty"`
}

// NewGSMSignal returns a GSM record with all fields unavailable.
func NewGSMSignal() *GSMSignal {
	return &GSMSignal{RSSI: pkg.SignalUnavailable}
}

// NewWCDMASignal returns a WCDMA record with all fields unavailable.
func NewWCDMASignal() *WCDMASignal {
	return &WCDMASignal{RSCP: pkg.SignalUnavailable, ECNO: pkg.SignalUnavailable}
}

// NewLTESignal returns an LTE record with all fields unavailable.
func NewLTESignal() *LTESignal {
	return &LTESignal{
		RSSI:  pkg.SignalUnavailable,
		RSRP:  pkg.SignalUnavailable,
		RSRQ:  pkg.SignalUnavailable,
		RSSNR: pkg.SignalUnavailable,
	}
}

// NewNRSignal returns an NR record with all fields unavailable.
func NewNRSignal() *NRSignal {
	return &NRSignal{
		SSRSRP: pkg.SignalUnavailable,
		SSRSRQ: pkg.SignalUnavailable,
		SSSINR: pkg.SignalUnavailable,
	}
}

// Extract returns the quality value for (access network, measurement) from
// the snapshot, or pkg.SignalUnavailable when the snapshot is nil, the
// technology record is absent, or the combination is not defined.
func Extract(s *Snapshot, an pkg.AccessNetwork, m pkg.Measurement) int {
	if s == nil {
		return pkg.SignalUnavailable
	}
	switch an {
	case pkg.GERAN:
		if s.GSM == nil {
			return pkg.SignalUnavailable
		}
		if m == pkg.RSSI {
			return s.GSM.RSSI
		}
	case pkg.UTRAN:
		if s.WCDMA == nil {
			return pkg.SignalUnavailable
		}
		switch m {
		case pkg.RSCP:
			return s.WCDMA.RSCP
		case pkg.ECNO:
			return s.WCDMA.ECNO
		}
	case pkg.EUTRAN:
		if s.LTE == nil {
			return pkg.SignalUnavailable
		}
		switch m {
		case pkg.RSSI:
			return s.LTE.RSSI
		case pkg.RSRP:
			return s.LTE.RSRP
		case pkg.RSRQ:
			return s.LTE.RSRQ
		case pkg.RSSNR:
			return s.LTE.RSSNR
		}
	case pkg.NGRAN:
		if s.NR == nil {
			return pkg.SignalUnavailable
		}
		switch m {
		case pkg.SSRSRP:
			return s.NR.SSRSRP
		case pkg.SSRSRQ:
			return s.NR.SSRSRQ
		case pkg.SSSINR:
			return s.NR.SSSINR
		}
	}
	return pkg.SignalUnavailable
}

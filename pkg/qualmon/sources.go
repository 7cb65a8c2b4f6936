// Package qualmon implements the per-transport signal quality monitors:
// merged threshold registries, platform subscription management, and
// threshold crossing notification with hysteresis.
package qualmon

import (
	"fmt"
	"sort"
	"strings"

	"github.com/telcoware/qns/pkg"
	"github.com/telcoware/qns/pkg/signal"
)

// ThresholdListener receives threshold match notifications. Callbacks run
// on a goroutine separate from the monitor worker and receive a copied
// slice; implementations must treat it as a snapshot.
type ThresholdListener interface {
	OnThresholdsMatched(capability pkg.NetCapability, slot int, thresholds []pkg.Threshold)
}

// ThresholdListenerFunc adapts a function to ThresholdListener.
type ThresholdListenerFunc func(capability pkg.NetCapability, slot int, thresholds []pkg.Threshold)

func (f ThresholdListenerFunc) OnThresholdsMatched(capability pkg.NetCapability, slot int, thresholds []pkg.Threshold) {
	f(capability, slot, thresholds)
}

// CellularSource is the narrow capability interface over the platform
// cellular signal stack for one slot.
type CellularSource interface {
	// Snapshot returns the current multi-RAT signal snapshot; may be nil
	// when the modem is not attached.
	Snapshot() *signal.Snapshot
	// Subscribe installs the change callback. The callback may be invoked
	// from any platform thread.
	Subscribe(fn func(*signal.Snapshot)) error
	// Unsubscribe removes the change callback.
	Unsubscribe()
	// RequestThresholdUpdates asks the platform to report changes crossing
	// the merged thresholds. Replaces any previous request.
	RequestThresholdUpdates(infos []SignalThresholdInfo) error
	// ClearThresholdUpdates cancels the active request.
	ClearThresholdUpdates() error
}

// WifiSource is the narrow capability interface over the platform Wi-Fi
// stack.
type WifiSource interface {
	// RSSI returns the current connection RSSI, or pkg.SignalUnavailable
	// when there is no active Wi-Fi connection.
	RSSI() int
	// Subscribe installs the RSSI change callback.
	Subscribe(fn func(rssi int)) error
	// Unsubscribe removes the change callback.
	Unsubscribe()
}

// SignalThresholdInfo is one entry of the merged threshold view: the sorted
// distinct union of values registered for a (RAT, measurement) pair and the
// minimum configured hysteresis among the contributors.
type SignalThresholdInfo struct {
	AccessNetwork pkg.AccessNetwork
	Measurement   pkg.Measurement
	Values        []int
	HysteresisMS  int
}

func (i SignalThresholdInfo) String() string {
	vals := make([]string, len(i.Values))
	for n, v := range i.Values {
		vals[n] = fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("%s/%s [%s] hysteresis=%dms",
		i.AccessNetwork, i.Measurement, strings.Join(vals, " "), i.HysteresisMS)
}

// mergeThresholds computes the merged view across all consumers' threshold
// lists, one entry per distinct (RAT, measurement), ordered by RAT then
// measurement.
func mergeThresholds(lists map[consumerKey][]pkg.Threshold) []SignalThresholdInfo {
	type groupKey struct {
		an pkg.AccessNetwork
		m  pkg.Measurement
	}
	values := make(map[groupKey]map[int]struct{})
	waits := make(map[groupKey]int)

	for _, ths := range lists {
		for _, th := range ths {
			gk := groupKey{an: th.AccessNetwork, m: th.Measurement}
			if values[gk] == nil {
				values[gk] = make(map[int]struct{})
				waits[gk] = pkg.WaitInvalid
			}
			values[gk][th.Value] = struct{}{}
			if th.WaitMS != pkg.WaitInvalid && th.WaitMS >= 0 {
				if waits[gk] == pkg.WaitInvalid || th.WaitMS < waits[gk] {
					waits[gk] = th.WaitMS
				}
			}
		}
	}

	out := make([]SignalThresholdInfo, 0, len(values))
	for gk, set := range values {
		vals := make([]int, 0, len(set))
		for v := range set {
			vals = append(vals, v)
		}
		sort.Ints(vals)
		out = append(out, SignalThresholdInfo{
			AccessNetwork: gk.an,
			Measurement:   gk.m,
			Values:        vals,
			HysteresisMS:  waits[gk],
		})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].AccessNetwork != out[b].AccessNetwork {
			return out[a].AccessNetwork < out[b].AccessNetwork
		}
		return out[a].Measurement < out[b].Measurement
	})
	return out
}

// infosEqual compares two merged views.
func infosEqual(a, b []SignalThresholdInfo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].AccessNetwork != b[i].AccessNetwork ||
			a[i].Measurement != b[i].Measurement ||
			a[i].HysteresisMS != b[i].HysteresisMS ||
			len(a[i].Values) != len(b[i].Values) {
			return false
		}
		for n := range a[i].Values {
			if a[i].Values[n] != b[i].Values[n] {
				return false
			}
		}
	}
	return true
}

// copyInfos returns an independent copy of the merged view.
func copyInfos(infos []SignalThresholdInfo) []SignalThresholdInfo {
	out := make([]SignalThresholdInfo, len(infos))
	for i, info := range infos {
		vals := make([]int, len(info.Values))
		copy(vals, info.Values)
		out[i] = SignalThresholdInfo{
			AccessNetwork: info.AccessNetwork,
			Measurement:   info.Measurement,
			Values:        vals,
			HysteresisMS:  info.HysteresisMS,
		}
	}
	return out
}

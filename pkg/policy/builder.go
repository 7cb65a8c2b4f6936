// Package policy builds the ordered rove-in/rove-out condition groups for
// one network capability from the carrier configuration and the current
// precondition. The builder is pure: every call derives a fresh result from
// configuration alone.
package policy

import (
	"strings"

	"github.com/telcoware/qns/pkg"
	"github.com/telcoware/qns/pkg/logx"
	"github.com/telcoware/qns/pkg/metrics"
	"github.com/telcoware/qns/pkg/qnsconfig"
)

// Builder produces selection policies for one capability.
type Builder struct {
	config     *qnsconfig.Config
	capability pkg.NetCapability
	logger     *logx.Logger
}

// NewBuilder creates a policy builder bound to a capability.
func NewBuilder(cfg *qnsconfig.Config, capability pkg.NetCapability, logger *logx.Logger) *Builder {
	if logger == nil {
		logger = logx.NewLogger("info", "policy")
	}
	return &Builder{config: cfg, capability: capability, logger: logger}
}

// group joins condition tags into one policy entry. No tags means an
// unconditional entry.
func group(tags ...string) string {
	return pkg.CondPrefix + strings.Join(tags, ",")
}

// Policy returns the ordered condition groups for the direction and
// precondition. Earlier groups have priority. The result is a new slice on
// every call; an empty result means no condition governs the combination.
func (b *Builder) Policy(direction pkg.RoveDirection, pre pkg.PreCondition) []string {
	metrics.PolicyBuilds.Inc()

	if override := b.config.Policy(direction, pre); override != nil {
		b.logger.Debug("policy_override", "direction", direction.String(), "pre", pre.String())
		return override
	}

	// The overrides are mutually exclusive branches; checked in fixed
	// precedence: roam-without-SS, voice-call transport, both-bad.
	if b.config.IsTransportTypeSelWithoutSSInRoamSupported() && pre.Coverage == pkg.CoverageRoam {
		return b.roamWithoutSignalPolicy(direction, pre)
	}

	if b.config.IsCurrentTransportTypeInVoiceCallSupported() &&
		pre.CallType == pkg.CallVoice &&
		pre.Preference == pkg.CellPref &&
		direction == pkg.RoveOut {
		return []string{group(pkg.CondWifiBad)}
	}

	if b.config.IsChooseWfcPreferredTransportInBothBadCondition(pre.Preference) {
		if pre.Preference == pkg.CellPref && direction == pkg.RoveOut {
			return []string{group(pkg.CondWifiBad), group(pkg.CondCellGood)}
		}
		if pre.Preference == pkg.WifiPref && direction == pkg.RoveIn {
			return []string{group(pkg.CondWifiGood), group(pkg.CondCellBad)}
		}
	}

	return b.basePolicy(direction, pre)
}

// basePolicy is the preference base case.
func (b *Builder) basePolicy(direction pkg.RoveDirection, pre pkg.PreCondition) []string {
	if pre.Preference == pkg.WifiPref {
		if direction == pkg.RoveIn {
			return []string{group(pkg.CondWifiGood)}
		}
		return []string{group(pkg.CondWifiBad)}
	}
	if direction == pkg.RoveIn {
		return []string{group(pkg.CondWifiGood, pkg.CondCellBad)}
	}
	return []string{
		group(pkg.CondCellGood),
		group(pkg.CondWifiBad, pkg.CondCellTolerable),
	}
}

// roamWithoutSignalPolicy applies when roaming transport selection ignores
// signal strength. The preferred transport's own direction reduces to Wi-Fi
// availability; the complementary direction either always fires or, in the
// IWLAN cellular-limited case, expands per allowed access network.
func (b *Builder) roamWithoutSignalPolicy(direction pkg.RoveDirection, pre pkg.PreCondition) []string {
	primary := (pre.Preference == pkg.CellPref && direction == pkg.RoveOut) ||
		(pre.Preference == pkg.WifiPref && direction == pkg.RoveIn)
	if primary {
		return []string{group(pkg.CondWifiAvailable)}
	}

	if !b.config.AllowImsOverIwlanCellularLimitedCaseSupported() {
		return []string{group()}
	}

	// One group per cellular access network, filtered by the capability's
	// allow list: rove-in onto IWLAN follows the allowed RATs, rove-out
	// follows the RATs the capability cannot use.
	wantAllowed := direction == pkg.RoveIn
	var out []string
	for _, an := range pkg.CellularAccessNetworks {
		if b.config.IsAccessNetworkAllowed(an, b.capability) == wantAllowed {
			out = append(out, group(pkg.CondWifiAvailable, pkg.CondAvailable(an)))
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

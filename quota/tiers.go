package quota

import "time"

// Well-known tier names.
const (
	TierFree     = "free"
	TierStandard = "standard"
	TierPremium  = "premium"
	TierInternal = "internal"

	// TierDefault is applied when no tier or override resolves for a caller.
	TierDefault = "DEFAULT"
)

// Tier is a named bundle of limiter parameters applied to a class of callers
// or routes.
type Tier struct {
	Limit  int64
	Window time.Duration
	Burst  int64
}

// Params converts a tier to evaluation parameters.
func (t Tier) Params() Params {
	return Params{Limit: t.Limit, Window: t.Window, Burst: t.Burst}
}

// Tiers maps tier names to their parameters.
type Tiers map[string]Tier

// BuiltinTiers returns the default tier table. Config may replace or extend
// individual entries.
func BuiltinTiers() Tiers {
	return Tiers{
		TierFree:     {Limit: 30, Window: time.Minute, Burst: 30},
		TierStandard: {Limit: 120, Window: time.Minute, Burst: 150},
		TierPremium:  {Limit: 600, Window: time.Minute, Burst: 900},
		TierInternal: {Limit: 6000, Window: time.Minute, Burst: 6000},
		TierDefault:  {Limit: 60, Window: time.Minute, Burst: 60},
	}
}

// Override customizes quota enforcement for a single route. Level selects a
// tier; any explicitly set field then wins over the tier's value. The zero
// value means "use the DEFAULT tier unchanged".
type Override struct {
	// Level names the tier supplying the base parameters.
	Level string

	// Limit, Window and Burst each replace the tier's value when positive.
	Limit  int64
	Window time.Duration
	Burst  int64

	// Disabled turns quota enforcement off for the route.
	Disabled bool
}

// Resolve merges an override over its tier's defaults over the DEFAULT tier
// and returns the effective tier name and parameters.
func (ts Tiers) Resolve(o Override) (string, Params) {
	name := TierDefault
	tier, ok := ts[TierDefault]
	if o.Level != "" {
		if t, exists := ts[o.Level]; exists {
			name, tier, ok = o.Level, t, true
		}
	}
	if !ok {
		// No DEFAULT tier configured either; fall back to the builtin one.
		tier = BuiltinTiers()[TierDefault]
	}

	p := tier.Params()
	if o.Limit > 0 {
		p.Limit = o.Limit
	}
	if o.Window > 0 {
		p.Window = o.Window
	}
	if o.Burst > 0 {
		p.Burst = o.Burst
	}
	return name, p
}

// Level resolves a bare tier name to its effective name and parameters.
func (ts Tiers) Level(level string) (string, Params) {
	return ts.Resolve(Override{Level: level})
}

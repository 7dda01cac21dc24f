package graph

import (
	"math"
)

// EdgeKind classifies an edge for pricing.
type EdgeKind uint8

const (
	EdgeNone EdgeKind = iota
	EdgeGate
	EdgeWarp
	EdgeJump
	EdgeStaticBridge
	EdgeDynamicBridge
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeGate:
		return "gate"
	case EdgeWarp:
		return "warp"
	case EdgeJump:
		return "jump"
	case EdgeStaticBridge:
		return "static bridge"
	case EdgeDynamicBridge:
		return "dynamic bridge"
	default:
		return "none"
	}
}

// Movement maps an edge kind onto the route step type it produces.
func (k EdgeKind) Movement() MovementType {
	switch k {
	case EdgeGate:
		return Gate
	case EdgeWarp:
		return Warp
	case EdgeJump, EdgeStaticBridge, EdgeDynamicBridge:
		return Jump
	default:
		return Start
	}
}

// Edge is the input to the cost model.
type Edge struct {
	Kind     EdgeKind
	Distance float64 // metres
	Range    float64 // LY, reach of the dynamic bridge providing the edge
	Security float64 // security of the system the edge lands in
}

// HighsecThreshold is the security at and above which a system counts as highsec.
const HighsecThreshold = 0.45

// WarpModel selects the in-system travel time formula.
type WarpModel uint8

const (
	// WarpLinear prices a warp as distance / warp speed.
	WarpLinear WarpModel = iota
	// WarpAccelerated models acceleration, cruise and deceleration phases.
	WarpAccelerated
)

func (w WarpModel) String() string {
	if w == WarpAccelerated {
		return "accelerated"
	}
	return "linear"
}

// JumpCurve maps a jump distance in light years to seconds:
// Coefficient * distance^Exponent.
type JumpCurve struct {
	Coefficient float64
	Exponent    float64
}

// Seconds evaluates the curve. It is zero at zero and non-decreasing for any
// curve that passes Validate.
func (c JumpCurve) Seconds(distanceLY float64) float64 {
	if distanceLY <= 0 {
		return 0
	}
	return c.Coefficient * math.Pow(distanceLY, c.Exponent)
}

// CostModel prices edges for a profile. GateCost and BridgeCost are flat
// seconds per traversal.
type CostModel struct {
	GateCost        float64
	BridgeCost      float64
	Jump            JumpCurve
	Warp            WarpModel
	RestrictHighsec bool // forbid jumps and bridges into highsec systems
}

// DefaultCostModel returns the parameters used when none are configured.
func DefaultCostModel() CostModel {
	return CostModel{
		GateCost:   10,
		BridgeCost: 20,
		Jump:       JumpCurve{Coefficient: 60, Exponent: 1},
		Warp:       WarpLinear,
	}
}

// Validate checks that every parameter is finite and non-negative and that
// the jump curve is monotonic with zero at zero.
func (m CostModel) Validate() error {
	if !finite(m.GateCost) || m.GateCost < 0 {
		return invalidf("gate cost %v must be non-negative", m.GateCost)
	}
	if !finite(m.BridgeCost) || m.BridgeCost < 0 {
		return invalidf("bridge cost %v must be non-negative", m.BridgeCost)
	}
	if !finite(m.Jump.Coefficient) || m.Jump.Coefficient < 0 {
		return invalidf("jump curve coefficient %v must be non-negative", m.Jump.Coefficient)
	}
	if !finite(m.Jump.Exponent) || m.Jump.Exponent <= 0 {
		return invalidf("jump curve exponent %v must be positive", m.Jump.Exponent)
	}
	if m.Warp != WarpLinear && m.Warp != WarpAccelerated {
		return invalidf("unknown warp model %d", m.Warp)
	}
	return nil
}

// Cost returns the traversal time of e for profile p in seconds. The second
// result is false when the profile cannot use the edge at all; such edges
// must be treated as absent.
func (m CostModel) Cost(e Edge, p Profile) (float64, bool) {
	switch e.Kind {
	case EdgeGate:
		if p.NoGates {
			return 0, false
		}
		return m.GateCost, true

	case EdgeWarp:
		if p.WarpSpeed <= 0 {
			return 0, false
		}
		return p.AlignTime + m.warpTime(e.Distance, p.WarpSpeed), true

	case EdgeJump:
		if !p.CanJump() || e.Distance > p.JumpRange*LightYear || m.blocked(e) {
			return 0, false
		}
		return p.AlignTime + m.Jump.Seconds(e.Distance/LightYear), true

	case EdgeDynamicBridge:
		if !p.CanJump() || e.Distance > e.Range*LightYear || m.blocked(e) {
			return 0, false
		}
		return p.AlignTime + m.Jump.Seconds(e.Distance/LightYear), true

	case EdgeStaticBridge:
		if !p.CanJump() || m.blocked(e) {
			return 0, false
		}
		return m.BridgeCost, true
	}
	return 0, false
}

func (m CostModel) blocked(e Edge) bool {
	return m.RestrictHighsec && e.Security >= HighsecThreshold
}

func (m CostModel) warpTime(distance, warpSpeed float64) float64 {
	if distance <= 0 {
		return 0
	}
	if m.Warp == WarpAccelerated {
		return acceleratedWarpTime(distance, warpSpeed)
	}
	return distance / (warpSpeed * AU)
}

// acceleratedWarpTime accelerates at warpSpeed over the first AU, cruises at
// warpSpeed AU/s and decelerates at min(warpSpeed/3, 2) down to 100 m/s.
// Short warps never reach cruise speed.
func acceleratedWarpTime(distance, warpSpeed float64) float64 {
	kAccel := warpSpeed
	kDecel := min(warpSpeed/3, 2)

	vMax := warpSpeed * AU
	dMin := AU + vMax/kDecel

	cruise := 0.0
	if distance < dMin {
		vMax = distance * kAccel * kDecel / (kAccel + kDecel)
	} else {
		cruise = (distance - dMin) / vMax
	}

	t := cruise + math.Log(vMax/kAccel)/kAccel + math.Log(vMax/100)/kDecel
	return max(t, 0)
}

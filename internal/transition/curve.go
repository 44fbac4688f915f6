package transition

import (
	"math"

	"github.com/tanema/gween/ease"

	"github.com/AaronLay10/protoflow/internal/model"
)

// Spring defaults used when a transition leaves the parameters unset.
const (
	DefaultSpringDamping  = 0.7
	DefaultSpringResponse = 0.4
)

// Easing returns the easing function for the transition's curve.
// Unknown curves fall back to ease.
func Easing(t model.Transition) ease.TweenFunc {
	switch t.Curve {
	case model.CurveLinear:
		return ease.Linear
	case model.CurveEaseIn:
		return ease.InQuad
	case model.CurveEaseOut:
		return ease.OutQuad
	case model.CurveEaseInOut:
		return ease.InOutQuad
	case model.CurveSpring:
		damping, response := DefaultSpringDamping, DefaultSpringResponse
		if t.SpringDamping != nil {
			damping = *t.SpringDamping
		}
		if t.SpringResponse != nil {
			response = *t.SpringResponse
		}
		return Spring(damping, response)
	default:
		return ease.InOutSine
	}
}

// Spring returns a damped harmonic oscillator settling on the end value.
// damping is the damping ratio (1 is critical); response is the undamped
// period in seconds. The tween time t is expected in seconds. The result
// may overshoot the end value for damping below 1.
func Spring(damping, response float64) ease.TweenFunc {
	if damping <= 0 {
		damping = DefaultSpringDamping
	}
	if response <= 0 {
		response = DefaultSpringResponse
	}
	omega := 2 * math.Pi / response

	return func(t, b, c, d float32) float32 {
		x := float64(t)
		var p float64
		if damping < 1 {
			wd := omega * math.Sqrt(1-damping*damping)
			p = 1 - math.Exp(-damping*omega*x)*(math.Cos(wd*x)+damping*omega/wd*math.Sin(wd*x))
		} else {
			p = 1 - math.Exp(-omega*x)*(1+omega*x)
		}
		return b + c*float32(p)
	}
}

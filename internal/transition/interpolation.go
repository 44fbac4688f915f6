package transition

import (
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/value"
)

// Interpolation animates a resolved element set toward another over a
// transition's delay and duration.
type Interpolation struct {
	TransitionID string

	from, to []model.Element
	start    time.Duration
	delay    time.Duration
	duration time.Duration
	tween    *gween.Tween
}

// NewInterpolation starts an interpolation at scheduler time start. from
// should be whatever is on screen at that instant, which may itself be a
// sample of an interrupted interpolation.
func NewInterpolation(t model.Transition, from, to []model.Element, start time.Duration) *Interpolation {
	ip := &Interpolation{
		TransitionID: t.ID,
		from:         from,
		to:           to,
		start:        start,
		delay:        model.Millis(t.Delay),
		duration:     model.Millis(t.Duration),
	}
	if ip.duration > 0 {
		ip.tween = gween.New(0, 1, float32(ip.duration.Seconds()), Easing(t))
	}
	return ip
}

// Blend returns an interpolation between two element sets that is not
// tied to a transition, used by property animations.
func Blend(from, to []model.Element, start, duration time.Duration, fn ease.TweenFunc) *Interpolation {
	ip := &Interpolation{from: from, to: to, start: start, duration: duration}
	if duration > 0 {
		ip.tween = gween.New(0, 1, float32(duration.Seconds()), fn)
	}
	return ip
}

// Progress returns the time progress in [0, 1]. It stays 0 during the delay.
func (ip *Interpolation) Progress(now time.Duration) float64 {
	elapsed := now - ip.start - ip.delay
	if elapsed <= 0 {
		if ip.duration <= 0 && now-ip.start >= ip.delay {
			return 1
		}
		return 0
	}
	if ip.duration <= 0 || elapsed >= ip.duration {
		return 1
	}
	return float64(elapsed) / float64(ip.duration)
}

// Done reports whether the interpolation has reached its end.
func (ip *Interpolation) Done(now time.Duration) bool {
	return ip.Progress(now) >= 1
}

// Target returns the element set the interpolation ends on.
func (ip *Interpolation) Target() []model.Element {
	return ip.to
}

// eased maps time progress through the curve. Springs may leave [0, 1].
func (ip *Interpolation) eased(p float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 || ip.tween == nil {
		return 1
	}
	v, _ := ip.tween.Set(float32(p * ip.duration.Seconds()))
	return float64(v)
}

// Sample returns the element set as it appears at now. Numeric properties
// are blended along the curve; everything else switches at half progress.
func (ip *Interpolation) Sample(now time.Duration) []model.Element {
	p := ip.Progress(now)
	k := ip.eased(p)

	fromByID := make(map[string]model.Element, len(ip.from))
	for _, el := range ip.from {
		fromByID[el.ID] = el
	}

	out := make([]model.Element, 0, len(ip.to))
	seen := make(map[string]bool, len(ip.to))
	for _, el := range ip.to {
		seen[el.ID] = true
		prev, ok := fromByID[el.ID]
		if !ok {
			if p >= 0.5 {
				out = append(out, el.Clone())
			}
			continue
		}
		out = append(out, model.Element{ID: el.ID, Props: blendProps(prev.Props, el.Props, p, k)})
	}
	if p < 0.5 {
		for _, el := range ip.from {
			if !seen[el.ID] {
				out = append(out, el.Clone())
			}
		}
	}
	return out
}

func blendProps(from, to model.Props, p, k float64) model.Props {
	out := make(model.Props, len(to))
	for key, tv := range to {
		fv, ok := from[key]
		if !ok {
			if p >= 0.5 {
				out[key] = model.CloneValue(tv)
			}
			continue
		}
		out[key] = blend(fv, tv, p, k)
	}
	if p < 0.5 {
		for key, fv := range from {
			if _, ok := to[key]; !ok {
				out[key] = model.CloneValue(fv)
			}
		}
	}
	return out
}

func blend(from, to interface{}, p, k float64) interface{} {
	if a, ok := number(from); ok {
		if b, ok := number(to); ok {
			return a + (b-a)*k
		}
	}
	if fm, ok := asMap(from); ok {
		if tm, ok := asMap(to); ok {
			return map[string]interface{}(blendProps(fm, tm, p, k))
		}
	}
	if p < 0.5 {
		return model.CloneValue(from)
	}
	return model.CloneValue(to)
}

// number accepts only real numeric values; numeric-looking strings such as
// colors stay discrete.
func number(v interface{}) (float64, bool) {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return value.Number(v)
	}
	return 0, false
}

func asMap(v interface{}) (model.Props, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return model.Props(t), true
	case model.Props:
		return t, true
	}
	return nil, false
}

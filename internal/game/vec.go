package game

import "math"

// Vec2 is a 2D vector in world units. +Y points down, matching screen space.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Below this length a direction is treated as "no input".
const epsilon = 1e-9

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(k float64) Vec2 { return Vec2{v.X * k, v.Y * k} }
func (v Vec2) Dot(o Vec2) float64   { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Len() float64         { return math.Hypot(v.X, v.Y) }
func (v Vec2) Dist(o Vec2) float64  { return math.Hypot(o.X-v.X, o.Y-v.Y) }
func (v Vec2) Perp() Vec2           { return Vec2{-v.Y, v.X} }
func (v Vec2) IsZero() bool         { return v.Len() < epsilon }
func (v Vec2) Lerp(o Vec2, t float64) Vec2 {
	return Vec2{v.X + (o.X-v.X)*t, v.Y + (o.Y-v.Y)*t}
}

// Normalize returns the unit vector and true, or the zero vector and false
// when v is too short to have a direction.
func (v Vec2) Normalize() (Vec2, bool) {
	l := v.Len()
	if l < epsilon {
		return Vec2{}, false
	}
	return Vec2{v.X / l, v.Y / l}, true
}

// ClampLen limits v to length limit, keeping its direction.
func (v Vec2) ClampLen(limit float64) Vec2 {
	l := v.Len()
	if l <= limit || l < epsilon {
		return v
	}
	return v.Scale(limit / l)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// countdown decrements a timer by dt, flooring at zero.
func countdown(t *float64, dt float64) {
	*t -= dt
	if *t < 0 {
		*t = 0
	}
}

// ease is the frame-rate independent lerp factor for exponential
// smoothing: after one second the remaining gap is base.
func ease(base, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	return 1 - math.Pow(base, dt)
}

// angleBetween returns the angle between two unit vectors. The dot product
// is clamped so rounding never pushes acos outside its domain.
func angleBetween(a, b Vec2) float64 {
	return math.Acos(clamp(a.Dot(b), -1, 1))
}

// Package curve maps sensor readings to control outputs through
// piecewise-linear interpolation. A curve is defined by breakpoints
// with strictly increasing inputs; evaluation applies hysteresis on
// the way down, an optional hold-at-zero floor, and output clamping.
package curve

import (
	"fmt"

	"codeberg.org/mutker/nvidiamon/internal/errors"
)

// Point maps one input reading to one output value, for example
// degrees Celsius to fan percent.
type Point struct {
	Input  float64
	Output float64
}

// Config describes a curve before validation. Floor 0 disables the
// hold-at-zero behavior.
type Config struct {
	Points     []Point
	Hysteresis float64
	Floor      float64
	MinOutput  float64
	MaxOutput  float64
}

// Validate checks that the configuration describes a usable curve
func (c Config) Validate() error {
	errFactory := errors.New()

	if len(c.Points) < 2 {
		return errFactory.WithMessage(ErrInvalidPoints, "curve requires at least two points")
	}

	for i := 1; i < len(c.Points); i++ {
		if c.Points[i].Input <= c.Points[i-1].Input {
			return errFactory.WithMessage(ErrInvalidPoints,
				fmt.Sprintf("curve inputs must be strictly increasing (point %d: %.1f after %.1f)",
					i, c.Points[i].Input, c.Points[i-1].Input))
		}
	}

	if c.Hysteresis < 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "hysteresis must not be negative")
	}

	if c.MinOutput > c.MaxOutput {
		return errFactory.WithMessage(ErrInvalidConfig,
			fmt.Sprintf("min output %.1f exceeds max output %.1f", c.MinOutput, c.MaxOutput))
	}

	return nil
}

// Curve is a validated, immutable control curve. Construct one with
// New; a Curve in hand always evaluates without error.
type Curve struct {
	points     []Point
	hysteresis float64
	floor      float64
	minOutput  float64
	maxOutput  float64
}

// New validates the configuration and builds a curve from it. The
// point slice is copied, so the caller may reuse or mutate its own.
func New(cfg Config) (*Curve, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	points := make([]Point, len(cfg.Points))
	copy(points, cfg.Points)

	return &Curve{
		points:     points,
		hysteresis: cfg.Hysteresis,
		floor:      cfg.Floor,
		minOutput:  cfg.MinOutput,
		maxOutput:  cfg.MaxOutput,
	}, nil
}

// Evaluate maps input to a control output. previousOutput is the
// value the caller last applied; when it is above zero the input is
// lowered by the hysteresis before lookup, so the curve holds its
// state a little longer on the way down than on the way up. The
// function is pure, the caller carries all state between calls.
func (c *Curve) Evaluate(input, previousOutput float64) float64 {
	adjusted := input
	if previousOutput > 0 {
		adjusted -= c.hysteresis
	}

	if c.floor > 0 && adjusted < c.floor {
		return 0
	}

	return clamp(c.interpolate(adjusted), c.minOutput, c.maxOutput)
}

// interpolate looks up the bracketing point pair and interpolates
// linearly between them. Inputs outside the curve clamp to the edge
// outputs rather than extrapolating.
func (c *Curve) interpolate(input float64) float64 {
	first := c.points[0]
	if input <= first.Input {
		return first.Output
	}

	last := c.points[len(c.points)-1]
	if input >= last.Input {
		return last.Output
	}

	for i := 1; i < len(c.points); i++ {
		p1 := c.points[i-1]
		p2 := c.points[i]
		if input <= p2.Input {
			return p1.Output + (p2.Output-p1.Output)*(input-p1.Input)/(p2.Input-p1.Input)
		}
	}

	return last.Output
}

func clamp(value, lower, upper float64) float64 {
	if value < lower {
		return lower
	}
	if value > upper {
		return upper
	}

	return value
}

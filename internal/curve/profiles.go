package curve

import (
	"fmt"
	"sort"

	"codeberg.org/mutker/nvidiamon/internal/errors"
)

// Profiles is a named set of curve configurations
type Profiles map[string]Config

// Resolve returns the named profile from the set
func (p Profiles) Resolve(name string) (Config, error) {
	cfg, ok := p[name]
	if !ok {
		errFactory := errors.New()
		return Config{}, errFactory.WithMessage(ErrProfileNotFound,
			fmt.Sprintf("unknown profile %q (available: %v)", name, p.Names()))
	}

	return cfg, nil
}

// Merge returns a new set containing the base profiles with overlay
// entries replacing same-named ones. Neither input is modified.
func (p Profiles) Merge(overlay Profiles) Profiles {
	merged := make(Profiles, len(p)+len(overlay))
	for name, cfg := range p {
		merged[name] = cfg
	}
	for name, cfg := range overlay {
		merged[name] = cfg
	}

	return merged
}

// Names lists the profile names in sorted order
func (p Profiles) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// WithHysteresis returns a copy of the configuration with the given
// hysteresis applied, unless the profile already carries its own.
func (c Config) WithHysteresis(hysteresis float64) Config {
	if c.Hysteresis == 0 {
		c.Hysteresis = hysteresis
	}

	return c
}

// FanProfiles returns the built-in fan curves, mapping GPU temperature
// in degrees Celsius to fan duty cycle percent.
func FanProfiles() Profiles {
	return Profiles{
		"standard": {
			Points: []Point{
				{Input: 40, Output: 20},
				{Input: 55, Output: 40},
				{Input: 70, Output: 60},
				{Input: 80, Output: 80},
				{Input: 90, Output: 100},
			},
			MaxOutput: 100,
		},
		// Fans stay off below 40C and stop again once the hysteresis-
		// adjusted temperature drops back under it.
		"silent": {
			Points: []Point{
				{Input: 40, Output: 0},
				{Input: 55, Output: 35},
				{Input: 70, Output: 55},
				{Input: 80, Output: 75},
				{Input: 90, Output: 100},
			},
			Floor:     40,
			MaxOutput: 100,
		},
		"aggressive": {
			Points: []Point{
				{Input: 30, Output: 30},
				{Input: 45, Output: 50},
				{Input: 60, Output: 70},
				{Input: 75, Output: 90},
				{Input: 85, Output: 100},
			},
			MaxOutput: 100,
		},
	}
}

// PowerProfiles returns the built-in power limit curves, mapping GPU
// temperature in degrees Celsius to a power limit as percent of the
// device maximum. Outputs fall as temperature rises.
func PowerProfiles() Profiles {
	return Profiles{
		"standard": {
			Points: []Point{
				{Input: 50, Output: 100},
				{Input: 70, Output: 90},
				{Input: 80, Output: 75},
				{Input: 90, Output: 60},
			},
			MinOutput: 50,
			MaxOutput: 100,
		},
		"efficiency": {
			Points: []Point{
				{Input: 45, Output: 85},
				{Input: 60, Output: 75},
				{Input: 75, Output: 65},
				{Input: 85, Output: 50},
			},
			MinOutput: 50,
			MaxOutput: 100,
		},
	}
}

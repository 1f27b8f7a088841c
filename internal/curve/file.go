package curve

import (
	"fmt"
	"os"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"gopkg.in/yaml.v3"
)

// profileSpec is the on-disk shape of a single profile. Points are
// written as [input, output] pairs. An omitted max_output defaults
// to 100 so simple percent curves need no clamp boilerplate.
type profileSpec struct {
	Points     [][2]float64 `yaml:"points"`
	Hysteresis float64      `yaml:"hysteresis"`
	Floor      float64      `yaml:"floor"`
	MinOutput  float64      `yaml:"min_output"`
	MaxOutput  float64      `yaml:"max_output"`
}

type profileFile struct {
	Profiles map[string]profileSpec `yaml:"profiles"`
}

func (s profileSpec) config() Config {
	points := make([]Point, len(s.Points))
	for i, p := range s.Points {
		points[i] = Point{Input: p[0], Output: p[1]}
	}

	maxOutput := s.MaxOutput
	if maxOutput == 0 {
		maxOutput = 100
	}

	return Config{
		Points:     points,
		Hysteresis: s.Hysteresis,
		Floor:      s.Floor,
		MinOutput:  s.MinOutput,
		MaxOutput:  maxOutput,
	}
}

// LoadProfiles reads a YAML profile file and validates every profile
// in it. A single invalid profile fails the whole load, so a partial
// set never replaces known-good profiles.
func LoadProfiles(path string) (Profiles, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrProfileLoadFailed, err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errFactory.Wrap(ErrProfileLoadFailed, err)
	}

	if len(file.Profiles) == 0 {
		return nil, errFactory.WithMessage(ErrProfileLoadFailed,
			fmt.Sprintf("no profiles defined in %s", path))
	}

	profiles := make(Profiles, len(file.Profiles))
	for name, spec := range file.Profiles {
		cfg := spec.config()
		if err := cfg.Validate(); err != nil {
			return nil, errFactory.WithMessage(ErrProfileLoadFailed,
				fmt.Sprintf("profile %q: %v", name, err))
		}
		profiles[name] = cfg
	}

	return profiles, nil
}

package experiment

import (
	"regexp"
	"strconv"
)

// RandomFramework names data generated without a generating sampler
const RandomFramework = "Random"

var temperatureSuffix = regexp.MustCompile(`^(.+)_T(\d+(?:\.\d+)?)$`)

// Framework identifies the sampler that generated a data source
type Framework struct {
	Name           string
	Temperature    float64
	HasTemperature bool
}

// ParseFramework reads a data source name of the form <name> or
// <name>_T<temperature>, e.g. "Mallows_Tau_T10.0".
func ParseFramework(source string) Framework {
	if m := temperatureSuffix.FindStringSubmatch(source); m != nil {
		if t, err := strconv.ParseFloat(m[2], 64); err == nil {
			return Framework{Name: m[1], Temperature: t, HasTemperature: true}
		}
	}
	return Framework{Name: source}
}

// IsRandom reports whether the source has no generating sampler to reference
func (f Framework) IsRandom() bool {
	return f.Name == RandomFramework
}

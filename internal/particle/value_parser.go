package particle

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// ParseCurve parses the text form of a curve used by YAML documents and the
// command line tools.
//
// Supported formats:
//   - Constant: "20" → flat linear curve at 20
//   - Keyframes: "0,1 50,0.2 100,0" → time,value pairs in percent of lifespan
//   - Interpolation: "Smooth 0,1 100,0" or "0,0 100,7 Step" (keyword anywhere)
//
// Keyframe lists must start at time 0 and end at time 100.
func ParseCurve(s string) (Curve, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Curve{}, fmt.Errorf("empty curve")
	}

	interp := Linear
	var keys []Key
	var constant *float32
	for _, f := range fields {
		if mode, ok := parseInterpolation(f); ok {
			interp = mode
			continue
		}

		timeStr, valueStr, isPair := strings.Cut(f, ",")
		if !isPair {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil || constant != nil || keys != nil {
				return Curve{}, fmt.Errorf("invalid curve token %q", f)
			}
			value := float32(v)
			constant = &value
			continue
		}
		if constant != nil {
			return Curve{}, fmt.Errorf("curve %q mixes a constant and keyframes", s)
		}

		t, err := strconv.ParseFloat(strings.TrimSpace(timeStr), 32)
		if err != nil {
			return Curve{}, fmt.Errorf("invalid key time %q: %w", timeStr, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 32)
		if err != nil {
			return Curve{}, fmt.Errorf("invalid key value %q: %w", valueStr, err)
		}
		keys = append(keys, Key{Time: float32(t), Value: float32(v)})
	}

	if constant != nil {
		return NewFlatCurve(*constant, interp), nil
	}
	c := Curve{Keys: keys, Interpolation: interp}
	if err := c.Validate(); err != nil {
		return Curve{}, err
	}
	return c, nil
}

// String formats c so that ParseCurve reads it back.
func (c Curve) String() string {
	var sb strings.Builder
	sb.WriteString(c.Interpolation.String())
	for _, k := range c.Keys {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(float64(k.Time), 'g', -1, 32))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(float64(k.Value), 'g', -1, 32))
	}
	return sb.String()
}

func parseInterpolation(s string) (Interpolation, bool) {
	switch strings.ToLower(s) {
	case "linear":
		return Linear, true
	case "smooth":
		return Smooth, true
	case "step":
		return Step, true
	}
	return 0, false
}

// RandomInRange returns a random value in [min, max) drawn from rng.
func RandomInRange(rng *rand.Rand, min, max float32) float32 {
	if min == max {
		return min
	}
	return min + rng.Float32()*(max-min)
}

package particle

import (
	"errors"
	"math"
)

// ErrInvalidScale is returned for a non-positive or non-finite rescale factor.
var ErrInvalidScale = errors.New("particle: scale factor must be positive")

// Rescale stretches every emitter of s in time by timeScale and in space by
// sizeScale. It reports whether anything changed.
func (s *ParticleSystemDef) Rescale(timeScale, sizeScale float32) (bool, error) {
	if err := checkScale(timeScale, sizeScale); err != nil {
		return false, err
	}
	if timeScale == 1 && sizeScale == 1 {
		return false, nil
	}
	for _, e := range s.Emitters {
		e.rescale(timeScale, sizeScale)
	}
	return true, nil
}

// RescaleEmitter stretches a single emitter. See ParticleSystemDef.Rescale.
func RescaleEmitter(e *EmitterDef, timeScale, sizeScale float32) (bool, error) {
	if err := checkScale(timeScale, sizeScale); err != nil {
		return false, err
	}
	if timeScale == 1 && sizeScale == 1 {
		return false, nil
	}
	e.rescale(timeScale, sizeScale)
	return true, nil
}

func checkScale(scales ...float32) error {
	for _, f := range scales {
		if !(f > 0) || math.IsInf(float64(f), 0) {
			return ErrInvalidScale
		}
	}
	return nil
}

func (e *EmitterDef) rescale(timeScale, sizeScale float32) {
	if timeScale != 1 {
		e.SkipTime *= timeScale
		e.FreezeTime *= timeScale
		e.InitialDelay *= timeScale
		e.Lifetime *= timeScale

		// Weather emitters keep a fixed population and are not re-timed.
		if !e.IsWeatherParticle {
			e.rescaleSpawnRate(timeScale)

			e.Groups[GroupSpeed].Scale(1 / timeScale)
			e.InwardSpeed /= timeScale
			e.InwardAcceleration /= timeScale
			for i := range e.Acceleration {
				e.Acceleration[i] /= timeScale
			}
			e.Gravity /= timeScale
		}
	}

	if sizeScale != 1 {
		e.Track(TrackScale).Scale(sizeScale)
		e.Groups[GroupPosition].Scale(sizeScale)
		e.Groups[GroupSpeed].Scale(sizeScale)
		e.InwardSpeed *= sizeScale
		e.InwardAcceleration *= sizeScale
		for i := range e.Acceleration {
			e.Acceleration[i] *= sizeScale
		}
		e.Gravity *= sizeScale
		e.TailSize *= sizeScale
	}
}

// rescaleSpawnRate keeps the emission rate expressible after a time stretch,
// switching between particles per second and infinite single bursts.
func (e *EmitterDef) rescaleSpawnRate(timeScale float32) {
	if e.UseBursts {
		e.BurstDelay *= timeScale
		n := float32(math.Floor(float64(1/e.BurstDelay*10000)+0.5) / 10000)
		if isWhole(n) && e.ParticlesPerBurst == 1 && e.NumBursts == 0 {
			e.UseBursts = false
			e.ParticlesPerSecond = uint32(n)
		}
		return
	}

	n := float32(e.ParticlesPerSecond) / timeScale
	if !isWhole(n) {
		e.UseBursts = true
		e.NumBursts = 0
		e.BurstDelay = 1 / n
		e.ParticlesPerBurst = 1
		return
	}
	e.ParticlesPerSecond = uint32(n)
}

func isWhole(f float32) bool {
	if math.IsInf(float64(f), 0) {
		return false
	}
	return float32(math.Trunc(float64(f))) == f
}

package daemon

import (
	"errors"
	"fmt"
	"math"
)

// StepFunction maps a temperature to a fan speed.
// values has one more element than thresholds: values[0] applies below
// thresholds[0], values[i] between thresholds[i-1] and thresholds[i].
type StepFunction struct {
	thresholds []float64
	values     []float64
}

func NewStepFunction(thresholds, values []float64) (*StepFunction, error) {
	if len(values) != len(thresholds)+1 {
		return nil, errors.New("number of thresholds and values do not match")
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i-1] >= thresholds[i] {
			return nil, errors.New("threshold values are not sorted and/or not distinct")
		}
	}
	return &StepFunction{thresholds: thresholds, values: values}, nil
}

// FromLUT builds a StepFunction from the config lookup table.
func FromLUT(lut []LUTEntry) (*StepFunction, error) {
	if len(lut) < 1 {
		return nil, errors.New("LUT spec is empty")
	}
	if !lut[0].Default {
		return nil, errors.New("first LUT entry must specify default value")
	}

	thresholds := make([]float64, 0, len(lut)-1)
	values := make([]float64, 0, len(lut))
	for i, entry := range lut {
		if i > 0 {
			if entry.Default {
				return nil, fmt.Errorf("LUT entry %d: default is only allowed first", i)
			}
			thresholds = append(thresholds, entry.Threshold)
		}
		values = append(values, entry.Speed)
	}
	return NewStepFunction(thresholds, values)
}

func (f *StepFunction) Eval(x float64) float64 {
	for i, threshold := range f.thresholds {
		if x < threshold {
			return f.values[i]
		}
	}
	return f.values[len(f.values)-1]
}

// Speed returns the rounded fan speed for temperature x.
func (f *StepFunction) Speed(x float64) int {
	return int(math.Round(f.Eval(x)))
}

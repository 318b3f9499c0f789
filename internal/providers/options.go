package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Recognized option keys. Unknown keys are ignored.
const (
	OptTemperature = "temperature"
	OptUseVision   = "use_vision"
	OptAPIVersion  = "api_version"
	OptMaxSteps    = "max_steps"
)

var ErrInvalidOption = errors.New("invalid option")

// Options are the decoded generic task options. Zero values mean "use the
// provider default".
type Options struct {
	Temperature float64
	UseVision   *bool
	APIVersion  string
	MaxSteps    int
}

// ParseOptions decodes the generic options from a request's option map.
func ParseOptions(raw map[string]any) (Options, error) {
	var o Options
	if v, ok := raw[OptTemperature]; ok && v != nil {
		f, err := toFloat(v)
		if err != nil || f < 0 || f > 2 {
			return o, fmt.Errorf("%w: temperature must be a number between 0 and 2", ErrInvalidOption)
		}
		o.Temperature = f
	}
	if v, ok := raw[OptUseVision]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return o, fmt.Errorf("%w: use_vision must be a boolean", ErrInvalidOption)
		}
		o.UseVision = &b
	}
	if v, ok := raw[OptAPIVersion]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return o, fmt.Errorf("%w: api_version must be a string", ErrInvalidOption)
		}
		o.APIVersion = s
	}
	if v, ok := raw[OptMaxSteps]; ok && v != nil {
		f, err := toFloat(v)
		if err != nil || f < 1 || f != math.Trunc(f) {
			return o, fmt.Errorf("%w: max_steps must be a positive integer", ErrInvalidOption)
		}
		o.MaxSteps = int(f)
	}
	return o, nil
}

// Vision returns the use_vision option or def when it was not given.
func (o Options) Vision(def bool) bool {
	if o.UseVision == nil {
		return def
	}
	return *o.UseVision
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

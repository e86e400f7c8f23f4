package load

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/JakeFAU/leasecar-etl/internal/flatfile"
)

// ErrConvert marks a field that does not parse as its column's kind.
var ErrConvert = errors.New("value does not match column type")

// convert turns one flat-file field into the value bound for c. Missing
// values become nil, which the driver sends as NULL.
func convert(c Column, field string) (any, error) {
	if flatfile.IsMissing(field) {
		return nil, nil
	}
	switch c.Kind {
	case KindInt:
		s := strings.TrimSpace(field)
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v, nil
		}
		// Integer columns that once held a gap are written as floats by
		// dataframe tooling ("2024.0").
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %s=%q is not an integer", ErrConvert, c.Name, field)
		}
		if f >= 0x1p63 || f < -0x1p63 {
			return nil, fmt.Errorf("%w: %s=%q overflows int64", ErrConvert, c.Name, field)
		}
		return int64(f), nil
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %s=%q is not a number", ErrConvert, c.Name, field)
		}
		return f, nil
	default:
		return field, nil
	}
}

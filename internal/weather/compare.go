package weather

import (
	"math"

	"github.com/icheolgyu/station-compare/internal/common"
)

// ErrorSeries is the percentage deviation of the sensor series from the
// reference series, with summary statistics. Nil entries mark indexes
// where the deviation is undefined.
type ErrorSeries struct {
	Errors  []*float64
	Average *float64
	Latest  *float64
}

// ComputeErrors derives per-index percentage errors between parallel
// sensor and reference series. An index where either value is nil or the
// reference is zero yields nil. Average is the mean of non-nil errors;
// Latest is the last non-nil error.
func ComputeErrors(sensor, reference []*float64) ErrorSeries {
	n := len(sensor)
	if len(reference) < n {
		n = len(reference)
	}

	errs := make([]*float64, n)
	var sum float64
	var count int

	for i := 0; i < n; i++ {
		s, r := sensor[i], reference[i]
		if s == nil || r == nil || *r == 0 {
			continue
		}
		e := common.Round2(math.Abs(*s-*r) / math.Abs(*r) * 100)
		errs[i] = &e
		sum += e
		count++
	}

	result := ErrorSeries{Errors: errs}
	if count > 0 {
		result.Average = common.Ptr(common.Round2(sum / float64(count)))
	}
	for i := n - 1; i >= 0; i-- {
		if errs[i] != nil {
			result.Latest = errs[i]
			break
		}
	}
	return result
}

package score

import (
	"math"
	"strconv"
)

// Rate is a float64 that serializes NaN as JSON null instead of failing the
// encoder, so empty blocks survive the task_ends payload.
type Rate float64

func (r Rate) MarshalJSON() ([]byte, error) {
	f := float64(r)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
}

// Metric holds one statistic per block plus the average over all trials.
type Metric struct {
	Blocks  []Rate `json:"blocks"`
	Average Rate   `json:"average"`
}

// Stats is the summary emitted with task_ends.
type Stats struct {
	HitRate            Metric `json:"hitRate"`
	ClassificationTime Metric `json:"classificationTime"`
}

package trial

import (
	"log/slog"
	"time"

	"github.com/go-errors/errors"
	"github.com/montanaflynn/stats"
)

// DurationStats summarizes attempt durations.
type DurationStats struct {
	Min    time.Duration
	Median time.Duration
	P90    time.Duration
	Max    time.Duration
}

func (r *Report) Stats() (DurationStats, error) {
	data := make(stats.Float64Data, len(r.Results))
	for i, result := range r.Results {
		data[i] = float64(result.Duration)
	}

	var ds DurationStats
	var err error
	var v float64
	if v, err = data.Min(); err != nil {
		return ds, errors.WrapPrefix(err, "duration min", 0)
	}
	ds.Min = time.Duration(v)
	if v, err = data.Median(); err != nil {
		return ds, errors.WrapPrefix(err, "duration median", 0)
	}
	ds.Median = time.Duration(v)
	if v, err = data.PercentileNearestRank(90); err != nil {
		return ds, errors.WrapPrefix(err, "duration p90", 0)
	}
	ds.P90 = time.Duration(v)
	if v, err = data.Max(); err != nil {
		return ds, errors.WrapPrefix(err, "duration max", 0)
	}
	ds.Max = time.Duration(v)
	return ds, nil
}

func (ds DurationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Duration("min", ds.Min),
		slog.Duration("median", ds.Median),
		slog.Duration("p90", ds.P90),
		slog.Duration("max", ds.Max))
}

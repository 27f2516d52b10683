package series

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	sensors "hydro-dashboard/internal/sensors/domain"
)

// DefaultEpoch is the unix time of the rig's first reading.
const DefaultEpoch int64 = 1743919923

const (
	secondsPerDay  = int64(24 * 60 * 60)
	secondsPerWeek = 7 * secondsPerDay

	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Point is one labeled value of a series.
type Point struct {
	Label     string    `json:"label"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
}

// Series is an ordered list of points for one parameter.
type Series struct {
	Parameter   sensors.ParameterKey `json:"parameter"`
	Granularity string               `json:"granularity"`
	Points      []Point              `json:"points"`
}

// Labels returns the point labels in order.
func (s Series) Labels() []string {
	out := make([]string, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Label
	}
	return out
}

// Values returns the point values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Aggregator turns a history log into chart series.
type Aggregator struct {
	epoch int64
	loc   *time.Location
}

// Option configures the aggregator.
type Option func(*Aggregator)

// WithEpoch overrides the day and week origin.
func WithEpoch(epoch int64) Option {
	return func(a *Aggregator) {
		if epoch > 0 {
			a.epoch = epoch
		}
	}
}

// WithLocation sets the zone used for calendar days and labels.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// NewAggregator constructs an aggregator with UTC labels.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{epoch: DefaultEpoch, loc: time.UTC}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Epoch returns the configured origin in unix seconds.
func (a *Aggregator) Epoch() int64 {
	return a.epoch
}

// Aggregate builds the series for key at granularity g. An invalid
// granularity or empty log yields an empty series.
func (a *Aggregator) Aggregate(log sensors.HistoryLog, key sensors.ParameterKey, g Granularity, now time.Time) Series {
	out := Series{Parameter: key, Granularity: g.String(), Points: []Point{}}
	if len(log) == 0 || g.Validate() != nil {
		return out
	}
	entries := log.Sorted()
	switch g.Kind {
	case KindRolling:
		out.Points = a.rolling(entries, key, g.Hours, now)
	case KindDaily:
		out.Points = a.daily(entries, key)
	case KindWeekly:
		out.Points = a.weekly(entries, key)
	}
	return out
}

func (a *Aggregator) rolling(entries []sensors.HistoryEntry, key sensors.ParameterKey, hours int, now time.Time) []Point {
	cutoff := now.Unix() - int64(hours)*3600
	points := []Point{}
	for _, entry := range entries {
		if entry.At < cutoff {
			continue
		}
		value, ok := entry.Reading.Value(key)
		if !ok {
			continue
		}
		at := time.Unix(entry.At, 0).In(a.loc)
		points = append(points, Point{
			Label:     fmt.Sprintf("DAY %d, %s, %s", a.dayNumber(entry.At), at.Format(dateLayout), at.Format(timeLayout)),
			Value:     value,
			Timestamp: at,
			Count:     1,
		})
	}
	return points
}

type bucket struct {
	first  int64
	values []float64
}

func (a *Aggregator) daily(entries []sensors.HistoryEntry, key sensors.ParameterKey) []Point {
	buckets := make(map[string]*bucket)
	for _, entry := range entries {
		if entry.At < a.epoch {
			continue
		}
		value, ok := entry.Reading.Value(key)
		if !ok {
			continue
		}
		day := time.Unix(entry.At, 0).In(a.loc).Format(dateLayout)
		b, exists := buckets[day]
		if !exists {
			b = &bucket{first: entry.At}
			buckets[day] = b
		}
		b.values = append(b.values, value)
	}

	days := make([]string, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Strings(days)

	points := make([]Point, 0, len(days))
	for _, day := range days {
		b := buckets[day]
		points = append(points, Point{
			Label:     fmt.Sprintf("DAY %d, %s", a.dayNumber(b.first), day),
			Value:     stat.Mean(b.values, nil),
			Timestamp: time.Unix(b.first, 0).In(a.loc),
			Count:     len(b.values),
		})
	}
	return points
}

func (a *Aggregator) weekly(entries []sensors.HistoryEntry, key sensors.ParameterKey) []Point {
	buckets := make(map[int64]*bucket)
	for _, entry := range entries {
		if entry.At < a.epoch {
			continue
		}
		value, ok := entry.Reading.Value(key)
		if !ok {
			continue
		}
		index := ((entry.At - a.epoch) / secondsPerDay) / 7
		b, exists := buckets[index]
		if !exists {
			b = &bucket{first: entry.At}
			buckets[index] = b
		}
		b.values = append(b.values, value)
	}

	indexes := make([]int64, 0, len(buckets))
	for index := range buckets {
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	points := make([]Point, 0, len(indexes))
	for _, index := range indexes {
		b := buckets[index]
		start := time.Unix(a.epoch+index*secondsPerWeek, 0).In(a.loc)
		end := start.Add(6 * 24 * time.Hour)
		points = append(points, Point{
			Label:     fmt.Sprintf("WEEK %d (%s - %s)", index+1, start.Format(dateLayout), end.Format(dateLayout)),
			Value:     stat.Mean(b.values, nil),
			Timestamp: start,
			Count:     len(b.values),
		})
	}
	return points
}

// dayNumber counts started days since the epoch, rounding partial days up.
func (a *Aggregator) dayNumber(at int64) int64 {
	diff := at - a.epoch
	if diff < 0 {
		diff = -diff
	}
	return (diff + secondsPerDay - 1) / secondsPerDay
}

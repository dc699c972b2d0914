package weather

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/icheolgyu/station-compare/internal/common"
)

// anchorLookback is how far before the window start reference readings are
// fetched so the interpolator has anchor points ahead of the first label.
const anchorLookback = 2 * time.Hour

// Series is the reconciled view of one category over a label grid.
// Reference and Sensor run parallel to Labels; a nil value is a gap.
type Series struct {
	Labels    []time.Time
	Reference []*float64
	Sensor    []*float64
}

// BuildSeries aligns reference and sensor readings for one category onto a
// shared 10-minute grid from floor(windowStart) through floor(windowEnd)
// inclusive. Reference values are linearly interpolated between anchor
// slots; sensor values are bucketed into slots without interpolation.
func BuildSeries(ctx context.Context, store Store, category Category, windowStart, windowEnd time.Time) (Series, error) {
	start := FloorToSlot(windowStart)
	end := windowEnd.In(KST)

	labels := makeLabels(start, end)

	anchors, err := referenceAnchors(ctx, store, category, start, end)
	if err != nil {
		return Series{}, err
	}

	sensor, err := sensorBuckets(ctx, store, category, start, end, labels)
	if err != nil {
		return Series{}, err
	}

	return Series{
		Labels:    labels,
		Reference: interpolate(anchors, labels),
		Sensor:    sensor,
	}, nil
}

// makeLabels produces every 10-minute tick from start through floor(end)
// inclusive. start is already slot-aligned, so the grid has at least one
// point.
func makeLabels(start, end time.Time) []time.Time {
	var labels []time.Time
	for t := start; !t.After(end); t = t.Add(SlotInterval) {
		labels = append(labels, t)
	}
	return labels
}

// referenceAnchors floors each reference reading to its slot. Hourly
// readings are applied first and near-real-time ones after, so a
// near-real-time value wins a contested slot; within one source a later
// reading wins. As with upserts, a reading whose field is absent never
// erases an anchor another reading already filled — near-real-time data
// carries no pressure, and its nil must not blank the hourly anchors.
func referenceAnchors(ctx context.Context, store Store, category Category, start, end time.Time) (map[time.Time]*float64, error) {
	anchors := make(map[time.Time]*float64)

	for i := len(ReferenceSources) - 1; i >= 0; i-- {
		source := ReferenceSources[i]
		readings, err := store.QueryRange(ctx, []Source{source}, start.Add(-anchorLookback), end)
		if err != nil {
			return nil, fmt.Errorf("fetching %s readings: %w", source, err)
		}
		for _, r := range readings {
			slot := FloorToSlot(r.Timestamp)
			v := r.Value(category)
			if v == nil {
				if _, taken := anchors[slot]; taken {
					continue
				}
			}
			anchors[slot] = v
		}
	}

	return anchors, nil
}

// sensorBuckets floors each sensor reading to its slot, last reading per
// slot winning. Slots outside the label grid are dropped; slots with no
// reading stay nil.
func sensorBuckets(ctx context.Context, store Store, category Category, start, end time.Time, labels []time.Time) ([]*float64, error) {
	readings, err := store.QueryRange(ctx, []Source{SourceSensor}, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching sensor readings: %w", err)
	}

	buckets := make(map[time.Time]*float64)
	for _, r := range readings {
		buckets[FloorToSlot(r.Timestamp)] = r.Value(category)
	}

	values := make([]*float64, len(labels))
	for i, label := range labels {
		values[i] = buckets[label]
	}
	return values, nil
}

// interpolate fills the label grid from sparse anchors. Labels at or
// before the earliest anchor clamp to it, labels at or after the latest
// anchor clamp to it, and labels in between are linearly interpolated. A
// nil bounding anchor blocks the arithmetic and yields nil.
func interpolate(anchors map[time.Time]*float64, labels []time.Time) []*float64 {
	values := make([]*float64, len(labels))
	if len(anchors) == 0 {
		return values
	}

	slots := make([]time.Time, 0, len(anchors))
	for slot := range anchors {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })

	earliest, latest := slots[0], slots[len(slots)-1]

	for i, label := range labels {
		switch {
		case !label.After(earliest):
			values[i] = anchors[earliest]
		case !label.Before(latest):
			values[i] = anchors[latest]
		default:
			values[i] = interpolateAt(anchors, slots, label)
		}
	}
	return values
}

func interpolateAt(anchors map[time.Time]*float64, slots []time.Time, label time.Time) *float64 {
	// First anchor slot at or after the label; sort.Search keeps this
	// O(log n) over the anchor list.
	j := sort.Search(len(slots), func(k int) bool { return !slots[k].Before(label) })

	t2 := slots[j]
	v2 := anchors[t2]
	if t2.Equal(label) {
		return v2
	}

	t1 := slots[j-1]
	v1 := anchors[t1]
	if v1 == nil || v2 == nil {
		return nil
	}

	frac := float64(label.Sub(t1)) / float64(t2.Sub(t1))
	return common.Ptr(common.Round2(*v1 + frac*(*v2-*v1)))
}

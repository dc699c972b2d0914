package weather

import (
	"time"
)

// KST is the civil time zone every timestamp is normalized to before
// storage or comparison.
var KST = time.FixedZone("KST", 9*60*60)

// SlotInterval is the stride of the shared timeline grid.
const SlotInterval = 10 * time.Minute

// Source identifies where a reading came from.
type Source string

const (
	SourceSensor       Source = "sensor"
	SourceNearRealTime Source = "kma_nrt"
	SourceHourly       Source = "kma_hourly"
)

// ReferenceSources are the official-station sources the sensor is compared
// against, ordered by precedence.
var ReferenceSources = []Source{SourceNearRealTime, SourceHourly}

// Category selects which measured quantity a query is about.
type Category string

const (
	CategoryTemperature Category = "temperature"
	CategoryHumidity    Category = "humidity"
	CategoryPressure    Category = "pressure"
)

// Categories lists all supported categories in display order.
var Categories = []Category{CategoryTemperature, CategoryHumidity, CategoryPressure}

// Fields carries the optional measured values of a reading. A nil field
// means the source reported no value; absent upstream values are never
// normalized to zero.
type Fields struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Pressure    *float64 `json:"pressure"`
}

// Value returns the field matching the category, or nil.
func (f Fields) Value(c Category) *float64 {
	switch c {
	case CategoryTemperature:
		return f.Temperature
	case CategoryHumidity:
		return f.Humidity
	case CategoryPressure:
		return f.Pressure
	}
	return nil
}

// Empty reports whether no field carries a value.
func (f Fields) Empty() bool {
	return f.Temperature == nil && f.Humidity == nil && f.Pressure == nil
}

// Reading is the sole persisted entity. The pair (Source, Timestamp) is
// unique; Timestamp is always in KST.
type Reading struct {
	Source    Source    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Fields
}

// FloorToSlot truncates t to its 10-minute slot in KST.
func FloorToSlot(t time.Time) time.Time {
	t = t.In(KST)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()-t.Minute()%10, 0, 0, KST)
}

// FloorToMinute truncates t to the whole minute in KST.
func FloorToMinute(t time.Time) time.Time {
	t = t.In(KST)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, KST)
}

// StartOfDay returns midnight KST of t's civil day.
func StartOfDay(t time.Time) time.Time {
	t = t.In(KST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, KST)
}

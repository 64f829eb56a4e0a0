package chart

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"thermal_dashboard/internal/models"
)

// Kind selects which mapping of the snapshot a chart projects.
type Kind string

const (
	KindTemperature Kind = "temperature"
	KindTachometer  Kind = "tachometer"
)

// Kinds lists every chart the dashboard renders, in display order.
var Kinds = []Kind{KindTemperature, KindTachometer}

// ParseKind accepts a chart kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindTemperature, KindTachometer:
		return k, nil
	default:
		return "", fmt.Errorf("unknown chart %q", s)
	}
}

// Trace is one named line of a chart.
type Trace struct {
	Name string      `json:"name"`
	X    []time.Time `json:"x"`
	Y    []float64   `json:"y"`
}

// Chart is the full description of one rendered chart. It is rebuilt from
// scratch for every snapshot.
type Chart struct {
	Kind       Kind    `json:"kind"`
	Title      string  `json:"title"`
	YAxisTitle string  `json:"y_axis_title"`
	Traces     []Trace `json:"traces"`
	NoData     bool    `json:"no_data"`
	YMin       float64 `json:"y_min"`
	YMax       float64 `json:"y_max"`
}

// Build projects a snapshot onto the chart of the given kind. Traces come out
// sorted by series name so the same snapshot always builds the same chart.
func Build(kind Kind, s models.StateSnapshot) Chart {
	c := Chart{Kind: kind, YMin: 0, YMax: 1, Traces: []Trace{}}
	src := s.TemperatureC
	switch kind {
	case KindTemperature:
		c.Title = "Temperature"
		c.YAxisTitle = "Temperature (°C)"
	case KindTachometer:
		c.Title = "Fan Speed"
		c.YAxisTitle = "Revolutions Per Minute (RPM)"
		src = s.TachometerRPM
	}

	if len(src) == 0 {
		c.NoData = true
		return c
	}

	x := make([]time.Time, len(s.TimestampSec))
	for i, sec := range s.TimestampSec {
		x[i] = secondsToTime(sec)
	}

	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)

	maxY := 0.0
	for _, name := range names {
		y := make([]float64, len(src[name]))
		copy(y, src[name])
		for _, v := range y {
			maxY = math.Max(maxY, v)
		}
		xs := make([]time.Time, len(x))
		copy(xs, x)
		c.Traces = append(c.Traces, Trace{Name: name, X: xs, Y: y})
	}
	c.YMax = niceMax(maxY)
	c.NoData = len(s.TimestampSec) == 0
	return c
}

// secondsToTime converts device seconds to a millisecond-resolution instant.
func secondsToTime(sec float64) time.Time {
	return time.UnixMilli(int64(math.Round(sec * 1000))).UTC()
}

// niceMax rounds the top of a zero-anchored axis up to a readable value with
// a small margin above the data.
func niceMax(max float64) float64 {
	if max <= 0 || math.IsNaN(max) || math.IsInf(max, 0) {
		return 1
	}
	padded := max * 1.05
	step := math.Pow(10, math.Floor(math.Log10(padded))) / 2
	if step <= 0 || math.IsInf(step, 0) {
		return padded
	}
	return math.Ceil(padded/step) * step
}

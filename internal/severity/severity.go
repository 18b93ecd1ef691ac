// Package severity maps continuous change values to the ordinal burn
// severity scale used by fire management agencies.
package severity

import (
	"fmt"
	"math"

	"github.com/emberwatch/burnsight/internal/change"
	"github.com/emberwatch/burnsight/internal/raster"
)

// Class is one step of the ordered burn severity scale. Unclassified is the
// sentinel for pixels whose change value is no-data; it is never conflated
// with UnburnedVeryLow, otherwise masked burned area would read as unburned
// in the statistics.
type Class int

const (
	Unclassified Class = iota
	UnburnedVeryLow
	UnburnedLow
	LowSeverity
	ModerateLow
	ModerateHigh
	HighSeverity
)

var classNames = map[Class]string{
	Unclassified:    "unclassified",
	UnburnedVeryLow: "unburned_very_low",
	UnburnedLow:     "unburned_low",
	LowSeverity:     "low_severity",
	ModerateLow:     "moderate_low",
	ModerateHigh:    "moderate_high",
	HighSeverity:    "high_severity",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Classes returns the six real severity classes in canonical ascending
// order, without the Unclassified sentinel.
func Classes() []Class {
	return []Class{UnburnedVeryLow, UnburnedLow, LowSeverity, ModerateLow, ModerateHigh, HighSeverity}
}

// ParseClass resolves a class by its snake_case name, for threshold tables
// loaded from config.
func ParseClass(name string) (Class, error) {
	for class, n := range classNames {
		if n == name {
			return class, nil
		}
	}
	return Unclassified, fmt.Errorf("severity: unknown class %q", name)
}

// Bin binds one class to a half-open interval [Low, High) of change values.
// A boundary value belongs to the higher class.
type Bin struct {
	Class Class
	Low   float64
	High  float64
}

// Thresholds is an ordered, contiguous set of bins covering every finite
// change value. Tables are calibration per fire event and overridable per
// request.
type Thresholds []Bin

// DefaultThresholds is the standard dNBR table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		{Class: UnburnedVeryLow, Low: math.Inf(-1), High: -0.10},
		{Class: UnburnedLow, Low: -0.10, High: 0.10},
		{Class: LowSeverity, Low: 0.10, High: 0.27},
		{Class: ModerateLow, Low: 0.27, High: 0.44},
		{Class: ModerateHigh, Low: 0.44, High: 0.66},
		{Class: HighSeverity, Low: 0.66, High: math.Inf(1)},
	}
}

// Validate checks that the table is ascending, contiguous, free of gaps and
// overlaps, and covers the whole real line, so every finite value classifies
// to exactly one class.
func (t Thresholds) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("severity: empty threshold table")
	}
	if !math.IsInf(t[0].Low, -1) {
		return fmt.Errorf("severity: first bin must start at -Inf, starts at %v", t[0].Low)
	}
	if !math.IsInf(t[len(t)-1].High, 1) {
		return fmt.Errorf("severity: last bin must end at +Inf, ends at %v", t[len(t)-1].High)
	}
	for i, bin := range t {
		if bin.Class == Unclassified {
			return fmt.Errorf("severity: bin %d maps to the unclassified sentinel", i)
		}
		if !(bin.Low < bin.High) {
			return fmt.Errorf("severity: bin %d for %s is empty or inverted [%v, %v)", i, bin.Class, bin.Low, bin.High)
		}
		if i > 0 {
			if bin.Low != t[i-1].High {
				return fmt.Errorf("severity: gap or overlap between %s and %s at %v vs %v",
					t[i-1].Class, bin.Class, t[i-1].High, bin.Low)
			}
			if bin.Class <= t[i-1].Class {
				return fmt.Errorf("severity: classes not strictly ascending at bin %d (%s after %s)",
					i, bin.Class, t[i-1].Class)
			}
		}
	}
	return nil
}

// ClassFor maps one change value to its class. No-data maps to Unclassified.
func (t Thresholds) ClassFor(v float64) Class {
	if raster.IsNoData(v) {
		return Unclassified
	}
	for _, bin := range t {
		if v >= bin.Low && v < bin.High {
			return bin.Class
		}
		// The half-open top bin would exclude +Inf itself; the table covers
		// the whole real line, so +Inf belongs to the highest class.
		if math.IsInf(bin.High, 1) && math.IsInf(v, 1) {
			return bin.Class
		}
	}
	// Unreachable for a validated table.
	return Unclassified
}

// ClassifiedRaster labels every pixel of a difference raster with a severity
// class on the same grid.
type ClassifiedRaster struct {
	Grid         raster.Grid
	Kind         string
	Thresholds   Thresholds
	BeforeWindow raster.Window
	AfterWindow  raster.Window
	Classes      []Class
}

// Classify bins a difference raster with the given threshold table (nil
// means the default table).
func Classify(d *change.DifferenceRaster, t Thresholds) (*ClassifiedRaster, error) {
	if t == nil {
		t = DefaultThresholds()
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	classes := make([]Class, len(d.Values))
	for i, v := range d.Values {
		classes[i] = t.ClassFor(v)
	}

	return &ClassifiedRaster{
		Grid:         d.Grid,
		Kind:         string(d.Kind),
		Thresholds:   t,
		BeforeWindow: d.BeforeWindow,
		AfterWindow:  d.AfterWindow,
		Classes:      classes,
	}, nil
}

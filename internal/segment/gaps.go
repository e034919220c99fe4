package segment

import "fmt"

// SplittingRule parameterizes one gap-detection decision.
type SplittingRule struct {
	ThresholdScale float64 `mapstructure:"threshold_scale" yaml:"threshold_scale" json:"threshold_scale"`
	MinDifference  int     `mapstructure:"min_difference" yaml:"min_difference" json:"min_difference"`
}

// Validate rejects rules that cannot select anything.
func (r SplittingRule) Validate() error {
	if r.ThresholdScale <= 0 || r.ThresholdScale >= 1 {
		return fmt.Errorf("threshold scale %.3f must be in (0, 1)", r.ThresholdScale)
	}
	if r.MinDifference < 0 {
		return fmt.Errorf("min difference %d must not be negative", r.MinDifference)
	}
	return nil
}

// Polarity selects which lines of a profile become markers.
type Polarity int

const (
	// Blank selects lines that are almost entirely background:
	// extent - value < scale*extent.
	Blank Polarity = iota
	// Ink selects lines carrying a large share of ink, such as separator
	// rules: extent - value > scale*extent.
	Ink
)

// Span is a half-open interval [Start, End) along one axis.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns End - Start.
func (s Span) Len() int { return s.End - s.Start }

// Markers returns the boundary markers of a profile. For Blank, each run of
// consecutive selected indices collapses to its last index; Ink keeps every
// selected index so a rule yields short pairs that Pairs discards.
func Markers(profile []float64, extent int, scale float64, p Polarity) []int {
	limit := scale * float64(extent)
	var markers []int
	prev := -2
	for i, v := range profile {
		d := float64(extent) - v
		selected := d < limit
		if p == Ink {
			selected = d > limit
		}
		if !selected {
			continue
		}
		if p == Blank && i == prev+1 && len(markers) > 0 {
			markers[len(markers)-1] = i
		} else {
			markers = append(markers, i)
		}
		prev = i
	}
	return markers
}

// Pairs joins consecutive markers into spans and drops spans shorter than
// minDiff.
func Pairs(markers []int, minDiff int) []Span {
	var out []Span
	for i := 0; i+1 < len(markers); i++ {
		s := Span{Start: markers[i], End: markers[i+1]}
		if s.Len() >= minDiff {
			out = append(out, s)
		}
	}
	return out
}

// Boundaries runs Markers and Pairs with rule.
func Boundaries(profile []float64, extent int, rule SplittingRule, p Polarity) []Span {
	return Pairs(Markers(profile, extent, rule.ThresholdScale, p), rule.MinDifference)
}

package ingest

import (
	"sort"

	"github.com/trogers1052/market-sync/internal/models"
)

// DefaultToleranceDays bounds the nearest-date fallback window
const DefaultToleranceDays = 30

// Alignment rules
const (
	RuleYear    = "year"
	RuleNearest = "nearest"
)

// Assignment pairs a bar with the annual record projected onto it
type Assignment struct {
	Bar    *models.PriceBar
	Record *models.Fundamentals
	Rule   string
}

// Aligner projects annual records onto daily bars.
//
// A bar in year Y takes the record with the latest reporting date whose year
// is at most Y. A record whose reporting year has no bar may still annotate
// one unassigned bar within the tolerance window, preferring the same
// calendar month, then the smallest day difference, then the earliest date.
type Aligner struct {
	toleranceDays int
}

// NewAligner creates an Aligner; a negative tolerance uses the default
func NewAligner(toleranceDays int) *Aligner {
	if toleranceDays < 0 {
		toleranceDays = DefaultToleranceDays
	}
	return &Aligner{toleranceDays: toleranceDays}
}

// Align returns the assignments ordered by bar date and the records that
// annotate no bar. Inputs are not modified.
func (a *Aligner) Align(records []*models.Fundamentals, bars []*models.PriceBar) ([]Assignment, []*models.Fundamentals) {
	recs := make([]*models.Fundamentals, len(records))
	copy(recs, records)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].ReportDate.Before(recs[j].ReportDate)
	})

	sorted := make([]*models.PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	assigned := make([]*Assignment, len(sorted))
	used := make(map[*models.Fundamentals]bool, len(recs))
	barYears := make(map[int]bool)

	// Year rule. Bars and records are both ascending, so the applicable
	// record only moves forward.
	next := 0
	var current *models.Fundamentals
	for i, bar := range sorted {
		barYears[bar.Date.Year()] = true
		for next < len(recs) && recs[next].ReportDate.Year() <= bar.Date.Year() {
			current = recs[next]
			next++
		}
		if current != nil {
			assigned[i] = &Assignment{Bar: bar, Record: current, Rule: RuleYear}
			used[current] = true
		}
	}

	// Nearest-date fallback for records whose year has no bars
	for _, rec := range recs {
		if barYears[rec.ReportDate.Year()] {
			continue
		}
		best := -1
		for i, bar := range sorted {
			if assigned[i] != nil {
				continue
			}
			delta := dayDelta(bar, rec)
			if delta > a.toleranceDays {
				continue
			}
			if best < 0 || a.better(bar, sorted[best], rec) {
				best = i
			}
		}
		if best >= 0 {
			assigned[best] = &Assignment{Bar: sorted[best], Record: rec, Rule: RuleNearest}
			used[rec] = true
		}
	}

	var out []Assignment
	for _, as := range assigned {
		if as != nil {
			out = append(out, *as)
		}
	}

	var dropped []*models.Fundamentals
	for _, rec := range recs {
		if !used[rec] {
			dropped = append(dropped, rec)
		}
	}
	return out, dropped
}

// better reports whether candidate beats incumbent as the fallback bar for rec
func (a *Aligner) better(candidate, incumbent *models.PriceBar, rec *models.Fundamentals) bool {
	cm, im := sameMonth(candidate, rec), sameMonth(incumbent, rec)
	if cm != im {
		return cm
	}
	cd, id := dayDelta(candidate, rec), dayDelta(incumbent, rec)
	if cd != id {
		return cd < id
	}
	return candidate.Date.Before(incumbent.Date)
}

func sameMonth(bar *models.PriceBar, rec *models.Fundamentals) bool {
	return bar.Date.Year() == rec.ReportDate.Year() && bar.Date.Month() == rec.ReportDate.Month()
}

// dayDelta is the absolute number of calendar days between bar and rec
func dayDelta(bar *models.PriceBar, rec *models.Fundamentals) int {
	hours := CivilDate(bar.Date).Sub(CivilDate(rec.ReportDate)).Hours()
	days := int(hours / 24)
	if days < 0 {
		return -days
	}
	return days
}

package ingest

import (
	"context"
	"fmt"
	"time"
)

// DefaultLookbackYears is the span of a full backfill
const DefaultLookbackYears = 3

// Mode is how much history a sync fetches
type Mode string

// Fetch modes
const (
	ModeFull        Mode = "FULL"
	ModeIncremental Mode = "INCREMENTAL"
)

// Window is an inclusive range of calendar dates to fetch
type Window struct {
	Mode  Mode
	Start time.Time
	End   time.Time
}

// Empty reports whether the window contains no dates
func (w Window) Empty() bool {
	return w.Start.After(w.End)
}

// CursorStore exposes the latest stored bar date of a company
type CursorStore interface {
	MaxPriceDate(ctx context.Context, companyID int) (time.Time, bool, error)
}

// GapDetector decides what each company is missing. "Today" is the current
// calendar date in the reference location; stored dates are civil dates.
type GapDetector struct {
	store         CursorStore
	loc           *time.Location
	lookbackYears int
	now           func() time.Time
}

// NewGapDetector creates a GapDetector. A nil location means UTC.
func NewGapDetector(store CursorStore, loc *time.Location, lookbackYears int, now func() time.Time) *GapDetector {
	if loc == nil {
		loc = time.UTC
	}
	if lookbackYears < 1 {
		lookbackYears = DefaultLookbackYears
	}
	if now == nil {
		now = time.Now
	}
	return &GapDetector{
		store:         store,
		loc:           loc,
		lookbackYears: lookbackYears,
		now:           now,
	}
}

// Today returns the current date in the reference location
func (g *GapDetector) Today() time.Time {
	return CivilDate(g.now().In(g.loc))
}

// NeedsUpdate is true when the company has no bars or its latest bar is older than today
func (g *GapDetector) NeedsUpdate(ctx context.Context, companyID int) (bool, error) {
	latest, ok, err := g.store.MaxPriceDate(ctx, companyID)
	if err != nil {
		return false, fmt.Errorf("failed to read sync cursor: %w", err)
	}
	if !ok {
		return true, nil
	}
	return CivilDate(latest).Before(g.Today()), nil
}

// FetchWindow returns the range to fetch: the lookback span when nothing is
// stored, otherwise the day after the latest bar through today.
func (g *GapDetector) FetchWindow(ctx context.Context, companyID int) (Window, error) {
	today := g.Today()
	latest, ok, err := g.store.MaxPriceDate(ctx, companyID)
	if err != nil {
		return Window{}, fmt.Errorf("failed to read sync cursor: %w", err)
	}
	if !ok {
		return Window{
			Mode:  ModeFull,
			Start: today.AddDate(-g.lookbackYears, 0, 0),
			End:   today,
		}, nil
	}
	return Window{
		Mode:  ModeIncremental,
		Start: CivilDate(latest).AddDate(0, 0, 1),
		End:   today,
	}, nil
}

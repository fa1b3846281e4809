// Package cron implements the five-field cron expression used by
// scheduler Tasks of type "cron": minute, hour, day-of-month, month,
// day-of-week. It is a from-scratch parser rather than an imported
// library, since off-the-shelf cron packages diverge subtly in their
// day-of-month/day-of-week interaction and in how they treat "*/N".
package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// field bounds, in declaration order: minute, hour, dom, month, dow.
var fieldBounds = [5][2]int{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 6},  // day of week (0 = Sunday)
}

// Expr is a parsed five-field cron expression. Each field is represented
// as the set of values it matches, so evaluation is a constant-time
// membership test.
type Expr struct {
	raw    string
	fields [5]map[int]bool
}

// Parse validates and compiles a five-field cron expression ("minute
// hour dom month dow"), supporting "*", steps ("*/N"), ranges ("A-B"),
// and comma-separated lists, plus combinations like "1-10/2".
func Parse(expr string) (*Expr, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return nil, fmt.Errorf("cron: expected 5 fields, got %d in %q", len(parts), expr)
	}
	e := &Expr{raw: expr}
	for i, part := range parts {
		set, err := parseField(part, fieldBounds[i][0], fieldBounds[i][1])
		if err != nil {
			return nil, fmt.Errorf("cron: field %d (%q): %w", i, part, err)
		}
		e.fields[i] = set
	}
	return e, nil
}

func parseField(field string, lo, hi int) (map[int]bool, error) {
	set := make(map[int]bool)
	for _, piece := range strings.Split(field, ",") {
		if err := parsePiece(piece, lo, hi, set); err != nil {
			return nil, err
		}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no values matched")
	}
	return set, nil
}

func parsePiece(piece string, lo, hi int, set map[int]bool) error {
	step := 1
	base := piece
	if idx := strings.IndexByte(piece, '/'); idx >= 0 {
		base = piece[:idx]
		n, err := strconv.Atoi(piece[idx+1:])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid step in %q", piece)
		}
		step = n
	}

	rangeLo, rangeHi := lo, hi
	switch {
	case base == "*":
		// full range, already defaulted
	case strings.Contains(base, "-"):
		bounds := strings.SplitN(base, "-", 2)
		if len(bounds) != 2 {
			return fmt.Errorf("invalid range %q", base)
		}
		a, err1 := strconv.Atoi(bounds[0])
		b, err2 := strconv.Atoi(bounds[1])
		if err1 != nil || err2 != nil || a > b {
			return fmt.Errorf("invalid range %q", base)
		}
		rangeLo, rangeHi = a, b
	default:
		n, err := strconv.Atoi(base)
		if err != nil {
			return fmt.Errorf("invalid value %q", base)
		}
		rangeLo, rangeHi = n, n
	}

	if rangeLo < lo || rangeHi > hi {
		return fmt.Errorf("value out of range [%d,%d] in %q", lo, hi, piece)
	}
	for v := rangeLo; v <= rangeHi; v += step {
		set[v] = true
	}
	return nil
}

// Matches reports whether t falls on a minute boundary this expression
// fires on. Day-of-month and day-of-week are combined with logical OR
// when both are restricted (the POSIX cron convention), and AND when
// either is left as "*".
func (e *Expr) Matches(t time.Time) bool {
	min, hour := t.Minute(), t.Hour()
	dom, month, dow := t.Day(), int(t.Month()), int(t.Weekday())

	if !e.fields[0][min] || !e.fields[1][hour] || !e.fields[3][month] {
		return false
	}

	domRestricted := len(e.fields[2]) < fieldBounds[2][1]-fieldBounds[2][0]+1
	dowRestricted := len(e.fields[4]) < fieldBounds[4][1]-fieldBounds[4][0]+1

	switch {
	case domRestricted && dowRestricted:
		return e.fields[2][dom] || e.fields[4][dow]
	case domRestricted:
		return e.fields[2][dom]
	case dowRestricted:
		return e.fields[4][dow]
	default:
		return true
	}
}

// Next returns the first minute-aligned instant strictly after from at
// which the expression matches, searching at most four years ahead
// before giving up.
func (e *Expr) Next(from time.Time) (time.Time, error) {
	t := from.Truncate(time.Minute).Add(time.Minute)
	limit := from.AddDate(4, 0, 0)
	for t.Before(limit) {
		if e.Matches(t) {
			return t, nil
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("cron: no match for %q within search horizon", e.raw)
}

// String returns the original expression text.
func (e *Expr) String() string { return e.raw }

package scheduler

import (
	"errors"
	"strings"
	"time"

	"github.com/conorfennell/qbank/internal/domain"
)

// ErrInvalidRating is returned for a rating string outside the three
// recognized values. The question is guaranteed untouched in that case.
var ErrInvalidRating = errors.New(`invalid rating: use "forgot", "almost", or "knew"`)

// Rating is the user's self-assessment of recall for one review.
type Rating int

const (
	Forgot Rating = iota
	Almost
	Knew
)

func (r Rating) String() string {
	switch r {
	case Forgot:
		return "forgot"
	case Almost:
		return "almost"
	case Knew:
		return "knew"
	}
	return "unknown"
}

// outcome pairs the mastery delta with the flat next-review interval
// for one rating. Intervals are fixed, not adaptive to mastery.
type outcome struct {
	delta        float64
	intervalDays int
}

var outcomes = map[Rating]outcome{
	Forgot: {delta: -0.3, intervalDays: 1},
	Almost: {delta: +0.1, intervalDays: 3},
	Knew:   {delta: +0.3, intervalDays: 7},
}

// ParseRating maps a caller-supplied string to a Rating. Comparison is
// case-insensitive and ignores surrounding whitespace.
func ParseRating(s string) (Rating, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forgot":
		return Forgot, nil
	case "almost":
		return Almost, nil
	case "knew":
		return Knew, nil
	}
	return 0, ErrInvalidRating
}

// Interval returns the flat next-review interval for the rating.
func (r Rating) Interval() (time.Duration, error) {
	o, ok := outcomes[r]
	if !ok {
		return 0, ErrInvalidRating
	}
	return time.Duration(o.intervalDays) * 24 * time.Hour, nil
}

// Apply performs one review transition on the question: increments the
// review counter, moves the mastery score by the rating's delta clamped
// to [MasteryMin, MasteryMax], and schedules the next review at
// now + interval. UpdatedAt is set to now. No other field changes.
//
// Validation happens before any mutation: on an unrecognized rating the
// question is returned to the caller exactly as it was.
func Apply(q *domain.Question, r Rating, now time.Time) error {
	interval, err := r.Interval()
	if err != nil {
		return err
	}

	q.ReviewCount++
	q.MasteryScore = clamp(q.MasteryScore+outcomes[r].delta, domain.MasteryMin, domain.MasteryMax)
	q.NextReviewAt = now.Add(interval)
	q.UpdatedAt = now
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

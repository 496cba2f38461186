package param

import (
	"fmt"
	"math"
)

// LogRange is a half-open index range [Start, Stop). When Unbounded is set the
// range extends to the end of the log and Stop is ignored.
type LogRange struct {
	Start     uint64
	Stop      uint64
	Unbounded bool
}

// Range returns [start, stop).
func Range(start, stop uint64) LogRange {
	return LogRange{Start: start, Stop: stop}
}

// From returns [start, ∞).
func From(start uint64) LogRange {
	return LogRange{Start: start, Unbounded: true}
}

// Until returns [0, stop).
func Until(stop uint64) LogRange {
	return LogRange{Stop: stop}
}

// End returns the exclusive upper bound, math.MaxUint64 for unbounded ranges.
func (r LogRange) End() uint64 {
	if r.Unbounded {
		return math.MaxUint64
	}
	return r.Stop
}

// Contains reports whether index falls inside r.
func (r LogRange) Contains(index uint64) bool {
	return index >= r.Start && index < r.End()
}

// IsEmpty reports whether r selects no index.
func (r LogRange) IsEmpty() bool {
	return r.Start >= r.End()
}

// Clamp intersects r with the inclusive interval [first, last] and returns the
// resulting half-open bounds. ok is false when the intersection is empty.
func (r LogRange) Clamp(first, last uint64) (start, stop uint64, ok bool) {
	start = max(r.Start, first)
	if last == math.MaxUint64 {
		stop = r.End()
	} else {
		stop = min(r.End(), last+1)
	}
	return start, stop, start < stop
}

func (r LogRange) String() string {
	if r.Unbounded {
		return fmt.Sprintf("[%d, +inf)", r.Start)
	}
	return fmt.Sprintf("[%d, %d)", r.Start, r.Stop)
}

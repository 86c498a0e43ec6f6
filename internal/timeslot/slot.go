// Package timeslot parses and compares the "HH:MM-HH:MM" slot keys
// that clients submit when booking a resource.  Slots are represented
// as minutes since midnight so that overlap and granularity checks
// are plain integer arithmetic.
package timeslot

import (
    "fmt"
    "sort"
    "strings"
)

// Slot is one bookable time range on a single date.  Start is
// inclusive, End exclusive, both in minutes since midnight.
type Slot struct {
    Start int
    End   int
}

// ErrBadKey is returned (wrapped) for any malformed slot key.
type ErrBadKey struct {
    Key    string
    Reason string
}

func (e *ErrBadKey) Error() string {
    return fmt.Sprintf("invalid slot key %q: %s", e.Key, e.Reason)
}

// ParseClock converts "HH:MM" into minutes since midnight.  "24:00"
// is accepted as the exclusive end of day.
func ParseClock(s string) (int, error) {
    parts := strings.SplitN(s, ":", 2)
    if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
        return 0, fmt.Errorf("malformed clock value %q", s)
    }
    var h, m int
    if _, err := fmt.Sscanf(s, "%02d:%02d", &h, &m); err != nil {
        return 0, fmt.Errorf("malformed clock value %q", s)
    }
    if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
        return 0, fmt.Errorf("clock value %q out of range", s)
    }
    return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(min int) string {
    return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// Parse converts one "HH:MM-HH:MM" key into a Slot.  The end must be
// strictly after the start.
func Parse(key string) (Slot, error) {
    parts := strings.SplitN(key, "-", 2)
    if len(parts) != 2 {
        return Slot{}, &ErrBadKey{Key: key, Reason: "expected HH:MM-HH:MM"}
    }
    start, err := ParseClock(parts[0])
    if err != nil {
        return Slot{}, &ErrBadKey{Key: key, Reason: err.Error()}
    }
    end, err := ParseClock(parts[1])
    if err != nil {
        return Slot{}, &ErrBadKey{Key: key, Reason: err.Error()}
    }
    if end <= start {
        return Slot{}, &ErrBadKey{Key: key, Reason: "end must be after start"}
    }
    return Slot{Start: start, End: end}, nil
}

// String renders the slot back into its key form.
func (s Slot) String() string {
    return FormatClock(s.Start) + "-" + FormatClock(s.End)
}

// Overlaps reports whether two slots share any time.  The check is
// strict half-open interval overlap: [a.Start,a.End) ∩ [b.Start,b.End) ≠ ∅.
func (s Slot) Overlaps(o Slot) bool {
    return s.End > o.Start && s.Start < o.End
}

// ParseKeys parses, deduplicates and sorts a set of slot keys.  Every
// key must align to the published granularity in minutes, fall inside
// the [openMin, closeMin) window, and the keys must not overlap each
// other.  The returned slots are sorted by start time.
func ParseKeys(keys []string, granularity, openMin, closeMin int) ([]Slot, error) {
    if len(keys) == 0 {
        return nil, fmt.Errorf("at least one slot key is required")
    }
    if granularity <= 0 {
        return nil, fmt.Errorf("granularity must be positive")
    }
    seen := make(map[string]struct{}, len(keys))
    slots := make([]Slot, 0, len(keys))
    for _, k := range keys {
        k = strings.TrimSpace(k)
        if _, dup := seen[k]; dup {
            continue
        }
        seen[k] = struct{}{}
        s, err := Parse(k)
        if err != nil {
            return nil, err
        }
        if (s.Start-openMin)%granularity != 0 || (s.End-s.Start)%granularity != 0 {
            return nil, &ErrBadKey{Key: k, Reason: fmt.Sprintf("must align to %d-minute granularity", granularity)}
        }
        if s.Start < openMin || s.End > closeMin {
            return nil, &ErrBadKey{Key: k, Reason: fmt.Sprintf("outside open hours %s-%s", FormatClock(openMin), FormatClock(closeMin))}
        }
        slots = append(slots, s)
    }
    sort.Slice(slots, func(i, j int) bool { return slots[i].Start < slots[j].Start })
    for i := 1; i < len(slots); i++ {
        if slots[i-1].Overlaps(slots[i]) {
            return nil, &ErrBadKey{Key: slots[i].String(), Reason: "overlaps " + slots[i-1].String()}
        }
    }
    return slots, nil
}

// Merge collapses adjacent or identical slots into maximal runs.
// Input must be sorted and non-overlapping (ParseKeys output).
func Merge(slots []Slot) []Slot {
    if len(slots) == 0 {
        return nil
    }
    out := []Slot{slots[0]}
    for _, s := range slots[1:] {
        last := &out[len(out)-1]
        if s.Start == last.End {
            last.End = s.End
            continue
        }
        out = append(out, s)
    }
    return out
}

// Span returns the earliest start and latest end over a set of slots.
func Span(slots []Slot) (start, end int) {
    if len(slots) == 0 {
        return 0, 0
    }
    start, end = slots[0].Start, slots[0].End
    for _, s := range slots[1:] {
        if s.Start < start {
            start = s.Start
        }
        if s.End > end {
            end = s.End
        }
    }
    return start, end
}

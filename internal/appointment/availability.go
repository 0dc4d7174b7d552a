package appointment

// Collides reports whether two slots share at least one instant. Slots are half-open, so a
// lesson ending at 10:00 does not collide with one starting at 10:00.
//
// HH:MM strings are compared lexicographically; this is valid because the format is fixed-width
// and zero-padded.
func Collides(candidate, existing Slot) bool {
	if candidate.Date != existing.Date {
		return false
	}
	start, end := candidate.Start, candidate.End
	s, e := existing.Start, existing.End

	startsInside := start >= s && start < e
	endsInside := end > s && end <= e
	contains := start <= s && end >= e

	return startsInside || endsInside || contains
}

// Conflicts returns the records in the snapshot that collide with slot, in snapshot order.
func Conflicts(records []Appointment, slot Slot) []Appointment {
	var out []Appointment
	for _, r := range records {
		if Collides(slot, r.Slot()) {
			out = append(out, r)
		}
	}
	return out
}

// IsAvailable reports whether [start, end) on date is free in the given snapshot.
func IsAvailable(records []Appointment, date, start, end string) bool {
	slot := Slot{Date: date, Start: start, End: end}
	for _, r := range records {
		if Collides(slot, r.Slot()) {
			return false
		}
	}
	return true
}

package appointment

import (
	"sort"
	"strings"
	"time"
)

// Views are recomputed from a snapshot on every call. Nothing here is cached or persisted.

func ByStudent(records []Appointment, studentID string) []Appointment {
	return Filter{StudentID: studentID}.Apply(records)
}

func ByTeacher(records []Appointment, teacherID string) []Appointment {
	return Filter{TeacherID: teacherID}.Apply(records)
}

// OnDate returns the records booked on date (YYYY-MM-DD), insertion order.
func OnDate(records []Appointment, date string) []Appointment {
	out := []Appointment{}
	for _, r := range records {
		if r.Date == date {
			out = append(out, r)
		}
	}
	return out
}

// Filter narrows a snapshot. Zero-valued fields match everything.
type Filter struct {
	StudentID   string
	TeacherID   string
	StudentName string
	// Month is 1..12; the year is ignored.
	Month time.Month
	// Query is a substring of date, start or end time. With IncludeStudentName it also
	// matches the student's name case-insensitively.
	Query              string
	IncludeStudentName bool
}

func (f Filter) Apply(records []Appointment) []Appointment {
	out := []Appointment{}
	for _, r := range records {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f Filter) matches(r Appointment) bool {
	if f.StudentID != "" && r.StudentID != f.StudentID {
		return false
	}
	if f.TeacherID != "" && r.TeacherID != f.TeacherID {
		return false
	}
	if f.StudentName != "" && r.StudentName != f.StudentName {
		return false
	}
	if f.Month != 0 {
		d, err := ParseDate(r.Date)
		if err != nil || d.Month() != f.Month {
			return false
		}
	}
	if f.Query != "" {
		hit := strings.Contains(r.Date, f.Query) ||
			strings.Contains(r.StartTime, f.Query) ||
			strings.Contains(r.EndTime, f.Query)
		if !hit && f.IncludeStudentName {
			hit = strings.Contains(strings.ToLower(r.StudentName), strings.ToLower(f.Query))
		}
		if !hit {
			return false
		}
	}
	return true
}

// SplitByTime partitions records into those whose end instant is after now and the rest.
// Records with unparseable times are treated as past.
func SplitByTime(records []Appointment, now time.Time, loc *time.Location) (upcoming, past []Appointment) {
	upcoming, past = []Appointment{}, []Appointment{}
	for _, r := range records {
		end, err := r.EndsAt(loc)
		if err == nil && end.After(now) {
			upcoming = append(upcoming, r)
		} else {
			past = append(past, r)
		}
	}
	return upcoming, past
}

// SortAscending returns a copy ordered by date then start time. Ties keep insertion order.
func SortAscending(records []Appointment) []Appointment {
	out := cloneRecords(records)
	sort.SliceStable(out, func(i, j int) bool { return lessByStart(out[i], out[j]) })
	return out
}

// SortDescending returns a copy ordered newest first.
func SortDescending(records []Appointment) []Appointment {
	out := cloneRecords(records)
	sort.SliceStable(out, func(i, j int) bool { return lessByStart(out[j], out[i]) })
	return out
}

func lessByStart(a, b Appointment) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	return a.StartTime < b.StartTime
}

// TeacherUpcoming is the instructor's agenda: lessons not yet finished, earliest first.
func TeacherUpcoming(records []Appointment, teacherID string, now time.Time, loc *time.Location) []Appointment {
	upcoming, _ := SplitByTime(ByTeacher(records, teacherID), now, loc)
	return SortAscending(upcoming)
}

type StudentSummary struct {
	StudentID   string  `json:"studentId"`
	StudentName string  `json:"studentName"`
	Lessons     int     `json:"lessons"`
	Hours       float64 `json:"hours"`
	Cost        float64 `json:"cost"`
}

// StudentSummaries aggregates lessons per student in order of first appearance.
func StudentSummaries(records []Appointment) []StudentSummary {
	index := map[string]int{}
	out := []StudentSummary{}
	for _, r := range records {
		i, ok := index[r.StudentID]
		if !ok {
			i = len(out)
			index[r.StudentID] = i
			out = append(out, StudentSummary{StudentID: r.StudentID, StudentName: r.StudentName})
		}
		out[i].Lessons++
		out[i].Hours += r.Duration
		out[i].Cost += r.Cost
	}
	return out
}

type Totals struct {
	Lessons int     `json:"lessons"`
	Hours   float64 `json:"hours"`
	Cost    float64 `json:"cost"`
}

func Total(records []Appointment) Totals {
	var t Totals
	for _, r := range records {
		t.Lessons++
		t.Hours += r.Duration
		t.Cost += r.Cost
	}
	return t
}

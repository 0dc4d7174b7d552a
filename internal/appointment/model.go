package appointment

import (
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Identity is the caller as reported by the upstream session layer.
type Identity struct {
	ID   string
	Name string
	Role Role
}

// Appointment is a single booked lesson. Records are never edited after creation.
type Appointment struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	TeacherID   string    `json:"teacherId"`
	TeacherName string    `json:"teacherName"`
	Date        string    `json:"date"`
	StartTime   string    `json:"startTime"`
	EndTime     string    `json:"endTime"`
	Duration    float64   `json:"duration"`
	Cost        float64   `json:"cost"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Slot returns the half-open interval the appointment occupies.
func (a Appointment) Slot() Slot {
	return Slot{Date: a.Date, Start: a.StartTime, End: a.EndTime}
}

// Slot is a half-open [Start, End) interval on Date. Times are zero-padded HH:MM.
type Slot struct {
	Date  string
	Start string
	End   string
}

type BookingRequest struct {
	Caller      Identity
	Date        string
	StartTime   string
	EndTime     string
	TeacherID   string
	TeacherName string
}

type BookingResult struct {
	Appointment Appointment
}

// Teacher identifies the instructor a booking defaults to.
type Teacher struct {
	ID   string
	Name string
}

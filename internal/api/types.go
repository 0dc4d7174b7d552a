package api

import (
	"github.com/hackgods/driving-lesson-scheduling/internal/appointment"
)

// CreateAppointmentRequest is the booking body. The student comes from the identity headers.
type CreateAppointmentRequest struct {
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	TeacherID   string `json:"teacherId,omitempty"`
	TeacherName string `json:"teacherName,omitempty"`
}

type AppointmentListResponse struct {
	Appointments []appointment.Appointment `json:"appointments"`
	Totals       appointment.Totals        `json:"totals"`
}

type UpcomingResponse struct {
	Upcoming []appointment.Appointment `json:"upcoming"`
	Past     []appointment.Appointment `json:"past"`
}

type AvailabilityResponse struct {
	Date           string   `json:"date"`
	StartTime      string   `json:"startTime"`
	EndTime        string   `json:"endTime"`
	Available      bool     `json:"available"`
	Duration       float64  `json:"duration"`
	Cost           float64  `json:"cost"`
	ConflictingIDs []string `json:"conflictingIds"`
}

type StudentsResponse struct {
	Students []appointment.StudentSummary `json:"students"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
}

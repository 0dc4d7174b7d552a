package appointment

import "time"

var DefaultTeacher = Teacher{ID: "2", Name: "Abed"}

// DefaultSeed is the record set a fresh store is initialized with. Costs are derived from unitRate.
func DefaultSeed(unitRate float64) []Appointment {
	created := time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC)
	return []Appointment{
		{
			ID:          "1",
			StudentID:   "1",
			StudentName: "Rani",
			TeacherID:   DefaultTeacher.ID,
			TeacherName: DefaultTeacher.Name,
			Date:        "2025-04-15",
			StartTime:   "10:00",
			EndTime:     "12:00",
			Duration:    2,
			Cost:        2 * unitRate,
			CreatedAt:   created,
		},
		{
			ID:          "2",
			StudentID:   "1",
			StudentName: "Rani",
			TeacherID:   DefaultTeacher.ID,
			TeacherName: DefaultTeacher.Name,
			Date:        "2025-04-17",
			StartTime:   "14:00",
			EndTime:     "15:00",
			Duration:    1,
			Cost:        unitRate,
			CreatedAt:   created,
		},
	}
}

package models

// ClassPeriod is one scheduled period of a teacher's weekly timetable.
type ClassPeriod struct {
	ID         string `db:"id" json:"id"`
	ClassID    string `db:"class_id" json:"class_id"`
	ClassName  string `db:"class_name" json:"class_name"`
	TeacherID  string `db:"teacher_id" json:"teacher_id"`
	SchoolCode string `db:"school_code" json:"school_code"`
	Weekday    int    `db:"weekday" json:"weekday"`
	Period     int    `db:"period" json:"period"`
	StartTime  string `db:"start_time" json:"start_time"`
	EndTime    string `db:"end_time" json:"end_time"`
}

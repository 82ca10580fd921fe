package models

import "time"

// WorkDateLayout is the format of Attendance.WorkDate.
const WorkDateLayout = "2006-01-02"

// Attendance is one user's record for one local calendar day. The
// (user_id, work_date) unique index keeps it at one per day even when two
// requests race past the application level check.
type Attendance struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;uniqueIndex:idx_attendance_user_day,priority:1" json:"user"`
	WorkDate  string     `gorm:"size:10;not null;uniqueIndex:idx_attendance_user_day,priority:2" json:"workDate"`
	CheckIn   *time.Time `gorm:"index" json:"checkIn"`
	CheckOut  *time.Time `json:"checkOut"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

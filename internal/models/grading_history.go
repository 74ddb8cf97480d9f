package models

import "time"

// GradingHistory records one completed grading job for an instructor, kept so
// past runs stay visible after the Redis job entry expires.
type GradingHistory struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"index;not null" json:"user_id"`
	JobID           string    `gorm:"size:64;index;not null" json:"job_id"`
	CourseID        string    `gorm:"size:64" json:"course_id"`
	AssignmentID    string    `gorm:"size:64;not null" json:"assignment_id"`
	AssignmentName  string    `gorm:"size:255" json:"assignment_name"`
	SubmissionCount int       `gorm:"not null" json:"submission_count"`
	GradedCount     int       `gorm:"not null" json:"graded_count"`
	PostedCount     int       `gorm:"not null;default:0" json:"posted_count"`
	AverageScore    float64   `json:"average_score"`
	CreatedAt       time.Time `json:"created_at"`
	User            User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

package models

import "time"

// User represents an instructor account. Canvas credentials are stored per
// user so every Canvas call runs with the instructor's own token.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Email       string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	DisplayName string    `gorm:"size:255" json:"display_name"`
	CanvasURL   string    `gorm:"size:512" json:"canvas_url"`
	CanvasToken string    `gorm:"size:512" json:"-"`
	CourseID    string    `gorm:"size:64" json:"course_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasCanvasCredentials reports whether the user can talk to Canvas at all.
func (u User) HasCanvasCredentials() bool {
	return u.CanvasURL != "" && u.CanvasToken != ""
}

// UserCourse is one Canvas course the instructor saved to their account.
// The active course is tracked separately on User.CourseID.
type UserCourse struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_course" json:"user_id"`
	CourseID  string    `gorm:"size:64;not null;uniqueIndex:idx_user_course" json:"course_id"`
	CanvasURL string    `gorm:"size:512" json:"canvas_url"`
	CreatedAt time.Time `json:"added_at"`
}

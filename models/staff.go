package models

import "time"

// StaffUser is a synced staff record. PINHash is a bcrypt hash so staff can
// log in at the terminal while the backend is unreachable.
type StaffUser struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	TenantID    string     `gorm:"index;not null" json:"tenant_id"`
	Name        string     `gorm:"not null" json:"name"`
	Role        string     `gorm:"type:varchar(32);not null" json:"role"`
	PINHash     string     `gorm:"column:pin_hash" json:"-"`
	IsActive    bool       `gorm:"not null" json:"is_active"`
	Permissions string     `gorm:"type:text" json:"permissions"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (StaffUser) TableName() string {
	return "staff_users"
}

// StaffSession is the in-memory session created after a successful PIN
// verification. Never persisted.
type StaffSession struct {
	StaffID    string    `json:"staff_id"`
	TenantID   string    `json:"tenant_id"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

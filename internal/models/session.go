package models

import (
	"time"
)

// UserSession is one operator process (browser tab, terminal, kiosk) known to
// the backing store. Heartbeats keep it alive; teardown marks it inactive.
type UserSession struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string    `gorm:"not null;index" json:"user_id"`
	DeviceInfo string    `gorm:"type:text" json:"device_info"`
	IsActive   bool      `gorm:"default:true;index" json:"is_active"`
	LastSeenAt time.Time `gorm:"index" json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName keeps the relation name the rest of the platform expects.
func (UserSession) TableName() string {
	return "user_sessions"
}

// Role is an operator role as assigned by the auth service.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleClerk   Role = "clerk"
	// RoleNone is the least-privileged default used whenever the session is
	// unknown or a permission lookup fails.
	RoleNone Role = "none"
)

// Permission names gate individual UI actions.
type Permission string

const (
	PermViewDashboard      Permission = "view_dashboard"
	PermRecordTransactions Permission = "record_transactions"
	PermHandlePayouts      Permission = "handle_payouts"
	PermManageSuppliers    Permission = "manage_suppliers"
	PermViewReports        Permission = "view_reports"
	PermManageUsers        Permission = "manage_users"
	PermRunRecovery        Permission = "run_recovery"
)

// PermissionsFor maps a role to its permission set. Unknown roles get nothing.
func PermissionsFor(role Role) map[Permission]bool {
	switch role {
	case RoleAdmin:
		return set(PermViewDashboard, PermRecordTransactions, PermHandlePayouts,
			PermManageSuppliers, PermViewReports, PermManageUsers, PermRunRecovery)
	case RoleManager:
		return set(PermViewDashboard, PermRecordTransactions, PermHandlePayouts,
			PermManageSuppliers, PermViewReports, PermRunRecovery)
	case RoleClerk:
		return set(PermViewDashboard, PermRecordTransactions)
	}
	return map[Permission]bool{}
}

func set(perms ...Permission) map[Permission]bool {
	m := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		m[p] = true
	}
	return m
}

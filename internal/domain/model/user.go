package model

import "time"

type Role string

const (
	RoleBuyer   Role = "BUYER"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

// 承認・却下・配達を操作できるロールか
func (r Role) IsStaff() bool {
	return r == RoleManager || r == RoleAdmin
}

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'BUYER'"`
	IsActive     bool   `gorm:"not null;default:true"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

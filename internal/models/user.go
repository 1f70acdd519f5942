package models

import "time"

type Role string

const (
	RoleStudent   Role = "user"
	RoleBendahara Role = "bendahara"
)

type User struct {
	ID        string    `json:"id" db:"id"`
	NIM       string    `json:"nim" db:"nim"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	ClassID   string    `json:"classId" db:"class_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type Class struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

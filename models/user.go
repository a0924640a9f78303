package models

import "time"

type Role string

const (
	RoleCollector Role = "collector"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleCollector || r == RoleAdmin
}

type User struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	Role         Role      `bson:"role" json:"role"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

package model

import (
	"time"
)

// User is one of the fixed collaborators seeded at startup
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"name"`
	PasswordSecret string    `json:"password"`
	CreatedAt      time.Time `json:"createdAt"`
}

package model

import "gorm.io/gorm"

// User is the local projection of the identity service. Rows are written by
// the identity event listener, never by request handlers.
type User struct {
	gorm.Model
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string `gorm:"not null" json:"display_name"`
}

// Package user implements the user resource: persistence through bun,
// input validation, and a cache-aside service that publishes lifecycle
// events.
package user

import (
	"time"

	"github.com/uptrace/bun"
)

// User types.
const (
	TypeCustomer = "customer"
	TypeAdmin    = "admin"
)

// User is a row of the users table. The password hash never leaves the
// service.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID            int64  `bun:"user_id,pk,autoincrement" json:"user_id"`
	Username      string `bun:"username,type:varchar(50),notnull,unique" json:"username"`
	Email         string `bun:"email,type:varchar(100),notnull,unique" json:"email"`
	PasswordHash  string `bun:"password_hash,type:varchar(255),notnull" json:"-"`
	FirstName     string `bun:"first_name,type:varchar(50),nullzero" json:"first_name,omitempty"`
	LastName      string `bun:"last_name,type:varchar(50),nullzero" json:"last_name,omitempty"`
	PhoneNumber   string `bun:"phone_number,type:varchar(20),nullzero" json:"phone_number,omitempty"`
	AddressLine1  string `bun:"address_line1,type:varchar(100),nullzero" json:"address_line1,omitempty"`
	AddressLine2  string `bun:"address_line2,type:varchar(100),nullzero" json:"address_line2,omitempty"`
	City          string `bun:"city,type:varchar(50),nullzero" json:"city,omitempty"`
	StateProvince string `bun:"state_province,type:varchar(50),nullzero" json:"state_province,omitempty"`
	PostalCode    string `bun:"postal_code,type:varchar(10),nullzero" json:"postal_code,omitempty"`
	Country       string `bun:"country,type:varchar(50),nullzero" json:"country,omitempty"`

	RegistrationDate time.Time  `bun:"registration_date,notnull" json:"registration_date"`
	LastLogin        *time.Time `bun:"last_login" json:"last_login"`
	UserType         string     `bun:"user_type,type:varchar(20),notnull" json:"user_type"`
}

// Page is one window of the user list.
type Page struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

// Models lists the tables owned by this package, for migrations.
func Models() []any {
	return []any{(*User)(nil)}
}

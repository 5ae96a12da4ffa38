package model

import "time"

// Collections in the document store.
const (
	TasksCollection     = "tasks"
	EmployeesCollection = "employees"
	UsersCollection     = "users"
)

// Profile is the denormalized employee record attached to a session.
type Profile struct {
	UserID      string   `json:"user_id"`
	FullName    string   `json:"full_name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	Email       string   `json:"email,omitempty"`
}

// User is a credential record in the users collection.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

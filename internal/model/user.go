package model

// RoleAdmin is the only privileged role.  Regular users carry RoleNone.
const (
	RoleNone  = ""
	RoleAdmin = "admin"
)

// User is a registered portal user.  Users are created on first sign-in and
// only ever change through promotion to admin.  Email may be empty for a
// record created by promoting an unknown id.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

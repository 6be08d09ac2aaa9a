package model

// Doctor is an entry of the admin-managed roster.
type Doctor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Specialty string `json:"specialty"`
	Image     string `json:"image,omitempty"`
}

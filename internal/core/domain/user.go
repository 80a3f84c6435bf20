package domain

const (
	RoleUser  = "user"
	RoleGuest = "guest"
	RoleAdmin = "admin"
)

type User struct {
	ID   string
	Role string
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

package entity

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Actor is the authenticated caller as established by the token verifier.
type Actor struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// SystemActor is used for transitions driven by background jobs.
var SystemActor = Actor{UserID: "", Role: "system"}

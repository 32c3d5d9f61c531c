package model

// User is a row of the users table.
type User struct {
	ID        int
	UserName  string
	FirstName string
	LastName  string
}

// UserNonDefaultConstructor is a users row whose UserName is fixed at
// construction.
type UserNonDefaultConstructor struct {
	ID        int
	FirstName string
	LastName  string

	userName string
}

func NewUserNonDefaultConstructor(userName string) *UserNonDefaultConstructor {
	return &UserNonDefaultConstructor{userName: userName}
}

func (u *UserNonDefaultConstructor) UserName() string { return u.userName }

// TableName maps the type onto the users table.
func (*UserNonDefaultConstructor) TableName() string { return "users" }

// NamedArgs exposes the constructor-set field to parameter binding.
func (u *UserNonDefaultConstructor) NamedArgs() map[string]any {
	return map[string]any{
		"Id":        u.ID,
		"UserName":  u.userName,
		"FirstName": u.FirstName,
		"LastName":  u.LastName,
	}
}

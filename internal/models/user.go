package models

// UserAccount is one entry of the host's passwd database
type UserAccount struct {
	Username string `json:"username"`
	UID      int    `json:"uid"`
	GID      int    `json:"gid"`
	Home     string `json:"home"`
	Shell    string `json:"shell"`
}

// UserList is the envelope returned by GET /api/users
type UserList struct {
	Users []UserAccount `json:"users"`
}

// CreateUserRequest is the body of POST /api/users
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// PasswordRequest is the body of POST /api/users/{username}/password
type PasswordRequest struct {
	Password string `json:"password"`
}

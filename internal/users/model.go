package users

import "regexp"

// UserRecord is the persisted public part of an account. The private key is
// never part of it; see custody.Store.
type UserRecord struct {
	PasswordHash string `json:"password_hash"`
	KDFSalt      []byte `json:"kdf_salt"`
	PublicKey    string `json:"public_key"`
}

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ValidUsername reports whether name is acceptable. Usernames double as file
// names for key blobs, so path separators are not allowed.
func ValidUsername(name string) bool {
	return usernameRe.MatchString(name) && name != "." && name != ".."
}

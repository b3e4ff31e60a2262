// Package store provides the session-scoped key/value store that carries a
// small amount of client state across restarts: the identity returned by
// login, the last viewed chat session and whether that chat was escalated.
//
// Everything kept here is a hint. The backend is the source of truth and
// callers must reconcile against it when fresh data arrives.
package store

// Well-known keys. Values are plain strings; booleans are "true"/"false".
const (
	KeyCurrentSession = "currentSession"
	KeyEscalated      = "isEscalated"
	KeyUserID         = "user_id"
	KeyEmail          = "email"
	KeyName           = "name"
)

// Store is a string key/value store scoped to one client "tab" (a profile
// in the CLI). Implementations must be safe for concurrent use.
type Store interface {
	// Save sets key to value.
	Save(key, value string) error
	// Load returns the value for key and whether it was present.
	Load(key string) (string, bool)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Clear removes every key.
	Clear() error
}

// SaveBool stores a boolean as "true" or "false".
func SaveBool(s Store, key string, v bool) error {
	if v {
		return s.Save(key, "true")
	}
	return s.Save(key, "false")
}

// LoadBool reads a boolean written by SaveBool. Absent or unrecognised
// values read as false.
func LoadBool(s Store, key string) bool {
	v, ok := s.Load(key)
	return ok && v == "true"
}

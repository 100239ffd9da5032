package cache

import "time"

// Entry represents a cached piece of build data
type Entry struct {
	// Key is the lookup key this entry was stored under
	Key string `json:"key"`

	// Hash is the SHA256 of the cached content
	Hash string `json:"hash"`

	// Size is the length of the content in bytes
	Size int64 `json:"size"`

	// Timestamp when this entry was created
	Timestamp time.Time `json:"timestamp"`
}

// Matches reports whether data has the same content as the entry
func (e *Entry) Matches(data []byte) bool {
	return e != nil && e.Hash == HashBytes(data)
}

package labsched

import "github.com/google/uuid"

// generateID concatenates prefix, a separator, and a fresh UUIDv4. Cloning a
// Task produces a new id by calling this again with the task's name.
func generateID(prefix string) string {
	if prefix == "" {
		return uuid.New().String()
	}
	return prefix + "-" + uuid.New().String()
}

package api

import "github.com/google/uuid"

// parseUUID wraps uuid.Parse so handler files read cleanly at call sites.
func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

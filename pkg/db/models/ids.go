package models

import "github.com/google/uuid"

// ensureID assigns a fresh identifier when the caller has not provided one.
// IDs are generated application-side so the schema stays portable to sqlite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

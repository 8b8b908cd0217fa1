package models

import "time"

// Student is the local projection of the external roster, keyed by the roster's business id.
type Student struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Department string    `db:"department" json:"department"`
	PhotoURL   string    `db:"photo_url" json:"photoUrl"`
	SyncedAt   time.Time `db:"synced_at" json:"-"`
}

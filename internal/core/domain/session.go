package domain

import "time"

// Session is the identity carried by a signed client-side token. It is never
// persisted; validity follows from its timestamps and the configured deadlines.
type Session struct {
	ID        string
	Username  string
	IsAdmin   bool
	LoginAt   time.Time
	LastVisit time.Time
}

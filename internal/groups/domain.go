package groups

import "time"

// Group is a user group, the subject of permission rows. Every user also has
// a user-specific group of its own.
type Group struct {
	ID             int64
	Name           string
	IsUserSpecific bool
	IsEveryone     bool
	Members        int
	CreatedAt      time.Time
}

// ListFilters narrows List.
type ListFilters struct {
	Name                string
	IncludeUserSpecific bool
}

// Package permissions implements object permissions for signage content: per
// group view/edit/delete grants, ownership transfer and the cascade of grants
// through the campaign, layout, region, playlist and widget hierarchy.
package permissions

import (
	"context"

	"github.com/signhub/signhub/internal/content"
	"github.com/signhub/signhub/internal/shared"
)

// Record is the grant of one user group on one object. ID is zero when the
// group holds no persisted grant.
type Record struct {
	ID             int64         `json:"permissionId"`
	GroupID        int64         `json:"groupId"`
	GroupName      string        `json:"group"`
	IsUserSpecific bool          `json:"isUser"`
	Class          content.Class `json:"-"`
	ObjectID       int64         `json:"objectId"`
	View           bool          `json:"view"`
	Edit           bool          `json:"edit"`
	Delete         bool          `json:"delete"`
}

// Empty reports whether the record grants nothing. Empty records are never stored.
func (r *Record) Empty() bool {
	return !r.View && !r.Edit && !r.Delete
}

// Grant is the requested flag set for one group. A flag left out of a request
// decodes to false and revokes.
type Grant struct {
	View   bool
	Edit   bool
	Delete bool
}

// GroupUpdates maps a user group id to its new grant.
type GroupUpdates map[int64]Grant

// ListOptions narrows GetAllByObjectID.
type ListOptions struct {
	Name     string
	SetOnly  bool
	SortDesc bool
}

// UpdateRequest is one permission edit submitted by an actor.
type UpdateRequest struct {
	Kind     string
	ObjectID int64
	Groups   GroupUpdates
	OwnerID  int64
	Cascade  bool
}

// Store persists permission records.
type Store interface {
	// GetAllByObjectID returns one record per user group for the object.
	GetAllByObjectID(ctx context.Context, class content.Class, objectID int64, opts ListOptions) ([]*Record, error)
	// Save inserts, updates or deletes the record so that empty grants are not stored.
	Save(ctx context.Context, rec *Record) error
}

// Hierarchy exposes the owned children of content objects and owner updates.
type Hierarchy interface {
	LayoutsByCampaign(ctx context.Context, campaignID int64) ([]content.Layout, error)
	LoadLayout(ctx context.Context, layout *content.Layout) error
	RegionPlaylist(ctx context.Context, regionID int64) (*content.Playlist, error)
	PlaylistWidgets(ctx context.Context, playlistID int64) ([]content.Widget, error)
	SetOwner(ctx context.Context, class content.Class, id, ownerID int64) error
}

// FontInvalidator drops the cached font stylesheet so access is reassessed.
type FontInvalidator interface {
	InvalidateFonts(ctx context.Context) error
}

// AuditRecorder stores audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Package content models the signage objects that carry permissions: campaigns,
// layouts, regions, playlists, widgets, media and a handful of flat object kinds.
package content

import "context"

// Class is the permission class of an entity. Permission rows are keyed by it
// and cascade policy is decided per concrete entity.
type Class int

const (
	ClassCampaign Class = iota + 1
	ClassLayout
	ClassRegion
	ClassPlaylist
	ClassWidget
	ClassMedia
	ClassDisplayGroup
	ClassDataSet
	ClassFolder
)

var classTags = map[Class]string{
	ClassCampaign:     "campaign",
	ClassLayout:       "layout",
	ClassRegion:       "region",
	ClassPlaylist:     "playlist",
	ClassWidget:       "widget",
	ClassMedia:        "media",
	ClassDisplayGroup: "displayGroup",
	ClassDataSet:      "dataSet",
	ClassFolder:       "folder",
}

// Classes lists every known class in declaration order.
func Classes() []Class {
	return []Class{
		ClassCampaign,
		ClassLayout,
		ClassRegion,
		ClassPlaylist,
		ClassWidget,
		ClassMedia,
		ClassDisplayGroup,
		ClassDataSet,
		ClassFolder,
	}
}

// String returns the persisted tag of the class.
func (c Class) String() string {
	if tag, ok := classTags[c]; ok {
		return tag
	}
	return "unknown"
}

// CascadePolicy describes what happens below an entity when its grants change.
type CascadePolicy int

const (
	// CascadeNone leaves every other object untouched.
	CascadeNone CascadePolicy = iota
	// CascadeCampaignLayouts pushes grants into every layout of the campaign and
	// down through regions, playlists and widgets. Only on request.
	CascadeCampaignLayouts
	// CascadeRegionPlaylist pushes grants into the region playlist, always.
	CascadeRegionPlaylist
	// CascadePlaylistWidgets pushes grants into every widget. Only on request.
	CascadePlaylistWidgets
	// CascadeFontCache invalidates the font cache instead of copying rows.
	CascadeFontCache
)

// Entity is a permissionable object.
type Entity interface {
	ID() int64
	Class() Class
	OwnerID() int64
	CanChangeOwner() bool
	CascadePolicy() CascadePolicy
}

// Provider loads one kind of entity by id.
type Provider interface {
	GetByID(ctx context.Context, id int64) (Entity, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, id int64) (Entity, error)

// GetByID calls f.
func (f ProviderFunc) GetByID(ctx context.Context, id int64) (Entity, error) {
	return f(ctx, id)
}

// MediaTypeFont marks font uploads in the library.
const MediaTypeFont = "font"

// Campaign groups layouts into a schedulable unit.
type Campaign struct {
	CampaignID       int64
	Name             string
	UserID           int64
	IsLayoutSpecific bool
}

func (c *Campaign) ID() int64                    { return c.CampaignID }
func (c *Campaign) Class() Class                 { return ClassCampaign }
func (c *Campaign) OwnerID() int64               { return c.UserID }
func (c *Campaign) CanChangeOwner() bool         { return true }
func (c *Campaign) CascadePolicy() CascadePolicy { return CascadeCampaignLayouts }

// Layout is a screen design made of regions.
type Layout struct {
	LayoutID int64
	Name     string
	UserID   int64
	Regions  []Region
}

func (l *Layout) ID() int64                    { return l.LayoutID }
func (l *Layout) Class() Class                 { return ClassLayout }
func (l *Layout) OwnerID() int64               { return l.UserID }
func (l *Layout) CanChangeOwner() bool         { return true }
func (l *Layout) CascadePolicy() CascadePolicy { return CascadeNone }

// Region is an area of a layout that plays exactly one playlist.
type Region struct {
	RegionID int64
	LayoutID int64
	UserID   int64
	Playlist *Playlist
}

func (r *Region) ID() int64                    { return r.RegionID }
func (r *Region) Class() Class                 { return ClassRegion }
func (r *Region) OwnerID() int64               { return r.UserID }
func (r *Region) CanChangeOwner() bool         { return false }
func (r *Region) CascadePolicy() CascadePolicy { return CascadeRegionPlaylist }

// Playlist holds an ordered list of widgets. RegionID is zero for library playlists.
type Playlist struct {
	PlaylistID int64
	Name       string
	RegionID   int64
	UserID     int64
	Widgets    []Widget
}

func (p *Playlist) ID() int64                    { return p.PlaylistID }
func (p *Playlist) Class() Class                 { return ClassPlaylist }
func (p *Playlist) OwnerID() int64               { return p.UserID }
func (p *Playlist) CanChangeOwner() bool         { return true }
func (p *Playlist) CascadePolicy() CascadePolicy { return CascadePlaylistWidgets }

// Widget is a single item of content in a playlist.
type Widget struct {
	WidgetID   int64
	PlaylistID int64
	UserID     int64
}

func (w *Widget) ID() int64                    { return w.WidgetID }
func (w *Widget) Class() Class                 { return ClassWidget }
func (w *Widget) OwnerID() int64               { return w.UserID }
func (w *Widget) CanChangeOwner() bool         { return false }
func (w *Widget) CascadePolicy() CascadePolicy { return CascadeNone }

// Media is a library file.
type Media struct {
	MediaID   int64
	Name      string
	MediaType string
	UserID    int64
}

func (m *Media) ID() int64            { return m.MediaID }
func (m *Media) Class() Class         { return ClassMedia }
func (m *Media) OwnerID() int64       { return m.UserID }
func (m *Media) CanChangeOwner() bool { return true }

// CascadePolicy asks for a font cache rebuild when a font changes hands.
func (m *Media) CascadePolicy() CascadePolicy {
	if m.MediaType == MediaTypeFont {
		return CascadeFontCache
	}
	return CascadeNone
}

// Object is a flat permissionable object with no children (display groups,
// datasets, folders).
type Object struct {
	Kind     Class
	ObjectID int64
	Name     string
	UserID   int64
}

func (o *Object) ID() int64                    { return o.ObjectID }
func (o *Object) Class() Class                 { return o.Kind }
func (o *Object) OwnerID() int64               { return o.UserID }
func (o *Object) CascadePolicy() CascadePolicy { return CascadeNone }

// CanChangeOwner is false for folders, which are shared containers.
func (o *Object) CanChangeOwner() bool {
	return o.Kind != ClassFolder
}

package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signhub/signhub/internal/shared"
)

var classTables = map[Class]string{
	ClassCampaign:     "campaigns",
	ClassLayout:       "layouts",
	ClassRegion:       "regions",
	ClassPlaylist:     "playlists",
	ClassWidget:       "widgets",
	ClassMedia:        "media",
	ClassDisplayGroup: "display_groups",
	ClassDataSet:      "datasets",
	ClassFolder:       "folders",
}

// Repository provides PostgreSQL backed access to content objects.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetCampaign fetches a campaign by id.
func (r *Repository) GetCampaign(ctx context.Context, id int64) (*Campaign, error) {
	var c Campaign
	err := r.pool.QueryRow(ctx, `SELECT id, name, owner_id, is_layout_specific FROM campaigns WHERE id = $1`, id).
		Scan(&c.CampaignID, &c.Name, &c.UserID, &c.IsLayoutSpecific)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// GetLayout fetches a layout by id without its regions.
func (r *Repository) GetLayout(ctx context.Context, id int64) (*Layout, error) {
	var l Layout
	err := r.pool.QueryRow(ctx, `SELECT id, name, owner_id FROM layouts WHERE id = $1`, id).
		Scan(&l.LayoutID, &l.Name, &l.UserID)
	if err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

// GetRegion fetches a region by id without its playlist.
func (r *Repository) GetRegion(ctx context.Context, id int64) (*Region, error) {
	var reg Region
	err := r.pool.QueryRow(ctx, `SELECT id, layout_id, owner_id FROM regions WHERE id = $1`, id).
		Scan(&reg.RegionID, &reg.LayoutID, &reg.UserID)
	if err != nil {
		return nil, notFound(err)
	}
	return &reg, nil
}

// GetPlaylist fetches a playlist by id without its widgets.
func (r *Repository) GetPlaylist(ctx context.Context, id int64) (*Playlist, error) {
	var p Playlist
	var regionID *int64
	err := r.pool.QueryRow(ctx, `SELECT id, name, region_id, owner_id FROM playlists WHERE id = $1`, id).
		Scan(&p.PlaylistID, &p.Name, &regionID, &p.UserID)
	if err != nil {
		return nil, notFound(err)
	}
	if regionID != nil {
		p.RegionID = *regionID
	}
	return &p, nil
}

// GetWidget fetches a widget by id.
func (r *Repository) GetWidget(ctx context.Context, id int64) (*Widget, error) {
	var w Widget
	err := r.pool.QueryRow(ctx, `SELECT id, playlist_id, owner_id FROM widgets WHERE id = $1`, id).
		Scan(&w.WidgetID, &w.PlaylistID, &w.UserID)
	if err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

// GetMedia fetches a library item by id.
func (r *Repository) GetMedia(ctx context.Context, id int64) (*Media, error) {
	var m Media
	err := r.pool.QueryRow(ctx, `SELECT id, name, media_type, owner_id FROM media WHERE id = $1`, id).
		Scan(&m.MediaID, &m.Name, &m.MediaType, &m.UserID)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// GetObject fetches a flat object of the given class.
func (r *Repository) GetObject(ctx context.Context, class Class, id int64) (*Object, error) {
	table, err := tableFor(class)
	if err != nil {
		return nil, err
	}
	o := Object{Kind: class}
	err = r.pool.QueryRow(ctx, `SELECT id, name, owner_id FROM `+table+` WHERE id = $1`, id).
		Scan(&o.ObjectID, &o.Name, &o.UserID)
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// LayoutsByCampaign returns the layouts assigned to a campaign ordered by their
// first display position. A layout assigned twice appears once. Regions are not
// loaded.
func (r *Repository) LayoutsByCampaign(ctx context.Context, campaignID int64) ([]Layout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.name, l.owner_id, MIN(cl.display_order) AS first_order
		FROM layouts l
		JOIN campaign_layouts cl ON cl.layout_id = l.id
		WHERE cl.campaign_id = $1
		GROUP BY l.id, l.name, l.owner_id
		ORDER BY first_order, l.id`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var layouts []Layout
	for rows.Next() {
		var l Layout
		var order int
		if err := rows.Scan(&l.LayoutID, &l.Name, &l.UserID, &order); err != nil {
			return nil, err
		}
		layouts = append(layouts, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return layouts, nil
}

// LoadLayout fills the layout regions, each with its playlist and widgets. A
// region without a playlist keeps a nil Playlist.
func (r *Repository) LoadLayout(ctx context.Context, layout *Layout) error {
	rows, err := r.pool.Query(ctx, `SELECT id, layout_id, owner_id FROM regions WHERE layout_id = $1 ORDER BY id`, layout.LayoutID)
	if err != nil {
		return err
	}
	var regions []Region
	for rows.Next() {
		var reg Region
		if err := rows.Scan(&reg.RegionID, &reg.LayoutID, &reg.UserID); err != nil {
			rows.Close()
			return err
		}
		regions = append(regions, reg)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range regions {
		playlist, err := r.RegionPlaylist(ctx, regions[i].RegionID)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("content: region %d playlist: %w", regions[i].RegionID, err)
		}
		widgets, err := r.PlaylistWidgets(ctx, playlist.PlaylistID)
		if err != nil {
			return err
		}
		playlist.Widgets = widgets
		regions[i].Playlist = playlist
	}
	layout.Regions = regions
	return nil
}

// RegionPlaylist returns the playlist owned by a region.
func (r *Repository) RegionPlaylist(ctx context.Context, regionID int64) (*Playlist, error) {
	p := Playlist{RegionID: regionID}
	err := r.pool.QueryRow(ctx, `SELECT id, name, owner_id FROM playlists WHERE region_id = $1`, regionID).
		Scan(&p.PlaylistID, &p.Name, &p.UserID)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// PlaylistWidgets returns the widgets of a playlist in display order.
func (r *Repository) PlaylistWidgets(ctx context.Context, playlistID int64) ([]Widget, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, playlist_id, owner_id FROM widgets WHERE playlist_id = $1 ORDER BY display_order, id`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var widgets []Widget
	for rows.Next() {
		var w Widget
		if err := rows.Scan(&w.WidgetID, &w.PlaylistID, &w.UserID); err != nil {
			return nil, err
		}
		widgets = append(widgets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return widgets, nil
}

// ListFonts returns every font in the library ordered by name.
func (r *Repository) ListFonts(ctx context.Context) ([]Media, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, media_type, owner_id FROM media WHERE media_type = $1 ORDER BY name`, MediaTypeFont)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var fonts []Media
	for rows.Next() {
		var m Media
		if err := rows.Scan(&m.MediaID, &m.Name, &m.MediaType, &m.UserID); err != nil {
			return nil, err
		}
		fonts = append(fonts, m)
	}
	return fonts, rows.Err()
}

// SetOwner reassigns an object to a new owner. No notifications are raised.
func (r *Repository) SetOwner(ctx context.Context, class Class, id, ownerID int64) error {
	table, err := tableFor(class)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE `+table+` SET owner_id = $2 WHERE id = $1`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Providers returns one provider per entity kind, keyed by kind tag.
func (r *Repository) Providers() map[string]Provider {
	providers := map[string]Provider{
		ClassCampaign.String(): ProviderFunc(func(ctx context.Context, id int64) (Entity, error) {
			return asEntity(r.GetCampaign(ctx, id))
		}),
		ClassLayout.String(): ProviderFunc(func(ctx context.Context, id int64) (Entity, error) {
			return asEntity(r.GetLayout(ctx, id))
		}),
		ClassRegion.String(): ProviderFunc(func(ctx context.Context, id int64) (Entity, error) {
			return asEntity(r.GetRegion(ctx, id))
		}),
		ClassPlaylist.String(): ProviderFunc(func(ctx context.Context, id int64) (Entity, error) {
			return asEntity(r.GetPlaylist(ctx, id))
		}),
		ClassWidget.String(): ProviderFunc(func(ctx context.Context, id int64) (Entity, error) {
			return asEntity(r.GetWidget(ctx, id))
		}),
		ClassMedia.String(): ProviderFunc(func(ctx context.Context, id int64) (Entity, error) {
			return asEntity(r.GetMedia(ctx, id))
		}),
	}
	for _, class := range []Class{ClassDisplayGroup, ClassDataSet, ClassFolder} {
		class := class
		providers[class.String()] = ProviderFunc(func(ctx context.Context, id int64) (Entity, error) {
			return asEntity(r.GetObject(ctx, class, id))
		})
	}
	return providers
}

func asEntity[T Entity](e T, err error) (Entity, error) {
	if err != nil {
		return nil, err
	}
	return e, nil
}

func tableFor(class Class) (string, error) {
	table, ok := classTables[class]
	if !ok {
		return "", fmt.Errorf("content: no table for class %d", class)
	}
	return table, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return err
}

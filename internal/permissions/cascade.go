package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/signhub/signhub/internal/content"
	"github.com/signhub/signhub/internal/shared"
)

// Cascade pushes updates below entity according to its cascade policy.
// Campaign and playlist cascades only run when requested; a region always
// shares its grants with its playlist.
func (s *Service) Cascade(ctx context.Context, entity content.Entity, updates GroupUpdates, requested bool) error {
	switch policy := entity.CascadePolicy(); policy {
	case content.CascadeNone:
		return nil
	case content.CascadeCampaignLayouts:
		if !requested {
			return nil
		}
		s.logger.Debug("cascade permissions down", slog.Int64("campaign", entity.ID()))
		return s.cascadeCampaign(ctx, entity.ID(), updates)
	case content.CascadeRegionPlaylist:
		playlist, err := s.hierarchy.RegionPlaylist(ctx, entity.ID())
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("permissions: region %d playlist: %w", entity.ID(), err)
		}
		return s.applyTo(ctx, content.ClassPlaylist, playlist.PlaylistID, updates)
	case content.CascadePlaylistWidgets:
		if !requested {
			return nil
		}
		widgets, err := s.hierarchy.PlaylistWidgets(ctx, entity.ID())
		if err != nil {
			return fmt.Errorf("permissions: playlist %d widgets: %w", entity.ID(), err)
		}
		return s.applyToWidgets(ctx, widgets, updates)
	case content.CascadeFontCache:
		if s.fonts == nil {
			s.logger.Warn("font permissions changed without a font cache invalidator")
			return nil
		}
		if err := s.fonts.InvalidateFonts(ctx); err != nil {
			return fmt.Errorf("permissions: invalidate fonts: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("permissions: no cascade rule for policy %d", policy)
	}
}

func (s *Service) cascadeCampaign(ctx context.Context, campaignID int64, updates GroupUpdates) error {
	layouts, err := s.hierarchy.LayoutsByCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("permissions: campaign %d layouts: %w", campaignID, err)
	}
	for i := range layouts {
		layout := &layouts[i]
		if err := s.applyTo(ctx, content.ClassLayout, layout.LayoutID, updates); err != nil {
			return err
		}
		if err := s.hierarchy.LoadLayout(ctx, layout); err != nil {
			return fmt.Errorf("permissions: load layout %d: %w", layout.LayoutID, err)
		}
		for _, region := range layout.Regions {
			if err := s.applyTo(ctx, content.ClassRegion, region.RegionID, updates); err != nil {
				return err
			}
			if region.Playlist == nil {
				continue
			}
			if err := s.applyTo(ctx, content.ClassPlaylist, region.Playlist.PlaylistID, updates); err != nil {
				return err
			}
			if err := s.applyToWidgets(ctx, region.Playlist.Widgets, updates); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) applyToWidgets(ctx context.Context, widgets []content.Widget, updates GroupUpdates) error {
	for _, w := range widgets {
		if err := s.applyTo(ctx, content.ClassWidget, w.WidgetID, updates); err != nil {
			return err
		}
	}
	return nil
}

package services

import (
	"context"

	"github.com/baodantech/design-review-backend/internal/imageid"
	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/repos"
	"github.com/baodantech/design-review-backend/internal/types"
)

// ImageLinkService keeps the goods_image_link table consistent with a
// listing's current carousel. Sync is diff-free: it rebuilds the
// listing's full link set every time, so a caller never has to reason
// about which URLs changed.
type ImageLinkService interface {
	SyncLinks(ctx context.Context, listingID int64, carousel []string) error
	ListingsForImage(ctx context.Context, url string) ([]*types.GoodsImageLink, error)
}

type imageLinkService struct {
	log  *logger.Logger
	repo repos.GoodsImageLinkRepo
}

func NewImageLinkService(log *logger.Logger, repo repos.GoodsImageLinkRepo) ImageLinkService {
	return &imageLinkService{
		log:  log.With("service", "ImageLinkService"),
		repo: repo,
	}
}

func (s *imageLinkService) SyncLinks(ctx context.Context, listingID int64, carousel []string) error {
	seen := make(map[string]bool, len(carousel))
	links := make([]*types.GoodsImageLink, 0, len(carousel))
	for _, u := range carousel {
		h := imageid.Hash(u)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		links = append(links, &types.GoodsImageLink{
			Hash:      h,
			ListingID: listingID,
			URL:       u,
		})
	}
	if err := s.repo.ReplaceForListing(ctx, nil, listingID, links); err != nil {
		return err
	}
	s.log.Debug("Synced goods image links", "listing_id", listingID, "count", len(links))
	return nil
}

func (s *imageLinkService) ListingsForImage(ctx context.Context, url string) ([]*types.GoodsImageLink, error) {
	h := imageid.Hash(url)
	if h == "" {
		return nil, nil
	}
	return s.repo.ListByHash(ctx, nil, h)
}

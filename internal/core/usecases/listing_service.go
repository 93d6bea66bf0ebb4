package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/samirrijal/housingetl/internal/core/domain"
	"github.com/samirrijal/housingetl/internal/core/ports"
	"github.com/samirrijal/housingetl/internal/pkg/geospatial"
	"github.com/samirrijal/housingetl/internal/pkg/metrics"
)

const (
	generationKey = "listings:generation"
	listingTTL    = 300
	maxPageSize   = 200
	defaultPage   = 50
	maxNearby     = 100
)

// ErrInvalidRadius is returned for a non-positive search radius.
var ErrInvalidRadius = errors.New("radius must be positive")

// ListingPage is one page of listings plus the total match count.
type ListingPage struct {
	Listings []domain.Listing `json:"listings"`
	Total    int              `json:"total"`
}

// ListingService serves the loaded housing dataset. Cached entries are keyed
// by a generation counter that moves every time a new dataset is loaded.
type ListingService struct {
	listings ports.ListingRepository
	cache    ports.CacheService
}

// NewListingService creates a new ListingService. cache may be nil.
func NewListingService(listings ports.ListingRepository, cache ports.CacheService) *ListingService {
	return &ListingService{listings: listings, cache: cache}
}

// List returns one page of listings matching filter.
func (s *ListingService) List(ctx context.Context, filter domain.ListingFilter) (*ListingPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPage
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	key := fmt.Sprintf("list:%s:%s:%d:%d", filter.Period, filter.Property, filter.Offset, filter.Limit)
	var page ListingPage
	if s.cached(ctx, "list", key, &page) {
		return &page, nil
	}

	listings, total, err := s.listings.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	page = ListingPage{Listings: listings, Total: total}
	s.store(ctx, key, page)
	return &page, nil
}

// Nearby returns listings within radiusMeters of center, closest first.
func (s *ListingService) Nearby(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Listing, error) {
	if radiusMeters <= 0 {
		return nil, ErrInvalidRadius
	}
	if limit <= 0 || limit > maxNearby {
		limit = maxNearby
	}

	key := fmt.Sprintf("nearby:%.4f:%.4f:%.0f:%d", center.Lat, center.Lon, radiusMeters, limit)
	var out []domain.Listing
	if s.cached(ctx, "nearby", key, &out) {
		return out, nil
	}

	// The bounding box over-selects at the corners, so the repository is
	// asked for more than limit and the result refined by real distance.
	candidates, err := s.listings.WithinBounds(ctx, geospatial.BoundingBox(center, radiusMeters), limit*4)
	if err != nil {
		return nil, err
	}
	out = make([]domain.Listing, 0, len(candidates))
	for _, l := range candidates {
		d := geospatial.Distance(center, l.Location)
		if d > radiusMeters {
			continue
		}
		l.Distance = &d
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Distance < *out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}

	s.store(ctx, key, out)
	return out, nil
}

// Stats returns per-period aggregates.
func (s *ListingService) Stats(ctx context.Context) ([]domain.PeriodStats, error) {
	var out []domain.PeriodStats
	if s.cached(ctx, "stats", "stats", &out) {
		return out, nil
	}
	out, err := s.listings.Stats(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, "stats", out)
	return out, nil
}

// Invalidate moves the cache generation forward. It is registered as the
// handler for dataset loaded events.
func (s *ListingService) Invalidate(ctx context.Context, event *domain.DatasetEvent) error {
	if s.cache == nil {
		return nil
	}
	gen := strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := s.cache.Set(ctx, generationKey, []byte(gen), 0); err != nil {
		return fmt.Errorf("bump listing cache generation: %w", err)
	}
	slog.Info("listing cache invalidated", "run_id", event.RunID, "rows", event.Rows)
	return nil
}

func (s *ListingService) generation(ctx context.Context) string {
	data, err := s.cache.Get(ctx, generationKey)
	if err != nil {
		return "0"
	}
	return string(data)
}

func (s *ListingService) cached(ctx context.Context, op, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, "listings:"+s.generation(ctx)+":"+key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(op).Inc()
	return true
}

func (s *ListingService) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, "listings:"+s.generation(ctx)+":"+key, data, listingTTL)
}

package listings

import (
	"context"
	"math"
	"sort"
	"time"

	"unihaven-backend/internal/domain"
	"unihaven-backend/internal/pkg/apperrors"
)

const earthRadiusKm = 6371

// Campus reference points for distance filtering and ordering.
var campusLocations = map[string]struct{ Lat, Lon float64 }{
	"main":      {22.28405, 114.13784},
	"sassoon":   {22.2675, 114.12881},
	"swire":     {22.20805, 114.26021},
	"kadoorie":  {22.43022, 114.11429},
	"dentistry": {22.28649, 114.14426},
}

// SearchInput holds the catalogue filters. Zero values mean "no filter";
// AvailableFrom/To only filter when both are set.
type SearchInput struct {
	Type            string
	Region          string
	AvailableFrom   *time.Time
	AvailableTo     *time.Time
	MinBeds         int
	MinBedrooms     int
	MaxPrice        float64
	Campus          string
	MaxDistanceKm   float64
	OrderByDistance bool
	OrderByPrice    bool
}

// SearchResult is a catalogue row with the distance to the chosen campus.
type SearchResult struct {
	ListingView
	DistanceKm float64 `json:"distance_km"`
}

// distanceKm approximates the great-circle distance between two points using
// an equirectangular projection, which is accurate at city scale.
func distanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	x := (lon2 - lon1) * math.Pi / 180 * math.Cos((lat1+lat2)/2*math.Pi/180)
	y := (lat2 - lat1) * math.Pi / 180
	return math.Sqrt(x*x+y*y) * earthRadiusKm
}

// Search returns listings matching the filters. An authenticated tenant sees
// its own listings plus listings held by no tenant; anonymous callers see
// everything.
func (s *Service) Search(ctx context.Context, tenant *domain.Tenant, in SearchInput) ([]SearchResult, error) {
	campus := in.Campus
	if campus == "" {
		campus = "main"
	}
	ref, ok := campusLocations[campus]
	if !ok {
		return nil, apperrors.Validation("unknown campus").WithDetails(map[string]interface{}{"campus": campus})
	}

	q := s.DB.WithContext(ctx).Model(&domain.Listing{})
	if in.Type != "" {
		q = q.Where("type = ?", in.Type)
	}
	if in.Region != "" {
		q = q.Where("region = ?", in.Region)
	}
	if in.AvailableFrom != nil && in.AvailableTo != nil {
		q = q.Where("available_from <= ? AND available_to >= ?", in.AvailableFrom, in.AvailableTo)
	}
	if in.MinBeds > 0 {
		q = q.Where("beds >= ?", in.MinBeds)
	}
	if in.MinBedrooms > 0 {
		q = q.Where("bedrooms >= ?", in.MinBedrooms)
	}
	if in.MaxPrice > 0 {
		q = q.Where("price <= ?", in.MaxPrice)
	}
	if tenant != nil {
		owned := s.DB.Model(&domain.TenancyAssociation{}).Select("listing_id").Where("tenant_id = ?", tenant.ID)
		any := s.DB.Model(&domain.TenancyAssociation{}).Select("listing_id")
		q = q.Where("id IN (?) OR id NOT IN (?)", owned, any)
	}

	order := "id ASC"
	if in.OrderByPrice {
		order = "price ASC"
	}
	var rows []domain.Listing
	if err := q.Order(order).Find(&rows).Error; err != nil {
		return nil, err
	}

	ids := make([]uint, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	reservationsByListing, err := s.loadReservations(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(rows))
	for i := range rows {
		l := &rows[i]
		d := distanceKm(ref.Lat, ref.Lon, l.Latitude, l.Longitude)
		if in.MaxDistanceKm > 0 && d > in.MaxDistanceKm {
			continue
		}
		view := View(l, reservationsByListing[l.ID])
		results = append(results, SearchResult{ListingView: *view, DistanceKm: d})
	}

	if in.OrderByDistance {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].DistanceKm < results[j].DistanceKm
		})
	}
	return results, nil
}

// AvailableOnly drops fully reserved listings from a result set.
func AvailableOnly(results []SearchResult) []SearchResult {
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if !r.Reserved {
			out = append(out, r)
		}
	}
	return out
}

func (s *Service) loadReservations(ctx context.Context, listingIDs []uint) (map[uint][]domain.ReservationPeriod, error) {
	byListing := make(map[uint][]domain.ReservationPeriod, len(listingIDs))
	if len(listingIDs) == 0 {
		return byListing, nil
	}
	var rows []domain.ReservationPeriod
	if err := s.DB.WithContext(ctx).Where("listing_id IN ?", listingIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		byListing[r.ListingID] = append(byListing[r.ListingID], r)
	}
	return byListing, nil
}

// Package search implements the professional search and ranking engine:
// geo-distance filtering, conjunctive optional filters, a three-level
// deterministic ordering and pagination.
package search

import (
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trabajapp/trabajapp-backend/internal/geo"
	"github.com/trabajapp/trabajapp-backend/pkg/models"
)

/* =============================== Criteria =============================== */

// Criteria enumerates every recognized search filter and its valid range.
// Pointer fields distinguish "not provided" (default applies) from an
// out-of-range value (validation failure, never silently clamped).
type Criteria struct {
	Latitude  *float64 `query:"latitude" json:"latitude" validate:"required,latitude"`
	Longitude *float64 `query:"longitude" json:"longitude" validate:"required,longitude"`
	RadiusKm  *float64 `query:"radiusKm" json:"radiusKm" validate:"omitempty,gte=1,lte=50"`

	ServiceID  string   `query:"serviceId" json:"serviceId" validate:"omitempty,uuid4"`
	CategoryID string   `query:"categoryId" json:"categoryId" validate:"omitempty,uuid4"`
	MinRating  *float64 `query:"minRating" json:"minRating" validate:"omitempty,gte=1,lte=5"`
	MaxPrice   *float64 `query:"maxPrice" json:"maxPrice" validate:"omitempty,gte=0"`

	EmergencyOnly bool `query:"emergencyOnly" json:"emergencyOnly"`
	VerifiedOnly  bool `query:"verifiedOnly" json:"verifiedOnly"`
	AvailableNow  bool `query:"availableNow" json:"availableNow"`

	Page  *int `query:"page" json:"page" validate:"omitempty,gte=1"`
	Limit *int `query:"limit" json:"limit" validate:"omitempty,gte=1,lte=50"`
}

func (c *Criteria) radius() float64 {
	if c.RadiusKm == nil {
		return 10
	}
	return *c.RadiusKm
}

func (c *Criteria) page() int {
	if c.Page == nil {
		return 1
	}
	return *c.Page
}

func (c *Criteria) limit() int {
	if c.Limit == nil {
		return 20
	}
	return *c.Limit
}

/* =============================== Results ================================ */

type OfferedService struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	PriceUnit   string  `json:"priceUnit"`
	Description string  `json:"description"`
}

type ProfessionalSummary struct {
	ID                 uuid.UUID        `json:"id"`
	FirstName          string           `json:"firstName"`
	LastName           string           `json:"lastName"`
	City               string           `json:"city"`
	Rating             float64          `json:"rating"`
	RatingCount        int              `json:"ratingCount"`
	DistanceKm         float64          `json:"distanceKm"`
	Bio                string           `json:"bio"`
	ExperienceYears    int              `json:"experienceYears"`
	HourlyRate         float64          `json:"hourlyRate"`
	WorkRadiusKm       int              `json:"workRadiusKm"`
	AcceptsEmergencies bool             `json:"acceptsEmergencies"`
	HasVehicle         bool             `json:"hasVehicle"`
	HasTools           bool             `json:"hasTools"`
	IsVerified         bool             `json:"isVerified"`
	IsPremium          bool             `json:"isPremium"`
	Services           []OfferedService `json:"services"`
}

type Page struct {
	Results    []ProfessionalSummary `json:"results"`
	TotalCount int                   `json:"totalCount"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
}

/* ================================ Engine ================================ */

type Engine struct {
	db *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine { return &Engine{db: db} }

// candidate is one row of the joined users/professional_profiles query,
// plus the computed distance.
type candidate struct {
	ID                 uuid.UUID
	FirstName          string
	LastName           string
	City               string
	RatingAvg          float64
	RatingCount        int
	Latitude           float64
	Longitude          float64
	ProfileID          uuid.UUID
	Bio                string
	ExperienceYears    int
	HourlyRate         float64
	WorkRadiusKm       int
	AcceptsEmergencies bool
	HasVehicle         bool
	HasTools           bool
	VerificationStatus models.VerificationStatus
	SubscriptionTier   models.SubscriptionTier

	distanceKm float64 // computed, not scanned
}

// Search runs the full pipeline against validated criteria: candidate
// query, haversine radius filter, ranking, pagination and service
// attachment. Zero matches is a valid outcome, not an error.
func (e *Engine) Search(crit Criteria) (*Page, error) {
	cands, err := e.loadCandidates(crit)
	if err != nil {
		return nil, err
	}

	matched := filterWithinRadius(cands, *crit.Latitude, *crit.Longitude, crit.radius())
	rank(matched)

	total := len(matched)
	page, limit := crit.page(), crit.limit()
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	pageItems := matched[start:end]

	services, err := e.servicesFor(pageItems)
	if err != nil {
		return nil, err
	}

	results := make([]ProfessionalSummary, 0, len(pageItems))
	for _, c := range pageItems {
		results = append(results, ProfessionalSummary{
			ID:                 c.ID,
			FirstName:          c.FirstName,
			LastName:           c.LastName,
			City:               c.City,
			Rating:             c.RatingAvg,
			RatingCount:        c.RatingCount,
			DistanceKm:         geo.RoundKm(c.distanceKm),
			Bio:                c.Bio,
			ExperienceYears:    c.ExperienceYears,
			HourlyRate:         c.HourlyRate,
			WorkRadiusKm:       c.WorkRadiusKm,
			AcceptsEmergencies: c.AcceptsEmergencies,
			HasVehicle:         c.HasVehicle,
			HasTools:           c.HasTools,
			IsVerified:         c.VerificationStatus == models.VerificationVerified,
			IsPremium:          c.SubscriptionTier == models.TierPremium,
			Services:           services[c.ProfileID],
		})
	}

	return &Page{Results: results, TotalCount: total, Page: page, Limit: limit}, nil
}

// loadCandidates applies every filter expressible in SQL; the geo filter
// runs afterwards in process.
func (e *Engine) loadCandidates(crit Criteria) ([]candidate, error) {
	q := e.db.Table("users AS u").
		Select(`u.id, u.first_name, u.last_name, u.city, u.rating_avg, u.rating_count,
			u.latitude, u.longitude,
			pp.id AS profile_id, pp.bio, pp.experience_years, pp.hourly_rate,
			pp.work_radius_km, pp.accepts_emergencies, pp.has_vehicle, pp.has_tools,
			pp.verification_status, pp.subscription_tier`).
		Joins("JOIN professional_profiles pp ON pp.user_id = u.id").
		Where("u.user_type = ?", models.UserProfessional).
		Where("u.is_active = ?", true).
		Where("pp.is_available = ?", true).
		Where("u.latitude IS NOT NULL AND u.longitude IS NOT NULL")

	// Service-level filters need the offered-services join; group to keep
	// one row per professional.
	if crit.ServiceID != "" || crit.CategoryID != "" || crit.MaxPrice != nil {
		q = q.Joins("JOIN professional_services ps ON ps.professional_id = pp.id AND ps.is_active = TRUE")
		if crit.ServiceID != "" {
			q = q.Where("ps.service_id = ?", crit.ServiceID)
		}
		if crit.CategoryID != "" {
			q = q.Joins("JOIN services s ON s.id = ps.service_id").
				Where("s.category_id = ?", crit.CategoryID)
		}
		if crit.MaxPrice != nil {
			q = q.Where("ps.custom_price <= ?", *crit.MaxPrice)
		}
		q = q.Group("u.id, pp.id")
	}

	if crit.MinRating != nil {
		q = q.Where("u.rating_avg >= ?", *crit.MinRating)
	}
	if crit.EmergencyOnly {
		q = q.Where("pp.accepts_emergencies = ?", true)
	}
	if crit.VerifiedOnly {
		q = q.Where("pp.verification_status = ?", models.VerificationVerified)
	}
	// availableNow adds nothing beyond the is_available gate today; the
	// schedule-aware check would hook in here.

	var cands []candidate
	if err := q.Scan(&cands).Error; err != nil {
		return nil, err
	}
	return cands, nil
}

// filterWithinRadius computes each candidate's distance from the search
// point and retains those within the search radius AND within their own
// declared work radius.
func filterWithinRadius(cands []candidate, lat, lon, radiusKm float64) []candidate {
	matched := make([]candidate, 0, len(cands))
	for _, c := range cands {
		c.distanceKm = geo.DistanceKm(lat, lon, c.Latitude, c.Longitude)
		if c.distanceKm > radiusKm || c.distanceKm > float64(c.WorkRadiusKm) {
			continue
		}
		matched = append(matched, c)
	}
	return matched
}

// rank sorts candidates in place by the composite key: premium tier first,
// then rating descending, then distance ascending. The stable sort keeps
// any remaining ties in query order, so repeated searches over identical
// data return identical pages.
func rank(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		aPremium := a.SubscriptionTier == models.TierPremium
		bPremium := b.SubscriptionTier == models.TierPremium
		if aPremium != bPremium {
			return aPremium
		}
		if a.RatingAvg != b.RatingAvg {
			return a.RatingAvg > b.RatingAvg
		}
		return a.distanceKm < b.distanceKm
	})
}

// servicesFor loads the active offered services for a page of candidates
// in a single IN query, keyed by profile ID.
func (e *Engine) servicesFor(cands []candidate) (map[uuid.UUID][]OfferedService, error) {
	out := make(map[uuid.UUID][]OfferedService, len(cands))
	if len(cands) == 0 {
		return out, nil
	}

	profileIDs := make([]uuid.UUID, 0, len(cands))
	for _, c := range cands {
		profileIDs = append(profileIDs, c.ProfileID)
		out[c.ProfileID] = []OfferedService{}
	}

	var rows []struct {
		ProfessionalID uuid.UUID
		Name           string
		Category       string
		CustomPrice    float64
		PriceUnit      string
		Description    string
	}
	err := e.db.Table("professional_services AS ps").
		Select(`ps.professional_id, s.name, sc.name AS category,
			ps.custom_price, ps.price_unit, ps.description`).
		Joins("JOIN services s ON s.id = ps.service_id").
		Joins("JOIN service_categories sc ON sc.id = s.category_id").
		Where("ps.professional_id IN ?", profileIDs).
		Where("ps.is_active = ?", true).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		out[r.ProfessionalID] = append(out[r.ProfessionalID], OfferedService{
			Name:        r.Name,
			Category:    r.Category,
			Price:       r.CustomPrice,
			PriceUnit:   r.PriceUnit,
			Description: r.Description,
		})
	}
	return out, nil
}

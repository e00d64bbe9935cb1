package scan

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/pkg/places"
)

const maxListingReviews = 5

// Resolver looks businesses up in the places provider, both to disambiguate
// a name+location at intake and to pull the listing snapshot during a scan.
type Resolver struct {
	client places.Client
}

// NewResolver builds a resolver on the given places client.
func NewResolver(client places.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolution is the outcome of a directory lookup: the candidate set the
// caller must pick from before the run proceeds.
type Resolution struct {
	Candidates []model.Candidate
}

// Resolve matches an identity against the places index. Zero matches is a
// not-found error; any match comes back as candidates the caller confirms,
// even when there is only one.
func (r *Resolver) Resolve(ctx context.Context, identity model.BusinessIdentity) (*Resolution, error) {
	query := lookupQuery(identity)

	resp, err := r.client.TextSearch(ctx, query)
	if err != nil {
		zap.L().Error("places text search failed", zap.String("query", query), zap.Error(err))
		return nil, model.NewRunError(model.CodePlacesSearchFailed, "business lookup failed")
	}
	if resp.Status != places.StatusOK && resp.Status != places.StatusZeroResults {
		zap.L().Error("places text search rejected", zap.String("status", resp.Status))
		return nil, model.NewRunError(model.CodePlacesSearchFailed, "business lookup failed")
	}

	if len(resp.Results) == 0 {
		return nil, model.NewRunError(model.CodeBusinessNotFound, "no business matched the given name and location")
	}
	candidates := make([]model.Candidate, 0, len(resp.Results))
	for _, p := range resp.Results {
		candidates = append(candidates, model.Candidate{
			PlaceID:     p.PlaceID,
			Name:        p.Name,
			Address:     p.FormattedAddress,
			Rating:      p.Rating,
			RatingCount: p.UserRatingsTotal,
			Types:       p.Types,
		})
	}
	return &Resolution{Candidates: candidates}, nil
}

// lookupQuery joins whichever identifiers the caller supplied, in name,
// location, phone order; the website host stands in when nothing else is
// available.
func lookupQuery(identity model.BusinessIdentity) string {
	var parts []string
	for _, p := range []string{identity.Name, identity.Location, identity.Phone} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 && identity.Domain != "" {
		parts = append(parts, strings.TrimPrefix(identity.Domain, "www."))
	}
	return strings.Join(parts, " ")
}

// Profile pulls the full listing for a resolved place ID.
func (r *Resolver) Profile(ctx context.Context, placeID string) (*model.PlacesProfile, error) {
	resp, err := r.client.Details(ctx, placeID)
	if err != nil {
		return nil, err
	}
	if resp.Status != places.StatusOK {
		return nil, model.NewRunError(model.CodePlacesSearchFailed, "listing details unavailable")
	}

	p := resp.Result
	profile := &model.PlacesProfile{
		PlaceID:     p.PlaceID,
		Name:        p.Name,
		Address:     p.FormattedAddress,
		Phone:       p.FormattedPhone,
		Website:     p.Website,
		Rating:      p.Rating,
		RatingCount: p.UserRatingsTotal,
		MapsURL:     p.URL,
	}
	if p.OpeningHours != nil {
		profile.Hours = p.OpeningHours.WeekdayText
	}
	for i, rev := range p.Reviews {
		if i == maxListingReviews {
			break
		}
		profile.Reviews = append(profile.Reviews, model.ListingReview{
			Author: rev.AuthorName,
			Rating: rev.Rating,
			Text:   rev.Text,
			When:   rev.RelativeTime,
		})
	}
	return profile, nil
}

// FindProfile resolves a listing for an identity that may or may not carry
// a place ID yet. Without one, the first text search hit stands in.
func (r *Resolver) FindProfile(ctx context.Context, identity model.BusinessIdentity) (*model.PlacesProfile, error) {
	placeID := identity.PlaceID
	if placeID == "" {
		query := strings.TrimSpace(identity.Name + " " + identity.Location)
		resp, err := r.client.TextSearch(ctx, query)
		if err != nil {
			return nil, err
		}
		if resp.Status != places.StatusOK || len(resp.Results) == 0 {
			return nil, nil
		}
		placeID = resp.Results[0].PlaceID
	}
	return r.Profile(ctx, placeID)
}

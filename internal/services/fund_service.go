package services

import (
	"context"
	"sort"

	"github.com/vikasavnish/mfbroker/internal/models"
)

// FundSource is the provider feed the fund endpoints and the NAV job read from
type FundSource interface {
	FetchAllOpenEnded(ctx context.Context, filters map[string]string) ([]models.SchemeRecord, error)
	FetchByFamily(ctx context.Context, family string) ([]models.SchemeRecord, error)
	FetchSchemeByCode(ctx context.Context, code int) (*models.SchemeRecord, error)
}

// FundService exposes provider queries to the HTTP layer
type FundService interface {
	OpenEndedSchemes(ctx context.Context) ([]models.SchemeRecord, error)
	FundFamilies(ctx context.Context) ([]string, error)
	FamilyOpenFunds(ctx context.Context, family string) ([]models.SchemeRecord, error)
}

type fundService struct {
	source FundSource
}

// NewFundService creates a fund service over a provider feed
func NewFundService(source FundSource) FundService {
	return &fundService{source: source}
}

func (s *fundService) OpenEndedSchemes(ctx context.Context) ([]models.SchemeRecord, error) {
	return s.source.FetchAllOpenEnded(ctx, nil)
}

// FundFamilies returns the distinct fund family names, sorted
func (s *fundService) FundFamilies(ctx context.Context) ([]string, error) {
	records, err := s.source.FetchAllOpenEnded(ctx, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(records))
	families := make([]string, 0)
	for _, r := range records {
		if r.MutualFundFamily == "" {
			continue
		}
		if _, ok := seen[r.MutualFundFamily]; ok {
			continue
		}
		seen[r.MutualFundFamily] = struct{}{}
		families = append(families, r.MutualFundFamily)
	}
	sort.Strings(families)
	return families, nil
}

func (s *fundService) FamilyOpenFunds(ctx context.Context, family string) ([]models.SchemeRecord, error) {
	return s.source.FetchByFamily(ctx, family)
}

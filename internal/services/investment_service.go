package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	database "github.com/vikasavnish/mfbroker/internal/db"
	"github.com/vikasavnish/mfbroker/internal/models"
)

// InvestmentService defines the interface for investment operations
type InvestmentService interface {
	ListAll(ctx context.Context) ([]models.Investment, error)
	ListByUser(ctx context.Context, userID string) ([]models.Investment, error)
	GetBySchemeCode(ctx context.Context, userID string, schemeCode int) (models.Investment, error)
	Create(ctx context.Context, userID string, req models.InvestmentCreateRequest) (models.Investment, error)
	UpdateUnits(ctx context.Context, userID string, req models.InvestmentUpdateRequest) (models.Investment, error)
	Delete(ctx context.Context, userID string, schemeCode int) error
	ApplyValuations(ctx context.Context, investments []models.Investment) error
}

// investmentService implements the InvestmentService interface
type investmentService struct {
	db *gorm.DB
}

// NewInvestmentService creates a new investment service
func NewInvestmentService(db *gorm.DB) InvestmentService {
	return &investmentService{
		db: db,
	}
}

// ListAll returns every stored investment, newest first
func (s *investmentService) ListAll(ctx context.Context) ([]models.Investment, error) {
	var investments []models.Investment
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&investments).Error; err != nil {
		return nil, fmt.Errorf("%w: list investments: %v", ErrDatabase, err)
	}
	return investments, nil
}

// ListByUser returns the holdings of one user, newest first
func (s *investmentService) ListByUser(ctx context.Context, userID string) ([]models.Investment, error) {
	var investments []models.Investment
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&investments).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list user investments: %v", ErrDatabase, err)
	}
	return investments, nil
}

// GetBySchemeCode returns the user's holding in a scheme
func (s *investmentService) GetBySchemeCode(ctx context.Context, userID string, schemeCode int) (models.Investment, error) {
	var investment models.Investment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND scheme_code = ?", userID, schemeCode).
		First(&investment).Error
	if err != nil {
		return models.Investment{}, wrapLookup(err)
	}
	return investment, nil
}

// Create stores a new holding. The stored current value is always derived
// from nav and units.
func (s *investmentService) Create(ctx context.Context, userID string, req models.InvestmentCreateRequest) (models.Investment, error) {
	_, err := s.GetBySchemeCode(ctx, userID, req.SchemeCode)
	switch {
	case err == nil:
		return models.Investment{}, ErrAlreadyExists
	case !errors.Is(err, ErrNotFound):
		return models.Investment{}, err
	}

	investment := models.Investment{
		SchemeCode: req.SchemeCode,
		SchemeName: req.SchemeName,
		Units:      req.Units,
		Date:       req.Date.Time(),
		FundFamily: req.FundFamily,
		UserID:     userID,
	}
	investment.Revalue(req.NAV)

	if err = s.db.WithContext(ctx).Create(&investment).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return models.Investment{}, ErrAlreadyExists
		}
		return models.Investment{}, fmt.Errorf("%w: create investment: %v", ErrDatabase, err)
	}
	return investment, nil
}

// UpdateUnits changes the units held and re-derives current value. No other
// column is writable through this path.
func (s *investmentService) UpdateUnits(ctx context.Context, userID string, req models.InvestmentUpdateRequest) (models.Investment, error) {
	investment, err := s.GetBySchemeCode(ctx, userID, req.SchemeCode)
	if err != nil {
		return models.Investment{}, err
	}

	investment.Units = req.Units
	investment.Revalue(investment.NAV)

	err = s.db.WithContext(ctx).Model(&investment).Updates(map[string]interface{}{
		"units":         investment.Units,
		"current_value": investment.CurrentValue,
	}).Error
	if err != nil {
		return models.Investment{}, fmt.Errorf("%w: update investment: %v", ErrDatabase, err)
	}
	return investment, nil
}

// Delete removes the user's holding in a scheme
func (s *investmentService) Delete(ctx context.Context, userID string, schemeCode int) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND scheme_code = ?", userID, schemeCode).
		Delete(&models.Investment{})
	if result.Error != nil {
		return fmt.Errorf("%w: delete investment: %v", ErrDatabase, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyValuations writes nav, current value and date for every investment in
// one transaction. Either all rows change or none do.
func (s *investmentService) ApplyValuations(ctx context.Context, investments []models.Investment) error {
	if len(investments) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, inv := range investments {
			err := tx.Model(&models.Investment{}).
				Where("id = ?", inv.ID).
				Updates(map[string]interface{}{
					"nav":           inv.NAV,
					"current_value": inv.CurrentValue,
					"date":          inv.Date,
				}).Error
			if err != nil {
				return fmt.Errorf("investment %s: %w", inv.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: apply valuations: %v", ErrDatabase, err)
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ValuePrecision is the number of decimal places kept for nav and current value
const ValuePrecision = 4

// Investment is a mutual fund holding owned by a single user
type Investment struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"investment_id"`
	SchemeName   string    `gorm:"size:255;not null" json:"scheme_name"`
	SchemeCode   int       `gorm:"not null;uniqueIndex:idx_investments_user_scheme,priority:2" json:"scheme_code"`
	Units        float64   `gorm:"not null" json:"units"`
	NAV          float64   `gorm:"column:nav;not null" json:"nav"`
	Date         time.Time `json:"date"`
	CurrentValue float64   `gorm:"not null" json:"current_value"`
	FundFamily   string    `gorm:"size:255;not null" json:"fund_family"`
	UserID       string    `gorm:"type:varchar(36);not null;index;uniqueIndex:idx_investments_user_scheme,priority:1" json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// TableName specifies the table name for Investment model
func (Investment) TableName() string {
	return "investments"
}

// BeforeCreate assigns a UUID when none was set
func (i *Investment) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Revalue sets nav and recomputes current value so that
// current_value == round(nav * units, 4).
func (i *Investment) Revalue(nav float64) {
	n := decimal.NewFromFloat(nav).Round(ValuePrecision)
	i.NAV = n.InexactFloat64()
	i.CurrentValue = n.Mul(decimal.NewFromFloat(i.Units)).Round(ValuePrecision).InexactFloat64()
}

// InvestmentCreateRequest is the body of POST /investment
type InvestmentCreateRequest struct {
	SchemeCode   int      `json:"scheme_code" validate:"required,gt=0"`
	Units        float64  `json:"units" validate:"gt=0"`
	SchemeName   string   `json:"scheme_name" validate:"required,max=255"`
	NAV          float64  `json:"nav" validate:"gte=0"`
	Date         DateTime `json:"date" validate:"required"`
	CurrentValue float64  `json:"current_value" validate:"gte=0"`
	FundFamily   string   `json:"fund_family" validate:"required,max=255"`
}

// InvestmentUpdateRequest is the body of PATCH /investment. Only units can change;
// current value is derived from nav and units.
type InvestmentUpdateRequest struct {
	SchemeCode   int     `json:"scheme_code" validate:"required,gt=0"`
	Units        float64 `json:"units" validate:"gt=0"`
	CurrentValue float64 `json:"current_value" validate:"gte=0"`
}

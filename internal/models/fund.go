package models

import (
	"fmt"
	"time"
)

// ProviderDateLayout is the provider's NAV date format, e.g. 14-Mar-2025
const ProviderDateLayout = "02-Jan-2006"

// OpenEndedSchemes is the scheme type every provider query is filtered to
const OpenEndedSchemes = "Open Ended Schemes"

// SchemeRecord is one row of the provider's latest NAV feed
type SchemeRecord struct {
	SchemeCode       int     `json:"Scheme_Code"`
	SchemeName       string  `json:"Scheme_Name"`
	SchemeType       string  `json:"Scheme_Type"`
	SchemeCategory   string  `json:"Scheme_Category,omitempty"`
	MutualFundFamily string  `json:"Mutual_Fund_Family"`
	Date             string  `json:"Date"`
	NetAssetValue    float64 `json:"Net_Asset_Value"`
	ISINGrowth       string  `json:"ISIN_Div_Payout_ISIN_Growth,omitempty"`
	ISINReinvestment string  `json:"ISIN_Div_Reinvestment,omitempty"`
}

// NAVDate parses the provider date field
func (r SchemeRecord) NAVDate() (time.Time, error) {
	t, err := time.Parse(ProviderDateLayout, r.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheme %d: invalid date %q: %w", r.SchemeCode, r.Date, err)
	}
	return t, nil
}

// FundListResponse wraps provider records for pass-through endpoints
type FundListResponse struct {
	Message string         `json:"message"`
	Data    []SchemeRecord `json:"data"`
}

// FundFamiliesResponse lists distinct fund families
type FundFamiliesResponse struct {
	Message string   `json:"message"`
	Data    []string `json:"data"`
}

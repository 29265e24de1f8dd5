package model

// Return horizons as published by the portal.
const (
	Return1W  = "1W"
	Return1M  = "1M"
	Return3M  = "3M"
	Return6M  = "6M"
	ReturnYTD = "YTD"
	Return1Y  = "1Y"
	Return2Y  = "2Y"
	Return3Y  = "3Y"
	Return5Y  = "5Y"
	Return10Y = "10Y"
)

// FundReturns maps a horizon (e.g. "3Y") to a percentage return.
type FundReturns map[string]float64

// Fund is one mutual fund as shown to the user.
type Fund struct {
	FundID               string      `json:"fund_id"`
	Name                 string      `json:"name"`
	RiskLevel            string      `json:"risk_level,omitempty"`
	FundType             string      `json:"fund_type,omitempty"`
	Category             string      `json:"category,omitempty"`
	MinSIPAmount         float64     `json:"min_sip_amount,omitempty"`
	NAV                  float64     `json:"nav,omitempty"`
	FundSize             float64     `json:"fund_size,omitempty"`
	IsActive             bool        `json:"is_active"`
	Returns              FundReturns `json:"returns,omitempty"`
	RecommendationReason string      `json:"recommendation_reason,omitempty"`
}

// SelectedFund is the fund picked by the user.
type SelectedFund struct {
	FundID string `json:"fund_id"`
	Name   string `json:"name"`
}

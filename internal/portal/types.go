package portal

import (
	"strings"

	"github.com/mf-advisor-core/server/internal/agent/model"
)

// User is the portal account returned by register and login.
type User struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// AuthResult is the outcome of register or login. Token may be empty after register.
type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// SIPRequest is the body of POST /transactions/sip.
type SIPRequest struct {
	FundID       string  `json:"fundId"`
	Amount       float64 `json:"amount"`
	Frequency    string  `json:"frequency"`
	DeductionDay int     `json:"deductionDay"`
	StartDate    string  `json:"startDate"`
	EndDate      string  `json:"endDate"`
}

// SIPResult carries the transaction id the portal assigned.
type SIPResult struct {
	TransactionID string `json:"_id"`
	Status        string `json:"status,omitempty"`
}

type registerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type fundWire struct {
	ID           string             `json:"_id"`
	Name         string             `json:"name"`
	RiskLevel    string             `json:"risk_level"`
	FundType     string             `json:"fund_type"`
	Category     string             `json:"category"`
	MinSIPAmount float64            `json:"min_sip_amount"`
	NAV          float64            `json:"nav"`
	FundSize     float64            `json:"fund_size"`
	IsActive     *bool              `json:"is_active"`
	Returns      map[string]float64 `json:"returns"`
}

// returnAliases maps the portal's field-style horizon names onto the display keys.
var returnAliases = map[string]string{
	"W_1":  model.Return1W,
	"M_1":  model.Return1M,
	"M_3":  model.Return3M,
	"M_6":  model.Return6M,
	"YTD":  model.ReturnYTD,
	"Y_1":  model.Return1Y,
	"Y_2":  model.Return2Y,
	"Y_3":  model.Return3Y,
	"Y_5":  model.Return5Y,
	"Y_10": model.Return10Y,
}

func (f fundWire) toModel() model.Fund {
	out := model.Fund{
		FundID:       f.ID,
		Name:         strings.TrimSpace(f.Name),
		RiskLevel:    f.RiskLevel,
		FundType:     f.FundType,
		Category:     f.Category,
		MinSIPAmount: f.MinSIPAmount,
		NAV:          f.NAV,
		FundSize:     f.FundSize,
		IsActive:     f.IsActive == nil || *f.IsActive,
	}
	if len(f.Returns) > 0 {
		out.Returns = make(model.FundReturns, len(f.Returns))
		for k, v := range f.Returns {
			if alias, ok := returnAliases[strings.ToUpper(k)]; ok {
				k = alias
			}
			out.Returns[strings.ToUpper(k)] = v
		}
	}
	return out
}

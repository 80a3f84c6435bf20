package domain

import "time"

// Plan descreve um benefício pago disponível no checkout.
type Plan struct {
	ID       string
	Name     string
	Amount   int64
	Currency string
	Duration time.Duration
	Credits  int64
}

type EntitlementSnapshot struct {
	UserID    string     `json:"userId"`
	PlanID    string     `json:"planId,omitempty"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Credits   int64      `json:"credits"`
}

type PlanCatalog map[string]Plan

func (c PlanCatalog) Lookup(planID string) (Plan, error) {
	plan, ok := c[planID]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}

// DefaultPlans é o catálogo usado quando nenhum outro é configurado.
func DefaultPlans() PlanCatalog {
	return PlanCatalog{
		"pro-monthly": {ID: "pro-monthly", Name: "Pro (monthly)", Amount: 49900, Currency: "INR", Duration: 30 * 24 * time.Hour},
		"pro-yearly":  {ID: "pro-yearly", Name: "Pro (yearly)", Amount: 499900, Currency: "INR", Duration: 365 * 24 * time.Hour},
		"credits-100": {ID: "credits-100", Name: "100 credits", Amount: 9900, Currency: "INR", Credits: 100},
	}
}

package models

// AccountStatus enumerates account states relevant to pricing.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
)

// Account is the authenticated buyer as seen by the pricing rules.
type Account struct {
	ID          string        `json:"id"`
	Email       string        `json:"email,omitempty"`
	Status      AccountStatus `json:"status"`
	PricingTier string        `json:"pricingTier,omitempty"`
}

// IsActive reports whether tier and volume pricing apply to the account.
func (a *Account) IsActive() bool {
	return a != nil && a.Status == AccountActive
}

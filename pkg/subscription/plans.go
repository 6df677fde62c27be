package subscription

// Plan describes a purchasable subscription tier. Price IDs must match the
// billing provider's price identifiers (e.g., price_xxx for Stripe) to enable
// direct mapping during checkout and webhook processing.
type Plan struct {
	Tier           PlanTier
	Name           string
	MaxSeats       int
	MonthlyPriceID string
	AnnualPriceID  string
	MonthlyPrice   Money
	AnnualPrice    Money
}

// PlanKey identifies a purchasable (tier, period) combination.
type PlanKey struct {
	Tier   PlanTier
	Period BillingPeriod
}

// Catalog is the static lookup table between (tier, period) pairs and the
// provider's price references. Built once at service construction; lookups
// after that are read-only.
type Catalog struct {
	plans  map[PlanTier]Plan
	prices map[string]PlanKey // provider price ID -> plan key
}

// NewCatalog builds a catalog from plan definitions. Fails fast on
// inconsistent configuration so a misconfigured price table cannot reach the
// reconciliation path.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, ErrInvalidPlanConfiguration
	}

	c := &Catalog{
		plans:  make(map[PlanTier]Plan, len(plans)),
		prices: make(map[string]PlanKey),
	}

	for _, plan := range plans {
		if plan.Tier == "" || plan.Tier == TierTrial {
			return nil, ErrInvalidPlanConfiguration
		}
		if plan.MaxSeats <= 0 {
			return nil, ErrInvalidPlanConfiguration
		}
		if plan.MonthlyPriceID == "" || plan.AnnualPriceID == "" {
			return nil, ErrInvalidPlanConfiguration
		}
		if _, exists := c.plans[plan.Tier]; exists {
			return nil, ErrInvalidPlanConfiguration
		}

		c.plans[plan.Tier] = plan
		c.prices[plan.MonthlyPriceID] = PlanKey{Tier: plan.Tier, Period: PeriodMonthly}
		c.prices[plan.AnnualPriceID] = PlanKey{Tier: plan.Tier, Period: PeriodAnnual}
	}

	return c, nil
}

// PriceFor resolves the provider price reference for a (tier, period) pair.
// Returns ErrUnknownPlan when the pair is not purchasable; notably the trial
// tier has no price and always fails here.
func (c *Catalog) PriceFor(tier PlanTier, period BillingPeriod) (string, error) {
	plan, exists := c.plans[tier]
	if !exists {
		return "", ErrUnknownPlan
	}
	switch period {
	case PeriodMonthly:
		return plan.MonthlyPriceID, nil
	case PeriodAnnual:
		return plan.AnnualPriceID, nil
	default:
		return "", ErrUnknownPlan
	}
}

// ByPriceID resolves a provider price reference back to its (tier, period)
// pair. Used when folding subscription snapshots into the company record.
func (c *Catalog) ByPriceID(priceID string) (PlanKey, bool) {
	key, ok := c.prices[priceID]
	return key, ok
}

// SeatsFor returns the seat ceiling for a tier, falling back to the trial
// default for tiers not present in the catalog.
func (c *Catalog) SeatsFor(tier PlanTier) int {
	if plan, exists := c.plans[tier]; exists {
		return plan.MaxSeats
	}
	return DefaultTrialSeats
}

// DefaultCatalog returns the production plan catalog. Price IDs are the
// provider-side identifiers and must stay in sync with the provider dashboard.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		Plan{
			Tier:           TierStarter,
			Name:           "Starter",
			MaxSeats:       5,
			MonthlyPriceID: "price_starter_monthly",
			AnnualPriceID:  "price_starter_annual",
			MonthlyPrice:   Money{Amount: 1900, Currency: "USD"},
			AnnualPrice:    Money{Amount: 19000, Currency: "USD"},
		},
		Plan{
			Tier:           TierTeam,
			Name:           "Team",
			MaxSeats:       15,
			MonthlyPriceID: "price_team_monthly",
			AnnualPriceID:  "price_team_annual",
			MonthlyPrice:   Money{Amount: 4900, Currency: "USD"},
			AnnualPrice:    Money{Amount: 49000, Currency: "USD"},
		},
		Plan{
			Tier:           TierBusiness,
			Name:           "Business",
			MaxSeats:       50,
			MonthlyPriceID: "price_business_monthly",
			AnnualPriceID:  "price_business_annual",
			MonthlyPrice:   Money{Amount: 9900, Currency: "USD"},
			AnnualPrice:    Money{Amount: 99000, Currency: "USD"},
		},
	)
	if err != nil {
		panic("subscription: default catalog misconfigured: " + err.Error())
	}
	return c
}

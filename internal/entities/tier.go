package entities

type Tier string

const (
	TierNone     Tier = ""
	TierBase     Tier = "base"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

type TierPlan struct {
	BaseAmount   int64 // centavos, before the disambiguation offset
	Credits      int64
	Subscription bool
	Rank         int
}

var tierPlans = map[Tier]TierPlan{
	TierBase:     {BaseAmount: 990, Credits: 10, Subscription: false, Rank: 1},
	TierStandard: {BaseAmount: 1990, Credits: 50, Subscription: true, Rank: 2},
	TierPremium:  {BaseAmount: 2990, Credits: 150, Subscription: true, Rank: 3},
}

func PlanFor(t Tier) (TierPlan, bool) {
	plan, ok := tierPlans[t]
	return plan, ok
}

// Rank is 0 for unknown tiers so an empty ActiveTier never outranks anything.
func (t Tier) Rank() int {
	return tierPlans[t].Rank
}

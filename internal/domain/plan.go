package domain

type SubscriptionPlan struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PriceUSD       int64  `json:"priceUSD"`
	PriceIQD       int64  `json:"priceIQD"`
	DurationMonths int    `json:"durationMonths"`
	Description    string `json:"description"`
}

const (
	PlanMonthly   = "monthly"
	PlanQuarterly = "quarterly"
	PlanYearly    = "yearly"
)

var plans = []SubscriptionPlan{
	{
		ID:             PlanMonthly,
		Name:           "الباقة الشهرية",
		PriceUSD:       10,
		PriceIQD:       15000,
		DurationMonths: 1,
		Description:    "وصول كامل لجميع الدروس والملفات لمدة 30 يوم.",
	},
	{
		ID:             PlanQuarterly,
		Name:           "الباقة الربع سنوية",
		PriceUSD:       25,
		PriceIQD:       37500,
		DurationMonths: 3,
		Description:    "وفر أكثر مع اشتراك 3 أشهر (وفر 5,000 دينار).",
	},
	{
		ID:             PlanYearly,
		Name:           "الباقة السنوية",
		PriceUSD:       90,
		PriceIQD:       135000,
		DurationMonths: 12,
		Description:    "الخيار الأفضل للطلاب الملتزمين، توفير 30,000 دينار.",
	},
}

// Plans returns a copy of the plan catalog.
func Plans() []SubscriptionPlan {
	out := make([]SubscriptionPlan, len(plans))
	copy(out, plans)
	return out
}

func FindPlan(id string) (SubscriptionPlan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return SubscriptionPlan{}, false
}

// ResolvePlan looks a plan up by id, then by display name, and falls back to
// the monthly plan.
func ResolvePlan(idOrName string) SubscriptionPlan {
	for _, p := range plans {
		if p.ID == idOrName || p.Name == idOrName {
			return p
		}
	}
	return plans[0]
}

package capacity

import (
	"math"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RightSizingAction buckets a resource by utilization.
type RightSizingAction string

const (
	RightSizeDownsize RightSizingAction = "downsize"
	RightSizeUpsize   RightSizingAction = "upsize"
	RightSizeMaintain RightSizingAction = "maintain"
)

// PeriodCost is the cost of one (resource, service) profile over a billing
// period.
type PeriodCost struct {
	ResourceType string
	Service      string
	Hourly       decimal.Decimal
	Daily        decimal.Decimal
	Monthly      decimal.Decimal
}

// SavingsOpportunity flags an underutilized resource and what it would
// cost right-sized.
type SavingsOpportunity struct {
	ResourceType      string
	Service           string
	Utilization       float64
	CurrentMonthly    decimal.Decimal
	RecommendedMonthly decimal.Decimal
	EstimatedSavings  decimal.Decimal
}

// RightSizingRecommendation is the bucket decision for one profile.
type RightSizingRecommendation struct {
	ResourceType string
	Service      string
	Utilization  float64
	Action       RightSizingAction
}

// CostAnalyzer turns ResourceCostProfiles into period costs, savings
// opportunities, right-sizing buckets, an efficiency score, and a compound
// cost forecast.
type CostAnalyzer struct {
	cfg CostAnalyzerConfig
	log zerolog.Logger

	mu       sync.RWMutex
	profiles map[string]ResourceCostProfile
}

func NewCostAnalyzer(cfg CostAnalyzerConfig, log zerolog.Logger) (*CostAnalyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CostAnalyzer{
		cfg:      cfg,
		log:      log.With().Str("component", "cost_analyzer").Logger(),
		profiles: make(map[string]ResourceCostProfile),
	}, nil
}

func (c *CostAnalyzer) SetProfile(profile ResourceCostProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[metricKey(profile.ResourceType, profile.Service)] = profile
}

func (c *CostAnalyzer) Profiles() []ResourceCostProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ResourceCostProfile, 0, len(c.profiles))
	for _, p := range c.profiles {
		out = append(out, p)
	}
	return out
}

func hourlyCostOf(p ResourceCostProfile) decimal.Decimal {
	rate := decimal.NewFromFloat(p.HourlyRate)
	count := decimal.NewFromInt(int64(p.InstanceCount))
	return rate.Mul(count)
}

// PeriodCosts computes hourly/daily/monthly costs for every profile.
func (c *CostAnalyzer) PeriodCosts() []PeriodCost {
	profiles := c.Profiles()
	monthlyHours := decimal.NewFromFloat(c.cfg.MonthlyHours)

	out := make([]PeriodCost, 0, len(profiles))
	for _, p := range profiles {
		hourly := hourlyCostOf(p)
		out = append(out, PeriodCost{
			ResourceType: p.ResourceType,
			Service:      p.Service,
			Hourly:       hourly,
			Daily:        hourly.Mul(decimal.NewFromInt(24)),
			Monthly:      hourly.Mul(monthlyHours),
		})
	}
	return out
}

// SavingsOpportunities flags profiles below the savings utilization
// threshold, recommending a cost proportional to max(util/100, 0.1) + 0.2.
func (c *CostAnalyzer) SavingsOpportunities() []SavingsOpportunity {
	profiles := c.Profiles()
	monthlyHours := decimal.NewFromFloat(c.cfg.MonthlyHours)

	var out []SavingsOpportunity
	for _, p := range profiles {
		if p.Utilization >= c.cfg.SavingsUtilThreshold {
			continue
		}
		currentMonthly := hourlyCostOf(p).Mul(monthlyHours)

		factor := math.Max(p.Utilization/100.0, 0.1) + 0.2
		recommendedMonthly := currentMonthly.Mul(decimal.NewFromFloat(factor))
		savings := currentMonthly.Sub(recommendedMonthly)

		out = append(out, SavingsOpportunity{
			ResourceType:       p.ResourceType,
			Service:            p.Service,
			Utilization:        p.Utilization,
			CurrentMonthly:     currentMonthly,
			RecommendedMonthly: recommendedMonthly,
			EstimatedSavings:   savings,
		})
	}
	return out
}

// IsIdle reports whether a profile's utilization is below the (lower)
// idle threshold, a supplemented detection distinct from the savings
// threshold.
func (c *CostAnalyzer) IsIdle(resourceType, service string) bool {
	c.mu.RLock()
	p, ok := c.profiles[metricKey(resourceType, service)]
	c.mu.RUnlock()
	return ok && p.Utilization < c.cfg.IdleUtilThreshold
}

// RightSizingRecommendations buckets every profile by utilization.
func (c *CostAnalyzer) RightSizingRecommendations() []RightSizingRecommendation {
	profiles := c.Profiles()
	out := make([]RightSizingRecommendation, 0, len(profiles))
	for _, p := range profiles {
		action := RightSizeMaintain
		switch {
		case p.Utilization < c.cfg.DownsizeUtilBelow:
			action = RightSizeDownsize
		case p.Utilization > c.cfg.UpsizeUtilAbove:
			action = RightSizeUpsize
		}
		out = append(out, RightSizingRecommendation{
			ResourceType: p.ResourceType,
			Service:      p.Service,
			Utilization:  p.Utilization,
			Action:       action,
		})
	}
	return out
}

// EfficiencyScore is 100 penalized by 1.5 points per utilization point
// away from the 65% sweet spot, floored at 0.
func (c *CostAnalyzer) EfficiencyScore() float64 {
	profiles := c.Profiles()
	if len(profiles) == 0 {
		return 0
	}
	var sum float64
	for _, p := range profiles {
		sum += p.Utilization
	}
	avgUtil := sum / float64(len(profiles))
	score := 100 - 1.5*math.Abs(avgUtil-65)
	if score < 0 {
		score = 0
	}
	return score
}

// ForecastMonths projects total monthly cost N months forward, compounding
// at the configured monthly growth rate.
func (c *CostAnalyzer) ForecastMonths(months int) []decimal.Decimal {
	var totalMonthly decimal.Decimal
	for _, pc := range c.PeriodCosts() {
		totalMonthly = totalMonthly.Add(pc.Monthly)
	}

	growth := decimal.NewFromFloat(1 + c.cfg.MonthlyGrowthRate)
	forecasts := make([]decimal.Decimal, months)
	running := totalMonthly
	for i := 0; i < months; i++ {
		running = running.Mul(growth)
		forecasts[i] = running
	}
	return forecasts
}

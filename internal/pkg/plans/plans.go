package plans

import "strings"

type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanGrowth  Plan = "growth"
)

// Limits describes what a plan entitles an organization to.
type Limits struct {
	Products  int  `json:"products"`
	Locations int  `json:"locations"`
	Members   int  `json:"members"`
	Exports   bool `json:"exports"`
}

// Normalize maps arbitrary plan input to a known plan, defaulting to free.
func Normalize(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanStarter):
		return PlanStarter
	case string(PlanGrowth):
		return PlanGrowth
	default:
		return PlanFree
	}
}

// IsKnown reports whether the given plan id maps to a paid or free catalog entry.
func IsKnown(plan string) bool {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanFree), string(PlanStarter), string(PlanGrowth):
		return true
	default:
		return false
	}
}

// LimitsFor returns the entitlement limits for a given plan.
func LimitsFor(plan Plan) Limits {
	switch plan {
	case PlanGrowth:
		return Limits{Products: 50000, Locations: 20, Members: 50, Exports: true}
	case PlanStarter:
		return Limits{Products: 5000, Locations: 3, Members: 10, Exports: true}
	default:
		return Limits{Products: 250, Locations: 1, Members: 2, Exports: false}
	}
}

// Rank orders plans so the highest entitlement wins when comparing.
func Rank(plan Plan) int {
	switch plan {
	case PlanGrowth:
		return 2
	case PlanStarter:
		return 1
	default:
		return 0
	}
}

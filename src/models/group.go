package models

// GroupKey identifies one of the six discrepancy/debt buckets a deal can fall
// into after reconciliation. The set is closed: GroupForDeal is the only place
// a group is ever assigned.
type GroupKey string

const (
	GroupNoIssues        GroupKey = "1_no_issues"
	GroupDebtOnly        GroupKey = "2_debt_only"
	GroupDebtAndIncrease GroupKey = "3_debt_and_increase"
	GroupDebtAndDecrease GroupKey = "4_debt_and_decrease"
	GroupIncreaseOnly    GroupKey = "5_increase_only"
	GroupDecreaseOnly    GroupKey = "6_decrease_only"
)

// AreaTolerance is the measurement-noise band in square meters. Deltas within
// [-AreaTolerance, +AreaTolerance] count as "no change"; the comparison is
// strict, so a delta of exactly ±2.0 stays inside the band.
const AreaTolerance = 2.0

// AllGroups lists the buckets in display order.
var AllGroups = []GroupKey{
	GroupNoIssues,
	GroupDebtOnly,
	GroupDebtAndIncrease,
	GroupDebtAndDecrease,
	GroupIncreaseOnly,
	GroupDecreaseOnly,
}

// GroupNames maps each bucket to its operator-facing label.
var GroupNames = map[GroupKey]string{
	GroupNoIssues:        "1) Без обременений",
	GroupDebtOnly:        "2) С долгом, без изм. площади",
	GroupDebtAndIncrease: "3) С долгом, с увел. площади",
	GroupDebtAndDecrease: "4) С долгом, с уменьш. площади",
	GroupIncreaseOnly:    "5) Без долга, с увел. площади",
	GroupDecreaseOnly:    "6) Без долга, с уменьш. площади",
}

// GroupForDeal buckets a deal by its debt flag and area delta. The six
// combinations partition the whole (bool, float64) input space.
func GroupForDeal(hasDebt bool, areaDiff float64) GroupKey {
	switch {
	case areaDiff > AreaTolerance:
		if hasDebt {
			return GroupDebtAndIncrease
		}
		return GroupIncreaseOnly
	case areaDiff < -AreaTolerance:
		if hasDebt {
			return GroupDebtAndDecrease
		}
		return GroupDecreaseOnly
	default:
		if hasDebt {
			return GroupDebtOnly
		}
		return GroupNoIssues
	}
}

// Valid reports whether k is one of the six known buckets.
func (k GroupKey) Valid() bool {
	_, ok := GroupNames[k]
	return ok
}

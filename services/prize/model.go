package prize

// OutcomeType enumerates what a winning prize entry grants.
type OutcomeType string

const (
	OutcomePoints      OutcomeType = "points"
	OutcomeDiscount    OutcomeType = "discount"
	OutcomeFreeSpin    OutcomeType = "free_spin"
	OutcomeFreeProduct OutcomeType = "free_product"
	OutcomeNothing     OutcomeType = "nothing"
	OutcomeBadge       OutcomeType = "badge"
	OutcomeReward      OutcomeType = "reward"
)

// Entry is one weighted outcome inside a prize table. The probability of
// drawing an entry is Weight / sum(Weights) over the whole table.
type Entry struct {
	ID     string      `json:"id"`
	Label  string      `json:"label"`
	Type   OutcomeType `json:"type"`
	Value  int64       `json:"value"`
	Weight int64       `json:"weight"`
}

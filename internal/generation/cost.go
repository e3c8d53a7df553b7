package generation

// CostModel converts measured compute time into user-chargeable credits. The
// rate is derived from the provider's per-second price and the price of one
// credit in the same currency.
type CostModel struct {
	CreditsPerSecond float64
}

// Cost returns the credits charged for a job that ran predictTime seconds.
// Every successful job costs at least one credit, however fast it finished.
func (m CostModel) Cost(predictTime float64) int64 {
	cost := int64(predictTime * m.CreditsPerSecond)
	if cost < 1 {
		return 1
	}
	return cost
}

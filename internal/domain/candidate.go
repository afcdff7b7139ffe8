package domain

// PairCandidate is the outcome of screening one directed instrument pair.
// The direction matters: the regression fits price_A on price_B, so (A,B)
// and (B,A) carry different betas and residuals and are reported as distinct
// candidates. A candidate is immutable once created.
type PairCandidate struct {
	InstrumentA string
	InstrumentB string
	Correlation float64
	Beta        float64
	ResidualStd float64
	PValue      float64
	Overlap     int
}

// Key returns a stable "A/B" identifier for the directed pair.
func (c PairCandidate) Key() string {
	return c.InstrumentA + "/" + c.InstrumentB
}

// RankBefore reports whether c should be ranked ahead of other. Candidates
// are ordered by correlation magnitude descending, then p-value ascending,
// then instrument ids, so the ranking is reproducible regardless of the
// order in which pairs were evaluated.
func (c PairCandidate) RankBefore(other PairCandidate) bool {
	ca, cb := abs(c.Correlation), abs(other.Correlation)
	if ca != cb {
		return ca > cb
	}
	if c.PValue != other.PValue {
		return c.PValue < other.PValue
	}
	if c.InstrumentA != other.InstrumentA {
		return c.InstrumentA < other.InstrumentA
	}
	return c.InstrumentB < other.InstrumentB
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

package grading

import "github.com/noah-isme/uni-records-api/internal/models"

// MaxTotalWeight is the weight budget a record's assessments should stay
// within. Exceeding it is flagged, not rejected.
const MaxTotalWeight = 100.0

// Aggregation is the reduction of a record's weighted assessments.
type Aggregation struct {
	TotalWeight   float64
	WeightedScore float64
	Percentage    float64
	TotalScore    float64
	MaxTotalScore float64
}

// OverWeighted reports whether the assessment weights exceed the budget.
func (a Aggregation) OverWeighted() bool {
	return a.TotalWeight > MaxTotalWeight
}

// Aggregate reduces the assessments into a total weighted score and overall
// percentage. Excused assessments are skipped entirely; a max score of zero
// contributes nothing rather than dividing by zero. An empty list yields a
// zero percentage, which downstream resolves to F — the defined
// "no data yet" state.
func Aggregate(assessments []models.Assessment) Aggregation {
	var agg Aggregation
	for _, a := range assessments {
		if a.IsExcused || a.Status == models.AssessmentStatusExempted {
			continue
		}
		agg.TotalWeight += a.Weight
		agg.TotalScore += a.Score
		agg.MaxTotalScore += a.MaxScore
		if a.MaxScore > 0 {
			agg.WeightedScore += (a.Score / a.MaxScore) * a.Weight
		}
	}
	if agg.TotalWeight > 0 {
		agg.Percentage = agg.WeightedScore / agg.TotalWeight * 100
	}
	return agg
}

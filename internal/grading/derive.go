package grading

import "github.com/noah-isme/uni-records-api/internal/models"

// Derivation is the full set of derived fields for a grade record.
type Derivation struct {
	TotalScore       float64
	MaxTotalScore    float64
	TotalWeight      float64
	Percentage       float64
	FinalGrade       string
	GradePoint       float64
	QualityPoints    float64
	ResultStatus     models.ResultStatus
	AcademicStanding models.AcademicStanding
	OverWeighted     bool
}

// Derive runs the full pipeline: aggregate the assessments, resolve the
// letter grade and grade point on the record's scale, then compute quality
// points, result status and academic standing. The pipeline is deterministic:
// the same inputs always produce the same derivation.
func Derive(assessments []models.Assessment, scale Scale, creditHours float64) Derivation {
	agg := Aggregate(assessments)
	letter, point := ResolveGrade(agg.Percentage, scale)

	return Derivation{
		TotalScore:       agg.TotalScore,
		MaxTotalScore:    agg.MaxTotalScore,
		TotalWeight:      agg.TotalWeight,
		Percentage:       agg.Percentage,
		FinalGrade:       letter,
		GradePoint:       point,
		QualityPoints:    point * creditHours,
		ResultStatus:     ResultStatusFor(letter, point),
		AcademicStanding: StandingFor(point),
		OverWeighted:     agg.OverWeighted(),
	}
}

// DeriveFromOverride recomputes the dependent fields after an approved appeal
// overrides the final grade, grade point or percentage directly. Only the
// fields downstream of the override change; the assessments stay as they are.
func DeriveFromOverride(finalGrade string, gradePoint, creditHours float64) (float64, models.ResultStatus, models.AcademicStanding) {
	return gradePoint * creditHours, ResultStatusFor(finalGrade, gradePoint), StandingFor(gradePoint)
}

// ResultStatusFor maps a letter grade and grade point to the pass/fail
// outcome. Explicit grade codes take precedence over the numeric threshold.
func ResultStatusFor(finalGrade string, gradePoint float64) models.ResultStatus {
	switch finalGrade {
	case "F", "NP", "NC":
		return models.ResultFail
	case "I", "W", "IP":
		return models.ResultIncomplete
	case "P", "CR", "AU":
		return models.ResultPass
	}
	if gradePoint >= 2.0 {
		return models.ResultPass
	}
	return models.ResultFail
}

// StandingFor maps a grade point to the coarse academic standing tier.
func StandingFor(gradePoint float64) models.AcademicStanding {
	switch {
	case gradePoint >= 3.5:
		return models.StandingExcellent
	case gradePoint >= 3.0:
		return models.StandingGood
	case gradePoint >= 2.0:
		return models.StandingSatisfactory
	case gradePoint >= 1.0:
		return models.StandingProbation
	default:
		return models.StandingSuspension
	}
}

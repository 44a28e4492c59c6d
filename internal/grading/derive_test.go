package grading

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-records-api/internal/models"
)

func TestDeriveFullPipeline(t *testing.T) {
	assessments := []models.Assessment{
		{Score: 45, MaxScore: 50, Weight: 40},
		{Score: 18, MaxScore: 20, Weight: 60},
	}

	derived := Derive(assessments, Scale4, 3)
	require.InDelta(t, 90.0, derived.Percentage, 1e-9)
	require.Equal(t, "A-", derived.FinalGrade)
	require.Equal(t, 3.7, derived.GradePoint)
	require.InDelta(t, 11.1, derived.QualityPoints, 1e-9)
	require.Equal(t, models.ResultPass, derived.ResultStatus)
	require.Equal(t, models.StandingExcellent, derived.AcademicStanding)
	require.False(t, derived.OverWeighted)
}

func TestDeriveEmptyAssessments(t *testing.T) {
	derived := Derive(nil, Scale4, 3)
	require.Zero(t, derived.Percentage)
	require.Equal(t, "F", derived.FinalGrade)
	require.Zero(t, derived.GradePoint)
	require.Equal(t, models.ResultFail, derived.ResultStatus)
	require.Equal(t, models.StandingSuspension, derived.AcademicStanding)
}

func TestDeriveIdempotent(t *testing.T) {
	assessments := []models.Assessment{
		{Score: 30, MaxScore: 40, Weight: 30},
		{Score: 55, MaxScore: 60, Weight: 70},
	}

	first := Derive(assessments, Scale10, 4)
	second := Derive(assessments, Scale10, 4)
	require.Equal(t, first, second)
}

func TestDeriveQualityPointsProduct(t *testing.T) {
	for _, credits := range []float64{1, 2, 3, 4.5} {
		derived := Derive([]models.Assessment{{Score: 83, MaxScore: 100, Weight: 100}}, Scale4, credits)
		require.Equal(t, derived.GradePoint*credits, derived.QualityPoints)
	}
}

func TestResultStatusExplicitCodesTakePrecedence(t *testing.T) {
	// A grade point above the pass threshold does not rescue an explicit fail code.
	require.Equal(t, models.ResultFail, ResultStatusFor("NC", 3.0))
	require.Equal(t, models.ResultIncomplete, ResultStatusFor("W", 3.0))
	// Pass codes pass regardless of grade point.
	require.Equal(t, models.ResultPass, ResultStatusFor("P", 0))
	require.Equal(t, models.ResultPass, ResultStatusFor("B", 3.0))
	require.Equal(t, models.ResultFail, ResultStatusFor("D", 1.0))
}

func TestStandingTiers(t *testing.T) {
	require.Equal(t, models.StandingExcellent, StandingFor(3.5))
	require.Equal(t, models.StandingGood, StandingFor(3.0))
	require.Equal(t, models.StandingSatisfactory, StandingFor(2.0))
	require.Equal(t, models.StandingProbation, StandingFor(1.0))
	require.Equal(t, models.StandingSuspension, StandingFor(0.9))
}

func TestDeriveFromOverride(t *testing.T) {
	quality, status, standing := DeriveFromOverride("B+", 3.3, 3)
	require.InDelta(t, 9.9, quality, 1e-9)
	require.Equal(t, models.ResultPass, status)
	require.Equal(t, models.StandingGood, standing)
}

package grading

// Scale identifies the GPA scale a grade record is computed against.
type Scale float64

const (
	Scale4  Scale = 4.0
	Scale5  Scale = 5.0
	Scale10 Scale = 10.0
)

// Valid reports whether the scale is one of the supported GPA scales.
func (s Scale) Valid() bool {
	switch s {
	case Scale4, Scale5, Scale10:
		return true
	}
	return false
}

type gradeBand struct {
	cutoff  float64
	letter  string
	point4  float64
	point5  float64
	point10 float64
}

// Cut points are shared across scales; only the grade point values differ.
var gradeBands = []gradeBand{
	{97, "A+", 4.0, 5.0, 10.0},
	{93, "A", 4.0, 5.0, 10.0},
	{90, "A-", 3.7, 4.7, 9.0},
	{87, "B+", 3.3, 4.3, 8.0},
	{83, "B", 3.0, 4.0, 7.0},
	{80, "B-", 2.7, 3.7, 6.0},
	{77, "C+", 2.3, 3.3, 5.0},
	{73, "C", 2.0, 3.0, 4.0},
	{70, "C-", 1.7, 2.7, 3.0},
	{67, "D+", 1.3, 2.3, 2.0},
	{65, "D", 1.0, 2.0, 1.0},
}

// ResolveGrade maps a percentage to a letter grade and grade point on the
// given scale. Percentages below the lowest cutoff resolve to F with a grade
// point of zero. An unrecognised scale falls back to the 4.0 table.
func ResolveGrade(percentage float64, scale Scale) (string, float64) {
	for _, band := range gradeBands {
		if percentage >= band.cutoff {
			switch scale {
			case Scale5:
				return band.letter, band.point5
			case Scale10:
				return band.letter, band.point10
			default:
				return band.letter, band.point4
			}
		}
	}
	return "F", 0
}

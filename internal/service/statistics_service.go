package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/uni-records-api/internal/dto"
	"github.com/noah-isme/uni-records-api/internal/models"
	"github.com/noah-isme/uni-records-api/internal/repository"
)

// Default honor roll thresholds per roll type; a request may override them.
const (
	defaultHonorRollCredits = 12.0

	deansListMinGPA       = 3.5
	presidentsListMinGPA  = 3.8
	chancellorsListMinGPA = 3.9
)

// StatisticsFilters narrows cohort statistics to a term or academic year.
type StatisticsFilters struct {
	Term         string
	AcademicYear string
}

// StatisticsService computes read-only aggregations over published, active
// grade records. Results are snapshots: records published mid-aggregation
// may or may not appear.
type StatisticsService interface {
	GetClassStatistics(ctx context.Context, courseID uint, filters StatisticsFilters) (dto.ScopeStatisticsResponse, error)
	GetDepartmentStatistics(ctx context.Context, departmentID uint, filters StatisticsFilters) (dto.ScopeStatisticsResponse, error)
	GetSectionResults(ctx context.Context, section string, filters StatisticsFilters) (dto.ScopeStatisticsResponse, error)
	GetResultsByYearAndSemester(ctx context.Context, year, semester int, filters StatisticsFilters) (dto.ScopeStatisticsResponse, error)
	GetHonorRoll(ctx context.Context, req dto.HonorRollRequest) (dto.HonorRollResponse, error)
}

type statisticsService struct {
	records  repository.GradeRecordRepository
	refs     repository.ReferenceRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewStatisticsService constructs the cohort statistics aggregator.
func NewStatisticsService(records repository.GradeRecordRepository, refs repository.ReferenceRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) StatisticsService {
	return &statisticsService{
		records:  records,
		refs:     refs,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "statistics_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/uni-records-api/internal/service/statistics"),
		now:      time.Now,
	}
}

func (s *statisticsService) GetClassStatistics(ctx context.Context, courseID uint, filters StatisticsFilters) (dto.ScopeStatisticsResponse, error) {
	scope := fmt.Sprintf("class:%d", courseID)
	filter := s.publishedFilter(filters)
	filter.CourseID = &courseID
	return s.aggregate(ctx, scope, filter, groupBySection)
}

func (s *statisticsService) GetDepartmentStatistics(ctx context.Context, departmentID uint, filters StatisticsFilters) (dto.ScopeStatisticsResponse, error) {
	scope := fmt.Sprintf("department:%d", departmentID)
	filter := s.publishedFilter(filters)
	filter.DepartmentID = &departmentID
	return s.aggregate(ctx, scope, filter, groupByCourse)
}

func (s *statisticsService) GetSectionResults(ctx context.Context, section string, filters StatisticsFilters) (dto.ScopeStatisticsResponse, error) {
	scope := fmt.Sprintf("section:%s", section)
	filter := s.publishedFilter(filters)
	filter.Section = section
	return s.aggregate(ctx, scope, filter, groupByCourse)
}

func (s *statisticsService) GetResultsByYearAndSemester(ctx context.Context, year, semester int, filters StatisticsFilters) (dto.ScopeStatisticsResponse, error) {
	scope := fmt.Sprintf("year:%d:semester:%d", year, semester)
	filter := s.publishedFilter(filters)
	filter.Year = &year
	filter.Semester = &semester
	return s.aggregate(ctx, scope, filter, groupByCourse)
}

func (s *statisticsService) publishedFilter(filters StatisticsFilters) repository.GradeRecordFilter {
	published := true
	return repository.GradeRecordFilter{
		Term:         filters.Term,
		AcademicYear: filters.AcademicYear,
		Published:    &published,
		ActiveOnly:   true,
	}
}

func (s *statisticsService) aggregate(ctx context.Context, scope string, filter repository.GradeRecordFilter, groupKey func(models.GradeRecord) (string, string)) (dto.ScopeStatisticsResponse, error) {
	cacheKey := fmt.Sprintf("statistics:%s:%s:%s", scope, filter.Term, filter.AcademicYear)
	ctx, span := s.tracer.Start(ctx, "statistics.aggregate", trace.WithAttributes(
		attribute.String("statistics.scope", scope),
	))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.ScopeStatisticsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("statistics.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read statistics cache")
			span.RecordError(err)
		}
	}

	records, err := s.records.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record_selection_failed")
		return dto.ScopeStatisticsResponse{}, err
	}

	response := buildScopeStatistics(scope, records, groupKey)
	response.GeneratedAt = s.now().UTC()

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store statistics cache")
				span.RecordError(err)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("statistics.record_count", response.RecordCount),
		attribute.Float64("statistics.pass_rate", response.PassRate),
	)
	return response, nil
}

func buildScopeStatistics(scope string, records []models.GradeRecord, groupKey func(models.GradeRecord) (string, string)) dto.ScopeStatisticsResponse {
	students := make(map[uint]struct{})
	courses := make(map[uint]struct{})
	distribution := dto.GradeDistribution{}

	type groupAcc struct {
		label    string
		students map[uint]struct{}
		pass     int64
		fail     int64
		credits  float64
		quality  float64
	}
	groups := make(map[string]*groupAcc)

	var pass, fail, incomplete int64
	var acc gpaAccumulator

	for _, record := range records {
		students[record.StudentID] = struct{}{}
		courses[record.CourseID] = struct{}{}
		acc.add(record)

		if record.FinalGrade != "" {
			distribution[record.FinalGrade]++
		}

		switch record.ResultStatus {
		case models.ResultPass:
			pass++
		case models.ResultFail:
			fail++
		case models.ResultIncomplete:
			incomplete++
		}

		if groupKey == nil {
			continue
		}
		key, label := groupKey(record)
		group, ok := groups[key]
		if !ok {
			group = &groupAcc{label: label, students: make(map[uint]struct{})}
			groups[key] = group
		}
		group.students[record.StudentID] = struct{}{}
		switch record.ResultStatus {
		case models.ResultPass:
			group.pass++
		case models.ResultFail:
			group.fail++
		}
		if record.CreditHours > 0 && record.MaxTotalScore > 0 {
			group.credits += record.CreditHours
			group.quality += record.QualityPoints
		}
	}

	breakdown := make([]dto.GroupStatistics, 0, len(groups))
	for key, group := range groups {
		row := dto.GroupStatistics{
			Key:          key,
			Label:        group.label,
			StudentCount: len(group.students),
			PassCount:    group.pass,
			FailCount:    group.fail,
			PassRate:     passRate(group.pass, group.fail),
		}
		if group.credits > 0 {
			row.AverageGradePoint = roundTo2(group.quality / group.credits)
		}
		breakdown = append(breakdown, row)
	}
	sort.Slice(breakdown, func(i, j int) bool { return breakdown[i].Key < breakdown[j].Key })

	return dto.ScopeStatisticsResponse{
		Scope:             scope,
		StudentCount:      len(students),
		CourseCount:       len(courses),
		RecordCount:       len(records),
		PassCount:         pass,
		FailCount:         fail,
		IncompleteCount:   incomplete,
		PassRate:          passRate(pass, fail),
		AverageGradePoint: acc.gpa(),
		Distribution:      distribution,
		Breakdown:         breakdown,
	}
}

func passRate(pass, fail int64) float64 {
	total := pass + fail
	if total == 0 {
		return 0
	}
	return roundTo2(float64(pass) / float64(total) * 100)
}

func groupByCourse(record models.GradeRecord) (string, string) {
	key := fmt.Sprintf("course:%d", record.CourseID)
	return key, key
}

func groupBySection(record models.GradeRecord) (string, string) {
	key := fmt.Sprintf("section:%s", record.Section)
	return key, record.Section
}

// GetHonorRoll ranks students clearing both the GPA and credit thresholds for
// the requested roll type, GPA descending then name ascending.
func (s *statisticsService) GetHonorRoll(ctx context.Context, req dto.HonorRollRequest) (dto.HonorRollResponse, error) {
	ctx, span := s.tracer.Start(ctx, "statistics.honor_roll", trace.WithAttributes(
		attribute.String("honor_roll.type", req.RollType),
	))
	defer span.End()

	rollType := req.RollType
	if rollType == "" {
		rollType = "deans"
	}
	minGPA := req.MinGPA
	if minGPA == 0 {
		switch rollType {
		case "presidents":
			minGPA = presidentsListMinGPA
		case "chancellors":
			minGPA = chancellorsListMinGPA
		default:
			minGPA = deansListMinGPA
		}
	}
	minCredits := req.MinCredits
	if minCredits == 0 {
		minCredits = defaultHonorRollCredits
	}

	filter := s.publishedFilter(StatisticsFilters{Term: req.Term, AcademicYear: req.AcademicYear})
	records, err := s.records.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record_selection_failed")
		return dto.HonorRollResponse{}, err
	}

	perStudent := make(map[uint]*gpaAccumulator)
	for _, record := range records {
		acc, ok := perStudent[record.StudentID]
		if !ok {
			acc = &gpaAccumulator{}
			perStudent[record.StudentID] = acc
		}
		acc.add(record)
	}

	qualifying := make([]dto.HonorRollEntry, 0, len(perStudent))
	ids := make([]uint, 0, len(perStudent))
	for studentID, acc := range perStudent {
		gpa := acc.gpa()
		if gpa < minGPA || acc.credits < minCredits {
			continue
		}
		qualifying = append(qualifying, dto.HonorRollEntry{
			StudentID:    studentID,
			GPA:          gpa,
			TotalCredits: acc.credits,
			RollType:     rollType,
		})
		ids = append(ids, studentID)
	}

	names, err := s.refs.StudentNamesByIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "student_hydration_failed")
		return dto.HonorRollResponse{}, err
	}
	for i := range qualifying {
		qualifying[i].StudentName = names[qualifying[i].StudentID]
	}

	sort.Slice(qualifying, func(i, j int) bool {
		if qualifying[i].GPA != qualifying[j].GPA {
			return qualifying[i].GPA > qualifying[j].GPA
		}
		return qualifying[i].StudentName < qualifying[j].StudentName
	})
	for i := range qualifying {
		qualifying[i].Rank = i + 1
	}

	span.SetAttributes(attribute.Int("honor_roll.entries", len(qualifying)))
	return dto.HonorRollResponse{
		RollType:    rollType,
		MinGPA:      minGPA,
		MinCredits:  minCredits,
		Entries:     qualifying,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// Package quality computes data-quality metrics over a snapshot of the
// persisted dataset: completeness, uniqueness, format validity, and PII
// masking, combined into one weighted score. The computation is pure; the
// snapshot is immutable once produced and never cached across mutations.
package quality

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"personpipe/internal/anonymize"
	"personpipe/internal/person"
)

// ErrInsufficientData marks a scoring call against fewer than MinRecords
// rows. Ratios are unstable below that threshold.
var ErrInsufficientData = errors.New("insufficient data for quality metrics")

// MinRecords is the smallest dataset the scorer accepts.
const MinRecords = 2

// Weights of the overall score components.
const (
	weightCompleteness = 0.4
	weightUniqueness   = 0.3
	weightPIIMasking   = 0.2
	weightFormat       = 0.1
)

// ScoredFields is the designated field set the ratios are computed over.
var ScoredFields = []string{"email_provider", "country", "age_group", "gender"}

var fieldAccessors = map[string]func(person.AnonymizedPerson) string{
	"email_provider": func(p person.AnonymizedPerson) string { return p.EmailProvider },
	"country":        func(p person.AnonymizedPerson) string { return p.Country },
	"age_group":      func(p person.AnonymizedPerson) string { return p.AgeGroup },
	"gender":         func(p person.AnonymizedPerson) string { return p.Gender },
}

var (
	ageGroupPattern = regexp.MustCompile(`^\[(\d+)-(\d+)\]$`)
	providerPattern = regexp.MustCompile(`^[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	numericPattern  = regexp.MustCompile(`^[0-9]+$`)
)

// Snapshot is a point-in-time quality computation over the dataset.
type Snapshot struct {
	TotalRecords   int
	ValidRecords   int
	Completeness   map[string]float64
	Uniqueness     map[string]float64
	FormatValidity map[string]float64
	PIIMasking     float64
	OverallScore   float64
}

// SnapshotRecorder receives a finished snapshot for export. The scorer
// never depends on the metrics backend beyond this method.
type SnapshotRecorder interface {
	RecordSnapshot(Snapshot)
}

// Scorer computes quality snapshots.
type Scorer struct {
	logger   *slog.Logger
	recorder SnapshotRecorder
}

// NewScorer builds a scorer. The recorder may be nil when no metrics
// export is wanted.
func NewScorer(logger *slog.Logger, recorder SnapshotRecorder) *Scorer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scorer{logger: logger, recorder: recorder}
}

// Score computes a snapshot over the given rows and exports it to the
// recorder. It fails when the dataset is too small for stable ratios.
func (s *Scorer) Score(rows []person.AnonymizedPerson) (Snapshot, error) {
	if len(rows) < MinRecords {
		return Snapshot{}, fmt.Errorf("%w: have %d rows, need at least %d", ErrInsufficientData, len(rows), MinRecords)
	}

	snap := Snapshot{
		TotalRecords:   len(rows),
		ValidRecords:   countValidRecords(rows),
		Completeness:   make(map[string]float64, len(ScoredFields)),
		Uniqueness:     make(map[string]float64, len(ScoredFields)),
		FormatValidity: make(map[string]float64, len(ScoredFields)),
		PIIMasking:     piiMaskingRatio(rows),
	}
	for _, field := range ScoredFields {
		snap.Completeness[field] = completeness(rows, field)
		snap.Uniqueness[field] = uniqueness(rows, field)
		snap.FormatValidity[field] = formatValidity(rows, field)
	}
	snap.OverallScore = s.overallScore(snap)

	if s.recorder != nil {
		s.recorder.RecordSnapshot(snap)
	}
	return snap, nil
}

// overallScore is a weighted average where each weighted term is the mean
// across its per-field ratios. An empty ratio set contributes zero and is
// logged as a warning condition rather than crashing the computation.
func (s *Scorer) overallScore(snap Snapshot) float64 {
	score := snap.PIIMasking * weightPIIMasking
	for _, component := range []struct {
		name   string
		ratios map[string]float64
		weight float64
	}{
		{"completeness", snap.Completeness, weightCompleteness},
		{"uniqueness", snap.Uniqueness, weightUniqueness},
		{"format_validity", snap.FormatValidity, weightFormat},
	} {
		if len(component.ratios) == 0 {
			s.logger.Warn("empty ratio set in quality score", "component", component.name)
			continue
		}
		score += mean(component.ratios) * component.weight
	}
	return score
}

// completeness is the fraction of rows with a non-empty value.
func completeness(rows []person.AnonymizedPerson, field string) float64 {
	if len(rows) == 0 {
		return 0
	}
	value := fieldAccessors[field]
	present := 0
	for _, row := range rows {
		if value(row) != "" {
			present++
		}
	}
	return float64(present) / float64(len(rows))
}

// uniqueness is distinct non-empty values over non-empty values, zero when
// no value is present.
func uniqueness(rows []person.AnonymizedPerson, field string) float64 {
	value := fieldAccessors[field]
	distinct := make(map[string]struct{})
	present := 0
	for _, row := range rows {
		if v := value(row); v != "" {
			present++
			distinct[v] = struct{}{}
		}
	}
	if present == 0 {
		return 0
	}
	return float64(len(distinct)) / float64(present)
}

// formatValidity is the fraction of rows whose value passes the
// field-specific format check. Fields without a defined format score zero;
// the checker is explicit about what it knows how to validate.
func formatValidity(rows []person.AnonymizedPerson, field string) float64 {
	if len(rows) == 0 {
		return 0
	}
	value := fieldAccessors[field]
	valid := 0
	for _, row := range rows {
		if ValidFormat(field, value(row)) {
			valid++
		}
	}
	return float64(valid) / float64(len(rows))
}

// ValidFormat reports whether a value is well formed for the given scored
// field. Fields without a defined format never validate.
func ValidFormat(field, value string) bool {
	switch field {
	case "age_group":
		match := ageGroupPattern.FindStringSubmatch(value)
		if match == nil {
			return false
		}
		low, lowErr := strconv.Atoi(match[1])
		high, highErr := strconv.Atoi(match[2])
		return lowErr == nil && highErr == nil && low <= high
	case "email_provider":
		return providerPattern.MatchString(value)
	case "country":
		return value != "" && !numericPattern.MatchString(value)
	default:
		return false
	}
}

// piiMaskingRatio is the fraction of rows where every masked field carries
// the sentinel and the masking flag is set. A flagged row with an unmasked
// field is a violation and lowers the ratio.
func piiMaskingRatio(rows []person.AnonymizedPerson) float64 {
	if len(rows) == 0 {
		return 0
	}
	masked := 0
	for _, row := range rows {
		if rowFullyMasked(row) {
			masked++
		}
	}
	return float64(masked) / float64(len(rows))
}

func rowFullyMasked(row person.AnonymizedPerson) bool {
	if !row.LocationMasked {
		return false
	}
	for _, value := range []string{row.Firstname, row.Lastname, row.Phone, row.City, row.Street, row.Zipcode} {
		if value != anonymize.Sentinel {
			return false
		}
	}
	return true
}

// countValidRecords counts rows that pass every check at once: all scored
// fields present, a well-formed age group, and full PII masking.
func countValidRecords(rows []person.AnonymizedPerson) int {
	valid := 0
	for _, row := range rows {
		if !rowFullyMasked(row) {
			continue
		}
		complete := true
		for _, field := range ScoredFields {
			if fieldAccessors[field](row) == "" {
				complete = false
				break
			}
		}
		if complete && ValidFormat("age_group", row.AgeGroup) {
			valid++
		}
	}
	return valid
}

func mean(ratios map[string]float64) float64 {
	sum := 0.0
	for _, v := range ratios {
		sum += v
	}
	return sum / float64(len(ratios))
}

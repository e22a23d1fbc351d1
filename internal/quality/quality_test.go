package quality

import (
	"errors"
	"math"
	"testing"

	"personpipe/internal/anonymize"
	"personpipe/internal/person"
)

func maskedRow() person.AnonymizedPerson {
	return person.AnonymizedPerson{
		Firstname:      anonymize.Sentinel,
		Lastname:       anonymize.Sentinel,
		EmailProvider:  "gmail.com",
		Phone:          anonymize.Sentinel,
		AgeGroup:       "[30-39]",
		Gender:         "male",
		Country:        "Germany",
		City:           anonymize.Sentinel,
		Street:         anonymize.Sentinel,
		Zipcode:        anonymize.Sentinel,
		LocationMasked: true,
	}
}

func newScorer() *Scorer {
	return NewScorer(nil, nil)
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestScoreInsufficientData(t *testing.T) {
	scorer := newScorer()
	for _, rows := range [][]person.AnonymizedPerson{nil, {maskedRow()}} {
		_, err := scorer.Score(rows)
		if !errors.Is(err, ErrInsufficientData) {
			t.Errorf("Score(%d rows) error = %v, want ErrInsufficientData", len(rows), err)
		}
	}
}

func TestScoreIdenticalRows(t *testing.T) {
	rows := []person.AnonymizedPerson{maskedRow(), maskedRow()}
	snap, err := newScorer().Score(rows)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}

	for _, field := range ScoredFields {
		approx(t, "completeness["+field+"]", snap.Completeness[field], 1.0)
		approx(t, "uniqueness["+field+"]", snap.Uniqueness[field], 0.5)
	}
	approx(t, "format[age_group]", snap.FormatValidity["age_group"], 1.0)
	approx(t, "format[email_provider]", snap.FormatValidity["email_provider"], 1.0)
	approx(t, "format[country]", snap.FormatValidity["country"], 1.0)
	approx(t, "format[gender]", snap.FormatValidity["gender"], 0.0)
	approx(t, "pii_masking", snap.PIIMasking, 1.0)

	// completeness 1.0*0.4 + uniqueness 0.5*0.3 + pii 1.0*0.2 + format 0.75*0.1
	approx(t, "overall", snap.OverallScore, 0.825)

	if snap.TotalRecords != 2 || snap.ValidRecords != 2 {
		t.Errorf("totals = %d/%d, want 2/2", snap.ValidRecords, snap.TotalRecords)
	}
}

func TestScoreUniquenessVariedField(t *testing.T) {
	a := maskedRow()
	b := maskedRow()
	c := maskedRow()
	b.Country = "France"
	c.Country = "Japan"

	snap, err := newScorer().Score([]person.AnonymizedPerson{a, b, c})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	approx(t, "uniqueness[country]", snap.Uniqueness["country"], 1.0)
	approx(t, "uniqueness[gender]", snap.Uniqueness["gender"], 1.0/3.0)
}

func TestScoreCompletenessIgnoresEmptyValues(t *testing.T) {
	a := maskedRow()
	b := maskedRow()
	b.EmailProvider = ""

	snap, err := newScorer().Score([]person.AnonymizedPerson{a, b})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	approx(t, "completeness[email_provider]", snap.Completeness["email_provider"], 0.5)
	// Uniqueness denominator is the non-empty count, not the row count.
	approx(t, "uniqueness[email_provider]", snap.Uniqueness["email_provider"], 1.0)
	if snap.ValidRecords != 1 {
		t.Errorf("ValidRecords = %d, want 1", snap.ValidRecords)
	}
}

func TestScorePIIViolationLowersRatio(t *testing.T) {
	good := maskedRow()
	leaky := maskedRow()
	leaky.Street = "1 Main St" // flag still set: a violation, not a pass

	snap, err := newScorer().Score([]person.AnonymizedPerson{good, leaky})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	approx(t, "pii_masking", snap.PIIMasking, 0.5)
	if snap.ValidRecords != 1 {
		t.Errorf("ValidRecords = %d, want 1", snap.ValidRecords)
	}
}

func TestScoreUnflaggedRowNotMasked(t *testing.T) {
	good := maskedRow()
	unflagged := maskedRow()
	unflagged.LocationMasked = false

	snap, err := newScorer().Score([]person.AnonymizedPerson{good, unflagged})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	approx(t, "pii_masking", snap.PIIMasking, 0.5)
}

func TestValidFormat(t *testing.T) {
	cases := []struct {
		field string
		value string
		want  bool
	}{
		{"age_group", "[30-39]", true},
		{"age_group", "[0-9]", true},
		{"age_group", "[40-39]", false},
		{"age_group", "[30-39", false},
		{"age_group", "30-39", false},
		{"age_group", "[a-b]", false},
		{"email_provider", "gmail.com", true},
		{"email_provider", "mail.co.uk", true},
		{"email_provider", "nodot", false},
		{"email_provider", "host.x", false},
		{"country", "Germany", true},
		{"country", "", false},
		{"country", "12345", false},
		{"gender", "male", false},
	}
	for _, tc := range cases {
		if got := ValidFormat(tc.field, tc.value); got != tc.want {
			t.Errorf("ValidFormat(%q, %q) = %v, want %v", tc.field, tc.value, got, tc.want)
		}
	}
}

type captureRecorder struct {
	snapshots []Snapshot
}

func (r *captureRecorder) RecordSnapshot(snap Snapshot) {
	r.snapshots = append(r.snapshots, snap)
}

func TestScoreExportsSnapshot(t *testing.T) {
	recorder := &captureRecorder{}
	scorer := NewScorer(nil, recorder)

	if _, err := scorer.Score([]person.AnonymizedPerson{maskedRow(), maskedRow()}); err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if len(recorder.snapshots) != 1 {
		t.Fatalf("recorder received %d snapshots, want 1", len(recorder.snapshots))
	}
	if recorder.snapshots[0].TotalRecords != 2 {
		t.Errorf("recorded TotalRecords = %d, want 2", recorder.snapshots[0].TotalRecords)
	}
}

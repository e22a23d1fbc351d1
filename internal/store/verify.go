package store

import (
	"context"
	"fmt"

	"personpipe/internal/anonymize"
	"personpipe/internal/person"
	"personpipe/internal/quality"
)

// VerifyIssue names one failed storage check and how many rows it affects.
type VerifyIssue struct {
	Check string
	Rows  int
}

// VerifyReport summarizes the post-storage integrity checks.
type VerifyReport struct {
	TotalRecords int
	Issues       []VerifyIssue
}

// OK reports whether the stored dataset passed every check.
func (r VerifyReport) OK() bool {
	return r.TotalRecords > 0 && len(r.Issues) == 0
}

// Verify confirms that stored data meets the pipeline's integrity
// contract: required fields present, well-formed age groups, and no
// unmasked PII on rows flagged as masked.
func (s *Store) Verify(ctx context.Context) (VerifyReport, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return VerifyReport{}, fmt.Errorf("verify: %w", err)
	}

	report := VerifyReport{TotalRecords: len(snapshot)}
	if len(snapshot) == 0 {
		report.Issues = append(report.Issues, VerifyIssue{Check: "dataset is empty"})
		return report, nil
	}

	var nullRows, formatRows, piiRows int
	for _, row := range snapshot {
		if row.EmailProvider == "" || row.Country == "" || row.AgeGroup == "" || row.Gender == "" {
			nullRows++
		}
		if row.AgeGroup != "" && !quality.ValidFormat("age_group", row.AgeGroup) {
			formatRows++
		}
		if row.LocationMasked && !fullyMasked(row) {
			piiRows++
		}
	}

	if nullRows > 0 {
		report.Issues = append(report.Issues, VerifyIssue{Check: "missing values in required fields", Rows: nullRows})
	}
	if formatRows > 0 {
		report.Issues = append(report.Issues, VerifyIssue{Check: "invalid age group format", Rows: formatRows})
	}
	if piiRows > 0 {
		report.Issues = append(report.Issues, VerifyIssue{Check: "unmasked PII on masked rows", Rows: piiRows})
	}
	return report, nil
}

func fullyMasked(row person.AnonymizedPerson) bool {
	for _, value := range []string{row.Firstname, row.Lastname, row.Phone, row.City, row.Street, row.Zipcode} {
		if value != anonymize.Sentinel {
			return false
		}
	}
	return true
}

package store

import (
	"context"
	"testing"

	"personpipe/internal/anonymize"
	"personpipe/internal/person"
	"personpipe/internal/testsupport"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

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

func TestOpenIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := Open(cfg)
	if err != nil {
		t.Fatalf("first Open returned error: %v", err)
	}
	if _, err := first.InsertPersons(context.Background(), []person.AnonymizedPerson{maskedRow()}); err != nil {
		t.Fatalf("InsertPersons returned error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	second, err := Open(cfg)
	if err != nil {
		t.Fatalf("second Open returned error: %v", err)
	}
	defer second.Close()

	count, err := second.Count(context.Background())
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != 1 {
		t.Errorf("Count = %d after reopen, want 1", count)
	}
}

func TestInsertAndSnapshotRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	full := maskedRow()
	sparse := maskedRow()
	sparse.EmailProvider = ""
	sparse.AgeGroup = ""
	sparse.Country = ""

	inserted, err := s.InsertPersons(ctx, []person.AnonymizedPerson{full, sparse})
	if err != nil {
		t.Fatalf("InsertPersons returned error: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("InsertPersons = %d, want 2", inserted)
	}

	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("Snapshot returned %d rows, want 2", len(snapshot))
	}
	if snapshot[0] != full {
		t.Errorf("first row = %+v, want %+v", snapshot[0], full)
	}
	// NULL columns come back as empty strings.
	if snapshot[1] != sparse {
		t.Errorf("second row = %+v, want %+v", snapshot[1], sparse)
	}
}

func TestInsertPersonsEmptySlice(t *testing.T) {
	s := openStore(t)

	inserted, err := s.InsertPersons(context.Background(), nil)
	if err != nil {
		t.Fatalf("InsertPersons returned error: %v", err)
	}
	if inserted != 0 {
		t.Errorf("InsertPersons = %d, want 0", inserted)
	}
}

func TestRecordRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	run := NewRun("female", 100)
	if run.ID == "" {
		t.Fatal("NewRun produced an empty ID")
	}
	run.Inserted = 97
	run.Status = "success"

	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun returned error: %v", err)
	}

	var gender string
	var inserted int
	err := s.db.QueryRowContext(ctx,
		"SELECT gender, inserted FROM ingest_runs WHERE id = ?", run.ID,
	).Scan(&gender, &inserted)
	if err != nil {
		t.Fatalf("read back run: %v", err)
	}
	if gender != "female" || inserted != 97 {
		t.Errorf("run row = (%s, %d), want (female, 97)", gender, inserted)
	}
}

func TestVerifyCleanDataset(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.InsertPersons(ctx, []person.AnonymizedPerson{maskedRow(), maskedRow()}); err != nil {
		t.Fatalf("InsertPersons returned error: %v", err)
	}

	report, err := s.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !report.OK() {
		t.Errorf("Verify reported issues on a clean dataset: %+v", report.Issues)
	}
	if report.TotalRecords != 2 {
		t.Errorf("TotalRecords = %d, want 2", report.TotalRecords)
	}
}

func TestVerifyEmptyDataset(t *testing.T) {
	s := openStore(t)

	report, err := s.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if report.OK() {
		t.Error("Verify passed an empty dataset")
	}
}

func TestVerifyFlagsIssues(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	missing := maskedRow()
	missing.Country = ""
	badFormat := maskedRow()
	badFormat.AgeGroup = "30-39"
	leaky := maskedRow()
	leaky.Street = "1 Main St"

	if _, err := s.InsertPersons(ctx, []person.AnonymizedPerson{maskedRow(), missing, badFormat, leaky}); err != nil {
		t.Fatalf("InsertPersons returned error: %v", err)
	}

	report, err := s.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if report.OK() {
		t.Fatal("Verify passed a dataset with known defects")
	}

	got := make(map[string]int, len(report.Issues))
	for _, issue := range report.Issues {
		got[issue.Check] = issue.Rows
	}
	want := map[string]int{
		"missing values in required fields": 1,
		"invalid age group format":          1,
		"unmasked PII on masked rows":       1,
	}
	for check, rows := range want {
		if got[check] != rows {
			t.Errorf("check %q affected %d rows, want %d", check, got[check], rows)
		}
	}
}

func TestAnalytics(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	row := func(provider, country, ageGroup string) person.AnonymizedPerson {
		p := maskedRow()
		p.EmailProvider = provider
		p.Country = country
		p.AgeGroup = ageGroup
		return p
	}
	rows := []person.AnonymizedPerson{
		row("gmail.com", "Germany", "[60-69]"),
		row("gmail.com", "Germany", "[30-39]"),
		row("yahoo.com", "Germany", "[70-79]"),
		row("gmail.com", "France", "[80-89]"),
		row("gmail.com", "Japan", "[20-29]"),
		row("gmail.com", "Japan", "[50-59]"),
		row("gmail.com", "Japan", "[60-69]"),
	}
	if _, err := s.InsertPersons(ctx, rows); err != nil {
		t.Fatalf("InsertPersons returned error: %v", err)
	}

	share, err := s.ProviderShareInCountry(ctx, "gmail.com", "Germany")
	if err != nil {
		t.Fatalf("ProviderShareInCountry returned error: %v", err)
	}
	if share.Matched != 2 || share.Total != 3 {
		t.Errorf("share = %d/%d, want 2/3", share.Matched, share.Total)
	}
	if got := share.Share(); got < 0.66 || got > 0.67 {
		t.Errorf("Share() = %v, want ~0.667", got)
	}

	seniors, err := s.CountProviderAtLeastAge(ctx, "gmail.com", 60)
	if err != nil {
		t.Fatalf("CountProviderAtLeastAge returned error: %v", err)
	}
	if seniors != 3 {
		t.Errorf("seniors = %d, want 3", seniors)
	}

	top, err := s.TopCountriesByProvider(ctx, "gmail.com", 2)
	if err != nil {
		t.Fatalf("TopCountriesByProvider returned error: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("TopCountriesByProvider returned %d entries, want 2", len(top))
	}
	if top[0].Country != "Japan" || top[0].Count != 3 {
		t.Errorf("top[0] = %+v, want Japan/3", top[0])
	}
	if top[1].Country != "Germany" || top[1].Count != 2 {
		t.Errorf("top[1] = %+v, want Germany/2", top[1])
	}
}

func TestProviderShareEmptyCountry(t *testing.T) {
	s := openStore(t)

	share, err := s.ProviderShareInCountry(context.Background(), "gmail.com", "Atlantis")
	if err != nil {
		t.Fatalf("ProviderShareInCountry returned error: %v", err)
	}
	if share.Share() != 0 {
		t.Errorf("Share() = %v on empty country, want 0", share.Share())
	}
}

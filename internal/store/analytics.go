package store

import (
	"context"
	"fmt"
)

// CountryCount pairs a country with the number of matching rows.
type CountryCount struct {
	Country string
	Count   int64
}

// ProviderShare describes how strongly one email provider is represented
// inside a single country.
type ProviderShare struct {
	Provider string
	Country  string
	Matched  int64
	Total    int64
}

// Share returns the matched fraction, zero when the country has no rows.
func (p ProviderShare) Share() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Matched) / float64(p.Total)
}

// ProviderShareInCountry reports what fraction of rows in a country use the
// given email provider.
func (s *Store) ProviderShareInCountry(ctx context.Context, provider, country string) (ProviderShare, error) {
	share := ProviderShare{Provider: provider, Country: country}
	err := s.db.QueryRowContext(ctx, `SELECT
        COUNT(CASE WHEN email_provider = ? THEN 1 END),
        COUNT(*)
    FROM persons WHERE country = ?`, provider, country).Scan(&share.Matched, &share.Total)
	if err != nil {
		return ProviderShare{}, fmt.Errorf("provider share in country: %w", err)
	}
	return share, nil
}

// CountProviderAtLeastAge counts rows on the given provider whose age group
// lower bound is at or above the threshold. Rows without an age group are
// excluded.
func (s *Store) CountProviderAtLeastAge(ctx context.Context, provider string, minAge int) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons
    WHERE email_provider = ?
      AND age_group IS NOT NULL
      AND CAST(substr(age_group, 2, instr(age_group, '-') - 2) AS INTEGER) >= ?`,
		provider, minAge).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count provider at least age: %w", err)
	}
	return count, nil
}

// TopCountriesByProvider lists the countries with the most rows on the given
// provider, largest first, capped at limit.
func (s *Store) TopCountriesByProvider(ctx context.Context, provider string, limit int) ([]CountryCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT country, COUNT(*) AS n FROM persons
    WHERE email_provider = ? AND country IS NOT NULL
    GROUP BY country ORDER BY n DESC, country ASC LIMIT ?`, provider, limit)
	if err != nil {
		return nil, fmt.Errorf("top countries by provider: %w", err)
	}
	defer rows.Close()

	var result []CountryCount
	for rows.Next() {
		var cc CountryCount
		if err := rows.Scan(&cc.Country, &cc.Count); err != nil {
			return nil, fmt.Errorf("top countries by provider: scan: %w", err)
		}
		result = append(result, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top countries by provider: iterate: %w", err)
	}
	return result, nil
}

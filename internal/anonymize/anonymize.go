// Package anonymize implements the pure transform from raw person records
// to anonymized records. The transform is deterministic for a fixed
// reference time and performs no I/O.
package anonymize

import (
	"fmt"
	"strings"
	"time"

	"personpipe/internal/person"
)

// Sentinel is the fixed replacement value written into masked PII fields.
const Sentinel = "****"

const birthdayLayout = "2006-01-02"

// Person converts a raw record into its anonymized form. The reference
// time fixes the age computation so the transform stays deterministic.
// The only failure path is a birthday that is not a valid calendar date.
func Person(raw person.RawPerson, at time.Time) (person.AnonymizedPerson, error) {
	group, err := AgeGroup(raw.Birthday, at)
	if err != nil {
		return person.AnonymizedPerson{}, err
	}
	return person.AnonymizedPerson{
		Firstname:      Sentinel,
		Lastname:       Sentinel,
		EmailProvider:  EmailProvider(raw.Email),
		Phone:          Sentinel,
		AgeGroup:       group,
		Gender:         raw.Gender,
		Country:        raw.Address.Country,
		City:           Sentinel,
		Street:         Sentinel,
		Zipcode:        Sentinel,
		LocationMasked: true,
	}, nil
}

// EmailProvider returns the domain part of an email address, or the empty
// string when the address carries no "@".
func EmailProvider(email string) string {
	idx := strings.LastIndex(email, "@")
	if idx < 0 || idx == len(email)-1 {
		return ""
	}
	return email[idx+1:]
}

// AgeGroup buckets a birthday into an inclusive decade range such as
// [30-39]. Age uses exact month/day-aware subtraction, not year difference.
func AgeGroup(birthday string, at time.Time) (string, error) {
	born, err := time.Parse(birthdayLayout, birthday)
	if err != nil {
		return "", &person.MalformedFieldError{Field: "birthday", Value: birthday, Err: err}
	}
	age := at.Year() - born.Year()
	if at.Month() < born.Month() || (at.Month() == born.Month() && at.Day() < born.Day()) {
		age--
	}
	decade := floorDecade(age)
	return fmt.Sprintf("[%d-%d]", decade, decade+9), nil
}

// Verify confirms that a constructed record really carries the masking
// sentinel in every PII field and has the masking flag set. The invariant
// is checked, not assumed.
func Verify(anon person.AnonymizedPerson) error {
	if !anon.LocationMasked {
		return fmt.Errorf("anonymized record missing location_masked flag")
	}
	for field, value := range map[string]string{
		"firstname": anon.Firstname,
		"lastname":  anon.Lastname,
		"phone":     anon.Phone,
		"city":      anon.City,
		"street":    anon.Street,
		"zipcode":   anon.Zipcode,
	} {
		if value != Sentinel {
			return fmt.Errorf("anonymized record leaks field %q", field)
		}
	}
	return nil
}

// floorDecade rounds toward negative infinity so ages below zero never
// round up into the [0-9] bucket.
func floorDecade(age int) int {
	decade := age / 10 * 10
	if age < 0 && age%10 != 0 {
		decade -= 10
	}
	return decade
}

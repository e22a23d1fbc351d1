// Package person defines the record types that flow through the pipeline
// and the typed decode of the upstream wire shape. Raw records exist only
// between fetch and anonymization; anonymized records are what the store
// persists.
package person

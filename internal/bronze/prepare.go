// Package bronze tags raw records with bronze-layer ingestion metadata.
package bronze

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/tinytelemetry/bronze/internal/model"
)

// Clock supplies the ingestion timestamp.
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies batch identifiers.
type IDGenerator interface {
	NewID() string
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// IDFunc adapts a function to IDGenerator.
type IDFunc func() string

func (f IDFunc) NewID() string { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.NewString() }

// Preparer converts record batches into bronze rows.
// The zero value is not usable; construct with NewPreparer.
type Preparer struct {
	clock Clock
	ids   IDGenerator
}

// Option configures a Preparer.
type Option func(*Preparer)

// WithClock overrides the system clock.
func WithClock(c Clock) Option {
	return func(p *Preparer) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithIDGenerator overrides the random UUID batch id source.
func WithIDGenerator(g IDGenerator) Option {
	return func(p *Preparer) {
		if g != nil {
			p.ids = g
		}
	}
}

// NewPreparer creates a Preparer using the system clock and UUIDv4 batch ids
// unless overridden.
func NewPreparer(opts ...Option) *Preparer {
	p := &Preparer{
		clock: systemClock{},
		ids:   uuidGenerator{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultPreparer = NewPreparer()

// Prepare tags records using the system clock and a random batch id.
func Prepare(records []model.Record, source string) ([]model.BronzeRow, error) {
	return defaultPreparer.Prepare(records, source)
}

// Prepare returns one row per record, in input order. Every row carries the
// same batch id and UTC timestamp, both captured once before serialization.
// If any record fails to serialize, no rows are returned.
func (p *Preparer) Prepare(records []model.Record, source string) ([]model.BronzeRow, error) {
	batchID := p.ids.NewID()
	ingestedAt := p.clock.Now().UTC()

	rows := make([]model.BronzeRow, 0, len(records))
	for i, record := range records {
		if err := checkEncodable(reflect.ValueOf(record), 0); err != nil {
			return nil, &SerializationError{Index: i, Err: err}
		}
		raw, err := json.Marshal(record)
		if err != nil {
			return nil, &SerializationError{Index: i, Err: err}
		}
		rows = append(rows, model.BronzeRow{
			RawJSON:    string(raw),
			IngestedAt: ingestedAt,
			Source:     source,
			BatchID:    batchID,
		})
	}
	return rows, nil
}

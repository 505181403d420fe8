// Package chart aggregates registrant counts for the attendance bar chart.
package chart

import (
	"context"
	"fmt"
)

// Counter counts registrants, optionally only those marked present.
type Counter interface {
	CountStudents(ctx context.Context, attendedOnly bool) (int, error)
	CountGuests(ctx context.Context, attendedOnly bool) (int, error)
}

// Bar is one category of the chart.
type Bar struct {
	Kategori string `json:"kategori"`
	Total    int    `json:"total"`
	Hadir    int    `json:"hadir"`
}

// Aggregator builds the attendance summary from a Counter.
type Aggregator struct {
	counter Counter
}

// NewAggregator creates an aggregator over counter.
func NewAggregator(counter Counter) *Aggregator {
	return &Aggregator{counter: counter}
}

// Summary runs the four counts in order and returns the Mahasiswa and Tamu
// bars. Counts are read fresh on every call.
func (a *Aggregator) Summary(ctx context.Context) ([]Bar, error) {
	students, err := a.counter.CountStudents(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("count mahasiswa: %w", err)
	}
	studentsIn, err := a.counter.CountStudents(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("count mahasiswa hadir: %w", err)
	}
	guests, err := a.counter.CountGuests(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("count tamu: %w", err)
	}
	guestsIn, err := a.counter.CountGuests(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("count tamu hadir: %w", err)
	}
	return []Bar{
		{Kategori: "Mahasiswa", Total: students, Hadir: studentsIn},
		{Kategori: "Tamu", Total: guests, Hadir: guestsIn},
	}, nil
}

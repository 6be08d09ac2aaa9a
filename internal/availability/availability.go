// Package availability derives the bookable slots of each treatment on a
// date: a treatment's full slot list minus the slots already booked for it
// on that date.  Compute is the pure form; Engine answers the same question
// against the store either by joining in process or by letting the store
// run the anti-join.
package availability

import (
	"context"
	"fmt"

	"github.com/iliyamo/doctors-appointment/internal/model"
)

// Compute returns one entry per offering, in input order, carrying the
// offering's slots minus the slots of bookings that name its treatment.
// Slot order follows the offering.  bookings are expected to be restricted
// to a single date already; their dates are not inspected.  Neither input
// is modified.
func Compute(offerings []model.Treatment, bookings []model.Booking) []model.Treatment {
	booked := make(map[string]map[string]struct{}, len(offerings))
	for _, b := range bookings {
		set, ok := booked[b.Treatment]
		if !ok {
			set = make(map[string]struct{})
			booked[b.Treatment] = set
		}
		set[b.Slot] = struct{}{}
	}

	out := make([]model.Treatment, 0, len(offerings))
	for _, o := range offerings {
		left := o
		left.Slots = make([]string, 0, len(o.Slots))
		taken := booked[o.Name]
		for _, slot := range o.Slots {
			if _, ok := taken[slot]; ok {
				continue
			}
			left.Slots = append(left.Slots, slot)
		}
		out = append(out, left)
	}
	return out
}

// OfferingStore reads the treatment catalog, in full or with the store
// already subtracting the slots booked on a date.
type OfferingStore interface {
	List(ctx context.Context) ([]model.Treatment, error)
	ListAvailable(ctx context.Context, date *string) ([]model.Treatment, error)
}

// BookingStore lists bookings whose appointment date equals date.  A nil
// date matches no booking.
type BookingStore interface {
	ListByDate(ctx context.Context, date *string) ([]model.Booking, error)
}

// Engine answers availability queries against the store.  Join and
// Aggregate return identical results for the same store contents.
type Engine struct {
	offerings OfferingStore
	bookings  BookingStore
}

// NewEngine wires an Engine to its stores.
func NewEngine(offerings OfferingStore, bookings BookingStore) *Engine {
	return &Engine{offerings: offerings, bookings: bookings}
}

// Join fetches the catalog and the bookings of date, then subtracts in
// process.  A nil date subtracts nothing.
func (e *Engine) Join(ctx context.Context, date *string) ([]model.Treatment, error) {
	offerings, err := e.offerings.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list treatments: %w", err)
	}
	bookings, err := e.bookings.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return Compute(offerings, bookings), nil
}

// Aggregate lets the store compute availability in a single query.
func (e *Engine) Aggregate(ctx context.Context, date *string) ([]model.Treatment, error) {
	out, err := e.offerings.ListAvailable(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("aggregate availability: %w", err)
	}
	return out, nil
}

package pricing

import "servicehub/pkg/model"

// UnitStrategy turns a selection into the number of billable units.
type UnitStrategy func(in Input) int

var strategies = map[string]UnitStrategy{
	model.UnitNight:   nights,
	model.UnitSession: single,
	model.UnitProject: single,
	model.UnitPerson:  perPerson,
	model.UnitHour:    perQuantity,
}

// UnitCount applies the named strategy of the input's unit. Unknown units bill a single unit.
func UnitCount(in Input) int {
	strategy, ok := strategies[in.Unit]
	if !ok {
		strategy = single
	}
	return strategy(in)
}

func nights(in Input) int {
	if in.Start.IsZero() || !in.End.After(in.Start) {
		return 0
	}
	return in.Start.DaysUntil(in.End)
}

func single(Input) int {
	return 1
}

func perPerson(in Input) int {
	n := in.Quantity
	if n <= 0 {
		n = in.Guests
	}
	return max(n, 1)
}

func perQuantity(in Input) int {
	return max(in.Quantity, 1)
}

// Package pricing computes booking quotes. Amounts are carried as decimals and only converted to
// float64 for the returned quote.
package pricing

import (
	"github.com/shopspring/decimal"

	"servicehub/pkg/model"
	"servicehub/pkg/schema"
)

// Input is everything a quote depends on. Flat fees and holds of zero are omitted from the quote.
type Input struct {
	BasePrice float64
	Currency  string
	Unit      string

	Start    model.Date
	End      model.Date
	Quantity int
	Guests   int

	Discount *model.Discount

	AddOns         []model.AddOn
	SelectedAddOns []string

	TravelFee    float64
	CleaningFee  float64
	EmergencyPct float64
	// Emergency is set only when the category supports it and the guest asked for it.
	Emergency bool

	Deposit         float64
	SecurityDeposit float64

	PackageSessions int
	PackagePrice    *float64
}

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Calculate prices the input: unit count, subtotal, discount, add-ons, surcharges and a total rounded
// half-up to cents. Refundable holds and the package alternative are reported but never added.
func Calculate(in Input) model.Quote {
	count := UnitCount(in)
	base := nonNegative(in.BasePrice)
	subtotal := base.Mul(decimal.NewFromInt(int64(count)))

	discounted, discountAmount := applyDiscount(subtotal, in.Discount)

	quote := model.Quote{
		Currency:           in.Currency,
		Unit:               in.Unit,
		UnitCount:          count,
		BasePrice:          money(base),
		Subtotal:           money(subtotal),
		DiscountAmount:     money(discountAmount),
		DiscountedSubtotal: money(discounted),
	}
	if in.Discount != nil && discountAmount.IsPositive() {
		quote.DiscountName = in.Discount.Name
	}

	addOnTotal := decimal.Zero
	selected := make(map[string]bool, len(in.SelectedAddOns))
	for _, id := range in.SelectedAddOns {
		selected[id] = true
	}
	for _, a := range in.AddOns {
		if !a.Required && !selected[a.ID] {
			continue
		}
		price := nonNegative(a.Price)
		addOnTotal = addOnTotal.Add(price)
		quote.AddOns = append(quote.AddOns, model.Charge{Name: a.Name, Amount: money(price)})
	}
	quote.AddOnTotal = money(addOnTotal)

	surchargeTotal := decimal.Zero
	addSurcharge := func(name string, amount decimal.Decimal) {
		if !amount.IsPositive() {
			return
		}
		surchargeTotal = surchargeTotal.Add(amount)
		quote.Surcharges = append(quote.Surcharges, model.Charge{Name: name, Amount: money(amount)})
	}
	addSurcharge("Travel fee", nonNegative(in.TravelFee))
	addSurcharge("Cleaning fee", nonNegative(in.CleaningFee))
	if in.Emergency {
		pct := clampPercent(decimal.NewFromFloat(in.EmergencyPct))
		addSurcharge("Emergency surcharge", discounted.Mul(pct).Div(hundred))
	}
	quote.SurchargeTotal = money(surchargeTotal)

	quote.Total = money(discounted.Add(addOnTotal).Add(surchargeTotal))

	if hold := nonNegative(in.SecurityDeposit); hold.IsPositive() {
		quote.RefundableHolds = append(quote.RefundableHolds, model.Charge{Name: "Security deposit", Amount: money(hold)})
	}
	if hold := nonNegative(in.Deposit); hold.IsPositive() {
		quote.RefundableHolds = append(quote.RefundableHolds, model.Charge{Name: "Deposit", Amount: money(hold)})
	}

	if in.PackageSessions > 0 && in.PackagePrice != nil {
		total := money(nonNegative(*in.PackagePrice))
		quote.PackageSessions = in.PackageSessions
		quote.PackageTotal = &total
	}

	return quote
}

func applyDiscount(subtotal decimal.Decimal, d *model.Discount) (discounted, amount decimal.Decimal) {
	if d == nil {
		return subtotal, decimal.Zero
	}

	value := nonNegative(d.Value)
	switch d.Type {
	case model.DiscountPercentage:
		discounted = subtotal.Mul(one.Sub(clampPercent(value).Div(hundred)))
	case model.DiscountFlat:
		discounted = subtotal.Sub(value)
	default:
		return subtotal, decimal.Zero
	}

	if discounted.IsNegative() {
		discounted = decimal.Zero
	}
	return discounted, subtotal.Sub(discounted)
}

// ActiveDiscount returns the first discount active on the given date.
func ActiveDiscount(discounts []model.Discount, on model.Date) *model.Discount {
	for i := range discounts {
		if discounts[i].IsActive(on) {
			return &discounts[i]
		}
	}
	return nil
}

// InputFor derives the pricing input from a listing and a guest selection.
func InputFor(item *model.ServiceItem, form schema.FormSchema, sel model.BookingSelection) Input {
	unit := item.Pricing.Unit
	if unit == "" {
		unit = form.Unit
	}

	in := Input{
		BasePrice:       item.Pricing.BasePrice,
		Currency:        item.Pricing.Currency,
		Unit:            unit,
		Start:           sel.StartDate,
		End:             sel.EndDate,
		Quantity:        sel.Quantity,
		Guests:          sel.Guests,
		AddOns:          item.AddOns,
		SelectedAddOns:  sel.AddOnIDs,
		TravelFee:       model.Amount(item.Pricing.TravelFee),
		CleaningFee:     model.Amount(item.Pricing.CleaningFee),
		EmergencyPct:    model.Amount(item.Pricing.EmergencySurchargePct),
		Emergency:       sel.Emergency && form.SupportsEmergency,
		Deposit:         model.Amount(item.Pricing.Deposit),
		SecurityDeposit: model.Amount(item.Pricing.SecurityDeposit),
		PackageSessions: item.Pricing.PackageSessions,
		PackagePrice:    item.Pricing.PackagePrice,
	}
	if form.SupportsDiscounts {
		in.Discount = ActiveDiscount(item.Discounts, sel.StartDate)
	}
	return in
}

// Quote prices a selection for a listing using the listing's category schema.
func Quote(item *model.ServiceItem, sel model.BookingSelection) model.Quote {
	return Calculate(InputFor(item, schema.GetSchema(item.ServiceCategory), sel))
}

func nonNegative(v float64) decimal.Decimal {
	if v <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func clampPercent(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(hundred) {
		return hundred
	}
	return v
}

// money rounds half-up to cents. decimal.Round rounds half away from zero, which is half-up for
// the non-negative amounts used here.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

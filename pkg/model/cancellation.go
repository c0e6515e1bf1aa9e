package model

const (
	PolicyFlexible = "flexible"
	PolicyModerate = "moderate"
	PolicyStrict   = "strict"
	PolicyCustom   = "custom"
)

var policyDescriptions = map[string]string{
	PolicyFlexible: "Full refund if cancelled at least 24 hours before the start time.",
	PolicyModerate: "Full refund if cancelled at least 5 days before the start time, 50% refund up to 24 hours before.",
	PolicyStrict:   "50% refund if cancelled at least 7 days before the start time, no refund afterwards.",
}

// CancellationPolicy is either a named template or a custom refund percentage with a deadline
// expressed in hours before the booked start time.
type CancellationPolicy struct {
	Type             string   `json:"type" bson:"type" validate:"omitempty,oneof=flexible moderate strict custom"`
	Description      string   `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=1000"`
	RefundPercentage *float64 `json:"refund_percentage,omitempty" bson:"refund_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	DeadlineHours    *int     `json:"deadline_hours,omitempty" bson:"deadline_hours,omitempty" validate:"omitempty,gte=0,lte=8760"`
}

// Normalize fills in the template description. An empty policy becomes flexible.
func (p *CancellationPolicy) Normalize() {
	if p.Type == "" {
		p.Type = PolicyFlexible
	}
	if desc, ok := policyDescriptions[p.Type]; ok {
		p.Description = desc
	}
}

// RefundPercent returns the share of the paid total refunded when cancelling hoursBefore
// hours ahead of the booked start.
func (p CancellationPolicy) RefundPercent(hoursBefore float64) float64 {
	switch p.Type {
	case PolicyModerate:
		switch {
		case hoursBefore >= 120:
			return 100
		case hoursBefore >= 24:
			return 50
		}
		return 0
	case PolicyStrict:
		if hoursBefore >= 168 {
			return 50
		}
		return 0
	case PolicyCustom:
		if p.RefundPercentage == nil || p.DeadlineHours == nil {
			return 0
		}
		if hoursBefore >= float64(*p.DeadlineHours) {
			return *p.RefundPercentage
		}
		return 0
	default:
		if hoursBefore >= 24 {
			return 100
		}
		return 0
	}
}

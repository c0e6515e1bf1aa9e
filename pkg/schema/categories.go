package schema

import (
	"slices"
	"sort"
	"time"

	"servicehub/pkg/model"
)

const (
	HotelRoom       = "hotel-room"
	VacationRental  = "vacation-rental"
	Restaurant      = "restaurant"
	BeautySalon     = "beauty-salon"
	MobileBeauty    = "mobile-beauty"
	Tradesperson    = "tradesperson"
	FitnessTraining = "fitness-training"
	TourExperience  = "tour-experience"

	// Generic is the fallback for categories missing from the table.
	Generic = "generic"
)

var baseFields = []FieldDescriptor{
	{Name: "name", Kind: KindText, Required: true},
	{Name: "description", Kind: KindText, Required: true},
	{Name: "price", Kind: KindNumber, Required: true},
	{Name: "location", Kind: KindText, Required: true},
}

func withBase(fields ...FieldDescriptor) []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(baseFields)+len(fields))
	out = append(out, baseFields...)
	return append(out, fields...)
}

var (
	beautyServiceTypes = []string{"Haircut", "Coloring", "Styling", "Manicure", "Pedicure", "Facial", "Massage", "Makeup", "Waxing"}
	beautyDurations    = []string{"30 minutes", "45 minutes", "1 hour", "1.5 hours", "2 hours", "3 hours"}
	stylistLevels      = []string{"Junior", "Senior", "Master"}
)

var registry = map[string]FormSchema{
	HotelRoom: {
		Category: HotelRoom,
		Unit:     model.UnitNight,
		Fields: withBase(
			FieldDescriptor{Name: "roomType", Kind: KindSelect, Required: true},
			FieldDescriptor{Name: "bedType", Kind: KindSelect, Required: true},
			FieldDescriptor{Name: "maxOccupancy", Kind: KindNumber, Required: true},
			FieldDescriptor{Name: "roomSize", Kind: KindNumber},
			FieldDescriptor{Name: "checkInTime", Kind: KindTime},
			FieldDescriptor{Name: "checkOutTime", Kind: KindTime},
			FieldDescriptor{Name: "smokingAllowed", Kind: KindBoolean},
		),
		Options: map[string][]string{
			"roomType": {"Standard", "Deluxe", "Suite", "Family", "Presidential"},
			"bedType":  {"Single", "Double", "Queen", "King", "Twin"},
		},
		BlockedWeekdays:   []time.Weekday{time.Sunday},
		RequiresDates:     true,
		RequiresGuests:    true,
		SupportsDiscounts: true,
	},
	VacationRental: {
		Category: VacationRental,
		Unit:     model.UnitNight,
		Fields: withBase(
			FieldDescriptor{Name: "propertyType", Kind: KindSelect, Required: true},
			FieldDescriptor{Name: "bedrooms", Kind: KindNumber, Required: true},
			FieldDescriptor{Name: "bathrooms", Kind: KindNumber, Required: true},
			FieldDescriptor{Name: "maxGuests", Kind: KindNumber, Required: true},
			FieldDescriptor{Name: "checkInTime", Kind: KindTime},
			FieldDescriptor{Name: "houseRules", Kind: KindText},
			FieldDescriptor{Name: "petsAllowed", Kind: KindBoolean},
			FieldDescriptor{Name: "cleaningFee", Kind: KindNumber},
			FieldDescriptor{Name: "securityDeposit", Kind: KindNumber},
		),
		Options: map[string][]string{
			"propertyType": {"Apartment", "House", "Villa", "Cabin", "Cottage", "Loft"},
		},
		BlockedWeekdays: []time.Weekday{time.Sunday},
		RequiresDates:   true,
		RequiresGuests:  true,
	},
	Restaurant: {
		Category: Restaurant,
		Unit:     model.UnitPerson,
		Fields: withBase(
			FieldDescriptor{Name: "cuisineType", Kind: KindSelect, Required: true},
			FieldDescriptor{Name: "diningStyle", Kind: KindSelect, Required: true},
			FieldDescriptor{Name: "priceRange", Kind: KindSelect},
			FieldDescriptor{Name: "dressCode", Kind: KindSelect},
			FieldDescriptor{Name: "dietaryOptions", Kind: KindMultiSelect},
			FieldDescriptor{Name: "maxPartySize", Kind: KindNumber},
		),
		Options: map[string][]string{
			"cuisineType":    {"Italian", "French", "Japanese", "Chinese", "Indian", "Mexican", "Mediterranean", "American", "Thai", "Other"},
			"diningStyle":    {"Fine Dining", "Casual Dining", "Fast Casual", "Buffet", "Cafe"},
			"priceRange":     {"$", "$$", "$$$", "$$$$"},
			"dressCode":      {"Casual", "Smart Casual", "Business", "Formal"},
			"dietaryOptions": {"Vegetarian", "Vegan", "Gluten-Free", "Halal", "Kosher", "Nut-Free"},
		},
		SessionBased:   true,
		RequiresDates:  true,
		RequiresGuests: true,
	},
	BeautySalon: {
		Category: BeautySalon,
		Unit:     model.UnitSession,
		Fields: withBase(
			FieldDescriptor{Name: "serviceType", Kind: KindSelect, Required: true},
			FieldDescriptor{Name: "duration", Kind: KindSelect, Required: true},
			FieldDescriptor{Name: "stylistLevel", Kind: KindSelect},
			FieldDescriptor{Name: "genderFocus", Kind: KindSelect},
		),
		Options: map[string][]string{
			"serviceType":  beautyServiceTypes,
			"duration":     beautyDurations,
			"stylistLevel": stylistLevels,
			"genderFocus":  {"Unisex", "Women", "Men"},
		},
		SessionBased:  true,
		RequiresDates: true,
	},
	MobileBeauty: {
		Category: MobileBeauty,
		Unit:     model.UnitSession,
		Fields: withBase(
			FieldDescriptor{Name: "serviceType", Kind: KindSelect, Required: true},
			FieldDescriptor{Name: "duration", Kind: KindSelect, Required: true},
			FieldDescriptor{Name: "stylistLevel", Kind: KindSelect},
			FieldDescriptor{Name: "travelFee", Kind: KindNumber},
			FieldDescriptor{Name: "maxTravelDistance", Kind: KindNumber},
		),
		Options: map[string][]string{
			"serviceType":  beautyServiceTypes,
			"duration":     beautyDurations,
			"stylistLevel": stylistLevels,
		},
		Conditionals: []ConditionalRule{
			{Require: []string{"travelFee", "maxTravelDistance"}},
		},
		SessionBased:  true,
		RequiresDates: true,
	},
	Tradesperson: {
		Category: Tradesperson,
		Unit:     model.UnitProject,
		Fields: withBase(
			FieldDescriptor{Name: "tradeType", Kind: KindSelect, Required: true},
			FieldDescriptor{Name: "serviceArea", Kind: KindText, Required: true},
			FieldDescriptor{Name: "licenseNumber", Kind: KindText},
			FieldDescriptor{Name: "insured", Kind: KindBoolean},
			FieldDescriptor{Name: "emergencyService", Kind: KindBoolean},
			FieldDescriptor{Name: "emergencySurcharge", Kind: KindNumber},
			FieldDescriptor{Name: "travelFee", Kind: KindNumber},
		),
		Options: map[string][]string{
			"tradeType": {"Plumber", "Electrician", "Carpenter", "Painter", "Locksmith", "HVAC Technician", "Roofer", "Handyman"},
		},
		Conditionals: []ConditionalRule{
			{WhenField: "emergencyService", WhenValue: "true", Require: []string{"emergencySurcharge"}},
		},
		SessionBased:      true,
		RequiresDates:     true,
		SupportsEmergency: true,
	},
	FitnessTraining: {
		Category: FitnessTraining,
		Unit:     model.UnitSession,
		Fields: withBase(
			FieldDescriptor{Name: "trainingType", Kind: KindSelect, Required: true},
			FieldDescriptor{Name: "sessionFormat", Kind: KindSelect, Required: true},
			FieldDescriptor{Name: "skillLevel", Kind: KindSelect},
			FieldDescriptor{Name: "duration", Kind: KindSelect},
			FieldDescriptor{Name: "groupSize", Kind: KindNumber},
		),
		Options: map[string][]string{
			"trainingType":  {"Personal Training", "Yoga", "Pilates", "CrossFit", "Boxing", "Dance", "Martial Arts"},
			"sessionFormat": {"One-on-One", "Group Session", "Online"},
			"skillLevel":    {"Beginner", "Intermediate", "Advanced", "All Levels"},
			"duration":      {"30 minutes", "45 minutes", "1 hour", "1.5 hours"},
		},
		Conditionals: []ConditionalRule{
			{WhenField: "sessionFormat", WhenValue: "Group Session", Require: []string{"groupSize"}},
		},
		SessionBased:  true,
		RequiresDates: true,
	},
	TourExperience: {
		Category: TourExperience,
		Unit:     model.UnitPerson,
		Fields: withBase(
			FieldDescriptor{Name: "tourType", Kind: KindSelect, Required: true},
			FieldDescriptor{Name: "duration", Kind: KindSelect, Required: true},
			FieldDescriptor{Name: "languages", Kind: KindMultiSelect, Required: true},
			FieldDescriptor{Name: "groupSize", Kind: KindNumber},
			FieldDescriptor{Name: "meetingPoint", Kind: KindText},
			FieldDescriptor{Name: "difficulty", Kind: KindSelect},
		),
		Options: map[string][]string{
			"tourType":   {"Walking", "Food", "Cultural", "Adventure", "Boat", "Wildlife", "Nightlife"},
			"duration":   {"1 hour", "2 hours", "Half Day", "Full Day", "Multi-Day"},
			"languages":  {"English", "Spanish", "French", "German", "Italian", "Mandarin", "Japanese", "Arabic"},
			"difficulty": {"Easy", "Moderate", "Challenging"},
		},
		SessionBased:   true,
		RequiresDates:  true,
		RequiresGuests: true,
	},
}

var generic = FormSchema{
	Category:      Generic,
	Unit:          model.UnitSession,
	Fields:        withBase(),
	SessionBased:  true,
	RequiresDates: true,
}

// GetSchema returns a copy of the form schema of a category, safe for the caller to modify.
// Unknown categories get the generic schema; that is a fallback, not an error.
func GetSchema(category string) FormSchema {
	if s, ok := registry[category]; ok {
		return s.clone()
	}
	return generic.clone()
}

func (s FormSchema) clone() FormSchema {
	out := s
	out.Fields = slices.Clone(s.Fields)
	out.BlockedWeekdays = slices.Clone(s.BlockedWeekdays)
	if s.Options != nil {
		out.Options = make(map[string][]string, len(s.Options))
		for name, values := range s.Options {
			out.Options[name] = slices.Clone(values)
		}
	}
	if s.Conditionals != nil {
		out.Conditionals = make([]ConditionalRule, len(s.Conditionals))
		for i, rule := range s.Conditionals {
			rule.Require = slices.Clone(rule.Require)
			out.Conditionals[i] = rule
		}
	}
	return out
}

func IsKnown(category string) bool {
	_, ok := registry[category]
	return ok
}

// Categories lists the known categories in lexical order.
func Categories() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

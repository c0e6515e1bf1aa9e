// Package sanitizer provides input normalization for listing data before validation and storage.
//
// All normalization functions are idempotent - applying them multiple times produces
// the same result. Functions handle invalid input gracefully, typically by returning
// the trimmed input (so the validator can reject it) or empty values rather than errors.
//
// Normalization includes:
//   - Names, descriptions, locations: collapse whitespace, trim leading/trailing spaces
//   - Labels (amenities): lowercase after whitespace normalization
//   - Categories: lowercase slug - "Hotel Room" becomes "hotel-room"
//   - Currencies: uppercase ISO code - " usd " becomes "USD"
//   - Time slots: zero-padded HH:MM, ordered, duplicates removed - "9:00" becomes "09:00"
//   - URLs: enforce HTTPS, lowercase domains, preserve paths
//   - Slices: remove duplicates and empty values after normalization
//   - Numbers: clamp to valid ranges
package sanitizer

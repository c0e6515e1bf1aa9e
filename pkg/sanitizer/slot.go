package sanitizer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NormalizeSlot zero-pads an H:MM or HH:MM time. Anything that is not a valid clock time is
// returned trimmed and unchanged.
func NormalizeSlot(slot string) string {
	slot = strings.TrimSpace(slot)
	h, m, ok := strings.Cut(slot, ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return slot
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return slot
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return slot
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// NormalizeSlots normalizes, de-duplicates and orders a day's slot list. Zero-padded HH:MM strings
// sort chronologically.
func NormalizeSlots(slots []string) []string {
	out := NormalizeStringSlice(slots, NormalizeSlot)
	sort.Strings(out)
	return out
}

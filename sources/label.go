package sources

import (
	"fmt"
	"strings"

	"github.com/warp/meeting-engine/meeting"
)

const (
	// AllStaffLabel replaces attendee lists longer than allStaffThreshold.
	AllStaffLabel     = "All Staff"
	allStaffThreshold = 10
)

// AttendeeLabel collapses resolved attendee names into one display label:
//
//	0      -> placeholder
//	1      -> the name
//	2..3   -> "A, B, C"
//	4..10  -> "A, B +N more"
//	>10    -> "All Staff"
func AttendeeLabel(names []string) string {
	switch n := len(names); {
	case n == 0:
		return meeting.Placeholder
	case n == 1:
		return names[0]
	case n <= 3:
		return strings.Join(names, ", ")
	case n <= allStaffThreshold:
		return fmt.Sprintf("%s, %s +%d more", names[0], names[1], n-2)
	default:
		return AllStaffLabel
	}
}

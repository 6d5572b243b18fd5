package booking

import (
	"regexp"
	"strings"
)

// streetLinePattern captures the street, the final run of digits and the
// letters or hyphens that directly follow it.
var streetLinePattern = regexp.MustCompile(`^(.*?)(?:\s+)?(\d+)([a-zA-Z\-]*)$`)

// StreetAddress is a street line split into its parts.
type StreetAddress struct {
	Street    string
	Number    string
	Extension string
}

// ParseStreetLine splits a single-line street address such as "Hoofdstraat 12A"
// into street "Hoofdstraat", number "12" and extension "A".
// Input that does not end in a house number is returned whole as the street.
func ParseStreetLine(line string) StreetAddress {
	line = strings.TrimSpace(line)
	m := streetLinePattern.FindStringSubmatch(line)
	if m == nil {
		return StreetAddress{Street: line}
	}
	return StreetAddress{
		Street:    strings.TrimSpace(m[1]),
		Number:    m[2],
		Extension: m[3],
	}
}

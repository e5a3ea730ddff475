package alert

import (
	"fmt"
	"strings"

	"rakshak/internal/types"
)

// Message renders the human-readable accident alert handed to fixed services.
func Message(serviceType, name string, distanceKm float64, etaMin int, origin types.Point, severity string) string {
	var b strings.Builder
	b.WriteString("ACCIDENT ALERT\n\n")
	fmt.Fprintf(&b, "Service Type: %s\n", serviceType)
	fmt.Fprintf(&b, "Name: %s\n", name)
	fmt.Fprintf(&b, "Distance: %.2f km\n", distanceKm)
	fmt.Fprintf(&b, "ETA: %d min\n", etaMin)
	if severity != "" {
		fmt.Fprintf(&b, "Severity: %s\n", severity)
	}
	fmt.Fprintf(&b, "\nLocation:\nhttps://www.google.com/maps?q=%f,%f\n", origin.Lat, origin.Lng)
	b.WriteString("\nPlease respond immediately.\n")
	return b.String()
}

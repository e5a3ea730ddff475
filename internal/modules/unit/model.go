// README: Emergency unit model shared by gathering, presence, and dispatch.
package unit

import (
	"time"

	"rakshak/internal/types"
)

type Type string

const (
	TypeAmbulance Type = "AMBULANCE"
	TypeHospital  Type = "HOSPITAL"
	TypePolice    Type = "POLICE"
)

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusBusy      Status = "BUSY"
	StatusOffline   Status = "OFFLINE"
)

// ConnectionBearing reports whether units of this type hold live connections.
// Hospitals and police stations are fixed services reached by the alert fanout.
func (t Type) ConnectionBearing() bool {
	return t == TypeAmbulance
}

type Unit struct {
	ID       types.ID
	Name     string
	Type     Type
	Phone    string
	Address  string
	Position types.Point // fixed location, or last-known for ambulances
	Status   Status      // meaningful only for connection-bearing types
	LastSeen time.Time
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusOffline:
		return true
	}
	return false
}

package dispatch

// Report lifecycle statuses. Reports move pending -> assigned -> in-progress
// -> completed; assignment is driven by the workflow, completion may happen
// from any state, and in-progress is reachable only through direct admin
// edits.
const (
	ReportStatusPending    = "pending"
	ReportStatusAssigned   = "assigned"
	ReportStatusInProgress = "in-progress"
	ReportStatusCompleted  = "completed"
)

// Drone availability statuses. "idle" is a legacy alias of "available" that
// still appears in older fleet records.
const (
	DroneStatusAvailable   = "available"
	DroneStatusBusy        = "busy"
	DroneStatusMaintenance = "maintenance"
	DroneStatusIdleLegacy  = "idle"
)

// Drone modes. Mode is a derived display encoding of status, kept in sync by
// ModeFor; it is never an independent source of truth.
const (
	DroneModeIdle        = "idle"
	DroneModeOnMission   = "on-mission"
	DroneModeMaintenance = "maintenance"
)

// ModeFor returns the drone mode implied by a drone status.
func ModeFor(status string) string {
	switch status {
	case DroneStatusBusy:
		return DroneModeOnMission
	case DroneStatusMaintenance:
		return DroneModeMaintenance
	default:
		return DroneModeIdle
	}
}

// DroneAssignable reports whether a drone in the given status may be handed
// a mission. Drones in maintenance must never be selectable.
func DroneAssignable(status string) bool {
	return status == DroneStatusAvailable || status == DroneStatusIdleLegacy
}

// ReportClosed reports whether a report can no longer be assigned.
// Reopening a completed report is out of scope.
func ReportClosed(status string) bool {
	return status == ReportStatusCompleted
}

// ValidReportStatus reports whether s is a known report status, used to
// reject garbage on direct admin edits.
func ValidReportStatus(s string) bool {
	switch s {
	case ReportStatusPending, ReportStatusAssigned, ReportStatusInProgress, ReportStatusCompleted:
		return true
	}
	return false
}

// ValidDroneStatus reports whether s is a known drone status.
func ValidDroneStatus(s string) bool {
	switch s {
	case DroneStatusAvailable, DroneStatusBusy, DroneStatusMaintenance, DroneStatusIdleLegacy:
		return true
	}
	return false
}

package dispatch

import "errors"

// Workflow error taxonomy. The first four are caller input errors surfaced
// directly with no retry; ErrInconsistentState means a compensation write
// failed and the report/drone pair needs manual reconciliation.
var (
	ErrReportNotFound      = errors.New("report not found")
	ErrDroneNotFound       = errors.New("drone not found")
	ErrDroneUnavailable    = errors.New("drone is not available for assignment")
	ErrReportAlreadyClosed = errors.New("report is already completed")
	ErrInconsistentState   = errors.New("assignment left stores inconsistent, manual reconciliation required")
)

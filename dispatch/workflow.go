package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/phoenix-eye/phoenix-eye-api/databases"
	"github.com/phoenix-eye/phoenix-eye-api/models"
)

// Workflow owns the cross-entity dispatch logic: linking one available drone
// to one open report, and closing reports. It holds no entity state of its
// own, only the per-drone locks that serialize assignment.
type Workflow struct {
	Reports databases.ReportDatabase
	Drones  databases.DroneDatabase

	// FreeDroneOnComplete returns completed reports' drones to the
	// available pool. Off by default: fleet operators reset drones
	// manually after post-mission checks.
	FreeDroneOnComplete bool

	locks sync.Map // drone id hex -> *sync.Mutex
}

// NewWorkflow wires a workflow over the two stores.
func NewWorkflow(reports databases.ReportDatabase, drones databases.DroneDatabase, freeDroneOnComplete bool) *Workflow {
	return &Workflow{
		Reports:             reports,
		Drones:              drones,
		FreeDroneOnComplete: freeDroneOnComplete,
	}
}

func (wf *Workflow) droneLock(droneID primitive.ObjectID) *sync.Mutex {
	l, _ := wf.locks.LoadOrStore(droneID.Hex(), &sync.Mutex{})
	return l.(*sync.Mutex)
}

// AssignDrone validates that the report is open and the drone is available,
// then transitions both: report to assigned, drone to busy/on-mission. The
// two writes are not a transaction; the drone write is guarded by a status
// compare-and-swap and the report write is compensated if the drone write
// loses. Concurrent assignments of the same drone are serialized per drone
// id, so exactly one of two racing calls wins.
func (wf *Workflow) AssignDrone(ctx context.Context, reportID, droneID primitive.ObjectID) (*models.Report, error) {
	lock := wf.droneLock(droneID)
	lock.Lock()
	defer lock.Unlock()

	report, err := wf.Reports.FindOne(ctx, bson.M{"_id": reportID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}

	drone, err := wf.Drones.FindOne(ctx, bson.M{"_id": droneID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDroneNotFound
		}
		return nil, err
	}

	if ReportClosed(report.Status) {
		return nil, ErrReportAlreadyClosed
	}
	if !DroneAssignable(drone.Status) {
		return nil, ErrDroneUnavailable
	}

	now := primitive.NewDateTimeFromTime(time.Now())

	// Snapshot for compensation before touching anything.
	prior := bson.M{
		"status":            report.Status,
		"assignedDroneId":   report.AssignedDroneID,
		"assignedDroneName": report.AssignedDroneName,
		"updatedAt":         report.UpdatedAt,
	}

	_, err = wf.Reports.UpdateOne(ctx, bson.M{"_id": reportID}, bson.M{
		"$set": bson.M{
			"status":            ReportStatusAssigned,
			"assignedDroneId":   droneID.Hex(),
			"assignedDroneName": drone.Name,
			"updatedAt":         now,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	// Status filter is the compare-and-swap: a drone grabbed between our
	// read and this write no longer matches and the update is a no-op.
	res, err := wf.Drones.UpdateOne(ctx, bson.M{
		"_id":    droneID,
		"status": bson.M{"$in": []string{DroneStatusAvailable, DroneStatusIdleLegacy}},
	}, bson.M{
		"$set": bson.M{
			"status":       DroneStatusBusy,
			"mode":         DroneModeOnMission,
			"lastReportId": reportID.Hex(),
			"updatedAt":    now,
		},
	})
	if err != nil || res.MatchedCount == 0 {
		if compErr := wf.compensateReport(ctx, reportID, prior); compErr != nil {
			zap.S().Errorw("failed to compensate report after drone update failed",
				"reportId", reportID.Hex(),
				"droneId", droneID.Hex(),
				"droneErr", err,
				"error", compErr,
			)
			return nil, fmt.Errorf("%w: %v", ErrInconsistentState, compErr)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update drone: %w", err)
		}
		return nil, ErrDroneUnavailable
	}

	report.Status = ReportStatusAssigned
	report.AssignedDroneID = droneID.Hex()
	report.AssignedDroneName = drone.Name
	report.UpdatedAt = now

	zap.S().Infow("drone assigned to report",
		"reportId", reportID.Hex(),
		"droneId", droneID.Hex(),
		"droneName", drone.Name,
	)
	return report, nil
}

func (wf *Workflow) compensateReport(ctx context.Context, reportID primitive.ObjectID, prior bson.M) error {
	_, err := wf.Reports.UpdateOne(ctx, bson.M{"_id": reportID}, bson.M{"$set": prior})
	return err
}

// MarkCompleted closes a report. Repeated calls on an already-completed
// report are a no-op, not an error. When FreeDroneOnComplete is set the
// assigned drone returns to available/idle; its lastReportId is kept so the
// completed report still points at a drone that points back.
func (wf *Workflow) MarkCompleted(ctx context.Context, reportID primitive.ObjectID) (*models.Report, error) {
	report, err := wf.Reports.FindOne(ctx, bson.M{"_id": reportID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}

	if report.Status == ReportStatusCompleted {
		return report, nil
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	_, err = wf.Reports.UpdateOne(ctx, bson.M{"_id": reportID}, bson.M{
		"$set": bson.M{
			"status":    ReportStatusCompleted,
			"updatedAt": now,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	report.Status = ReportStatusCompleted
	report.UpdatedAt = now

	if wf.FreeDroneOnComplete && report.AssignedDroneID != "" {
		wf.freeDrone(ctx, report.AssignedDroneID)
	}

	zap.S().Infow("report completed", "reportId", reportID.Hex())
	return report, nil
}

// freeDrone is best-effort: the completion is already durable, so a failure
// here only delays the drone's return to the pool until the reconciliation
// sweep or a manual reset.
func (wf *Workflow) freeDrone(ctx context.Context, droneIDHex string) {
	droneID, err := primitive.ObjectIDFromHex(droneIDHex)
	if err != nil {
		zap.S().Warnw("report carries malformed assignedDroneId", "droneId", droneIDHex)
		return
	}

	lock := wf.droneLock(droneID)
	lock.Lock()
	defer lock.Unlock()

	_, err = wf.Drones.UpdateOne(ctx, bson.M{
		"_id":    droneID,
		"status": DroneStatusBusy,
	}, bson.M{
		"$set": bson.M{
			"status":    DroneStatusAvailable,
			"mode":      DroneModeIdle,
			"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
		},
	})
	if err != nil {
		zap.S().Warnw("failed to free drone after completion", "droneId", droneIDHex, "error", err)
	}
}

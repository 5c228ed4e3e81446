package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/phoenix-eye/phoenix-eye-api/databases"
	"github.com/phoenix-eye/phoenix-eye-api/dispatch"
)

// Scheduler runs the periodic fleet consistency sweep. The assignment
// workflow compensates its own failures, so the sweep only has to catch
// linkage that drifted through operator edits or partial writes, and it
// reports rather than repairs.
type Scheduler struct {
	cron *cron.Cron
	RDB  databases.ReportDatabase
	DDB  databases.DroneDatabase
}

// NewScheduler creates a new scheduler instance
func NewScheduler(rdb databases.ReportDatabase, ddb databases.DroneDatabase) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		RDB:  rdb,
		DDB:  ddb,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Sweep drone/report linkage hourly
	_, err := s.cron.AddFunc("0 * * * *", s.sweepFleetConsistency)
	if err != nil {
		zap.S().Errorw("failed to register fleet consistency job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Fleet consistency scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Fleet consistency scheduler stopped")
}

// sweepFleetConsistency cross-checks busy drones against the reports they
// claim to be flying and assigned reports against the drones they name.
func (s *Scheduler) sweepFleetConsistency() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	zap.S().Info("Running fleet consistency sweep")

	drift := 0
	drift += s.checkBusyDrones(ctx)
	drift += s.checkAssignedReports(ctx)

	zap.S().Infow("Fleet consistency sweep complete", "driftFound", drift)
}

func (s *Scheduler) checkBusyDrones(ctx context.Context) int {
	drones, err := s.DDB.Find(ctx, bson.M{"status": dispatch.DroneStatusBusy})
	if err != nil {
		zap.S().Errorw("failed to find busy drones", "error", err)
		return 0
	}

	drift := 0
	for _, drone := range drones {
		if drone.LastReportID == "" {
			zap.S().Warnw("busy drone has no report linkage",
				"droneId", drone.ID.Hex(),
				"droneName", drone.Name,
			)
			drift++
			continue
		}

		rID, err := primitive.ObjectIDFromHex(drone.LastReportID)
		if err != nil {
			zap.S().Warnw("busy drone carries a malformed report id",
				"droneId", drone.ID.Hex(),
				"lastReportId", drone.LastReportID,
			)
			drift++
			continue
		}

		report, err := s.RDB.FindOne(ctx, bson.M{"_id": rID})
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				zap.S().Warnw("busy drone points at a missing report",
					"droneId", drone.ID.Hex(),
					"lastReportId", drone.LastReportID,
				)
				drift++
			} else {
				zap.S().Errorw("failed to load report for busy drone", "error", err)
			}
			continue
		}

		if report.AssignedDroneID != drone.ID.Hex() {
			zap.S().Warnw("busy drone and report disagree on assignment",
				"droneId", drone.ID.Hex(),
				"reportId", report.ID.Hex(),
				"reportAssignedDroneId", report.AssignedDroneID,
			)
			drift++
		}
	}
	return drift
}

func (s *Scheduler) checkAssignedReports(ctx context.Context) int {
	reports, err := s.RDB.Find(ctx, bson.M{"status": dispatch.ReportStatusAssigned})
	if err != nil {
		zap.S().Errorw("failed to find assigned reports", "error", err)
		return 0
	}

	drift := 0
	for _, report := range reports {
		if report.AssignedDroneID == "" {
			zap.S().Warnw("assigned report has no drone linkage",
				"reportId", report.ID.Hex(),
			)
			drift++
			continue
		}

		dID, err := primitive.ObjectIDFromHex(report.AssignedDroneID)
		if err != nil {
			zap.S().Warnw("assigned report carries a malformed drone id",
				"reportId", report.ID.Hex(),
				"assignedDroneId", report.AssignedDroneID,
			)
			drift++
			continue
		}

		drone, err := s.DDB.FindOne(ctx, bson.M{"_id": dID})
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				zap.S().Warnw("assigned report points at a missing drone",
					"reportId", report.ID.Hex(),
					"assignedDroneId", report.AssignedDroneID,
				)
				drift++
			} else {
				zap.S().Errorw("failed to load drone for assigned report", "error", err)
			}
			continue
		}

		if drone.Status != dispatch.DroneStatusBusy {
			zap.S().Warnw("assigned report names a drone that is not busy",
				"reportId", report.ID.Hex(),
				"droneId", drone.ID.Hex(),
				"droneStatus", drone.Status,
			)
			drift++
		}
	}
	return drift
}

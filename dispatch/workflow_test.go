package dispatch_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phoenix-eye/phoenix-eye-api/databases"
	"github.com/phoenix-eye/phoenix-eye-api/dispatch"
	"github.com/phoenix-eye/phoenix-eye-api/models"
)

// reportStore is a stateful in-memory stand-in for the reports collection.
// It understands just enough of the bson filters and $set updates the
// workflow issues.
type reportStore struct {
	mu      sync.Mutex
	reports map[primitive.ObjectID]*models.Report

	// failUpdatesAfter fails every UpdateOne after the first n succeeded;
	// 0 means never fail.
	failUpdatesAfter int
	updates          int
}

func newReportStore(reports ...*models.Report) *reportStore {
	s := &reportStore{reports: map[primitive.ObjectID]*models.Report{}}
	for _, r := range reports {
		s.reports[r.ID] = r
	}
	return s
}

func (s *reportStore) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := filter.(bson.M)["_id"].(primitive.ObjectID)
	r, ok := s.reports[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *r
	return &cp, nil
}

func (s *reportStore) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Report
	for _, r := range s.reports {
		out = append(out, *r)
	}
	return out, nil
}

func (s *reportStore) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (databases.InsertOneResultHelper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := document.(models.Report)
	s.reports[r.ID] = &r
	return nil, nil
}

func (s *reportStore) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdatesAfter > 0 && s.updates >= s.failUpdatesAfter {
		return nil, assert.AnError
	}
	s.updates++

	id := filter.(bson.M)["_id"].(primitive.ObjectID)
	r, ok := s.reports[id]
	if !ok {
		return &mongo.UpdateResult{}, nil
	}
	for k, v := range update.(bson.M)["$set"].(bson.M) {
		switch k {
		case "status":
			r.Status = v.(string)
		case "assignedDroneId":
			r.AssignedDroneID = v.(string)
		case "assignedDroneName":
			r.AssignedDroneName = v.(string)
		case "updatedAt":
			r.UpdatedAt = v.(primitive.DateTime)
		}
	}
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (s *reportStore) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (databases.CursorHelper, error) {
	return nil, nil
}

func (s *reportStore) get(id primitive.ObjectID) models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.reports[id]
}

// droneStore mirrors reportStore for the drones collection. Its UpdateOne
// honors the status compare-and-swap filter the workflow relies on.
type droneStore struct {
	mu     sync.Mutex
	drones map[primitive.ObjectID]*models.Drone

	updateErr    error
	beforeUpdate func(s *droneStore)
}

func newDroneStore(drones ...*models.Drone) *droneStore {
	s := &droneStore{drones: map[primitive.ObjectID]*models.Drone{}}
	for _, d := range drones {
		s.drones[d.ID] = d
	}
	return s
}

func (s *droneStore) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Drone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := filter.(bson.M)["_id"].(primitive.ObjectID)
	d, ok := s.drones[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *d
	return &cp, nil
}

func (s *droneStore) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Drone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Drone
	for _, d := range s.drones {
		out = append(out, *d)
	}
	return out, nil
}

func (s *droneStore) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (databases.InsertOneResultHelper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := document.(models.Drone)
	s.drones[d.ID] = &d
	return nil, nil
}

func (s *droneStore) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	if s.beforeUpdate != nil {
		s.beforeUpdate(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}

	f := filter.(bson.M)
	id := f["_id"].(primitive.ObjectID)
	d, ok := s.drones[id]
	if !ok {
		return &mongo.UpdateResult{}, nil
	}
	if !droneMatches(d, f) {
		return &mongo.UpdateResult{}, nil
	}
	for k, v := range update.(bson.M)["$set"].(bson.M) {
		switch k {
		case "status":
			d.Status = v.(string)
		case "mode":
			d.Mode = v.(string)
		case "lastReportId":
			d.LastReportID = v.(string)
		case "updatedAt":
			d.UpdatedAt = v.(primitive.DateTime)
		}
	}
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func droneMatches(d *models.Drone, filter bson.M) bool {
	switch status := filter["status"].(type) {
	case nil:
		return true
	case string:
		return d.Status == status
	case bson.M:
		for _, allowed := range status["$in"].([]string) {
			if d.Status == allowed {
				return true
			}
		}
		return false
	}
	return false
}

func (s *droneStore) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (databases.CursorHelper, error) {
	return nil, nil
}

func (s *droneStore) get(id primitive.ObjectID) models.Drone {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.drones[id]
}

func pendingReport() *models.Report {
	return &models.Report{
		ID:     primitive.NewObjectID(),
		Title:  "smoke near the water tower",
		Status: dispatch.ReportStatusPending,
	}
}

func availableDrone() *models.Drone {
	return &models.Drone{
		ID:      primitive.NewObjectID(),
		Name:    "Falcon-1",
		Status:  dispatch.DroneStatusAvailable,
		Mode:    dispatch.DroneModeIdle,
		Battery: 100,
	}
}

func TestAssignDrone(t *testing.T) {
	report := pendingReport()
	drone := availableDrone()
	rs := newReportStore(report)
	ds := newDroneStore(drone)

	wf := dispatch.NewWorkflow(rs, ds, false)
	got, err := wf.AssignDrone(context.Background(), report.ID, drone.ID)
	require.NoError(t, err)

	assert.Equal(t, dispatch.ReportStatusAssigned, got.Status)
	assert.Equal(t, drone.ID.Hex(), got.AssignedDroneID)
	assert.Equal(t, "Falcon-1", got.AssignedDroneName)

	storedDrone := ds.get(drone.ID)
	assert.Equal(t, dispatch.DroneStatusBusy, storedDrone.Status)
	assert.Equal(t, dispatch.DroneModeOnMission, storedDrone.Mode)
	assert.Equal(t, report.ID.Hex(), storedDrone.LastReportID)
}

func TestAssignDroneAcceptsLegacyIdleStatus(t *testing.T) {
	report := pendingReport()
	drone := availableDrone()
	drone.Status = dispatch.DroneStatusIdleLegacy
	rs := newReportStore(report)
	ds := newDroneStore(drone)

	wf := dispatch.NewWorkflow(rs, ds, false)
	_, err := wf.AssignDrone(context.Background(), report.ID, drone.ID)
	require.NoError(t, err)
	assert.Equal(t, dispatch.DroneStatusBusy, ds.get(drone.ID).Status)
}

func TestAssignDroneReportNotFound(t *testing.T) {
	drone := availableDrone()
	wf := dispatch.NewWorkflow(newReportStore(), newDroneStore(drone), false)

	_, err := wf.AssignDrone(context.Background(), primitive.NewObjectID(), drone.ID)
	assert.ErrorIs(t, err, dispatch.ErrReportNotFound)
}

func TestAssignDroneDroneNotFound(t *testing.T) {
	report := pendingReport()
	wf := dispatch.NewWorkflow(newReportStore(report), newDroneStore(), false)

	_, err := wf.AssignDrone(context.Background(), report.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, dispatch.ErrDroneNotFound)
}

func TestAssignDroneReportAlreadyClosed(t *testing.T) {
	report := pendingReport()
	report.Status = dispatch.ReportStatusCompleted
	drone := availableDrone()
	wf := dispatch.NewWorkflow(newReportStore(report), newDroneStore(drone), false)

	_, err := wf.AssignDrone(context.Background(), report.ID, drone.ID)
	assert.ErrorIs(t, err, dispatch.ErrReportAlreadyClosed)
	// Drone untouched
	assert.Equal(t, dispatch.DroneStatusAvailable, drone.Status)
}

func TestAssignDroneUnavailable(t *testing.T) {
	for _, status := range []string{dispatch.DroneStatusBusy, dispatch.DroneStatusMaintenance} {
		t.Run(status, func(t *testing.T) {
			report := pendingReport()
			drone := availableDrone()
			drone.Status = status
			rs := newReportStore(report)
			wf := dispatch.NewWorkflow(rs, newDroneStore(drone), false)

			_, err := wf.AssignDrone(context.Background(), report.ID, drone.ID)
			assert.ErrorIs(t, err, dispatch.ErrDroneUnavailable)
			assert.Equal(t, dispatch.ReportStatusPending, rs.get(report.ID).Status)
		})
	}
}

func TestAssignDroneCompensatesWhenDroneWriteFails(t *testing.T) {
	report := pendingReport()
	drone := availableDrone()
	rs := newReportStore(report)
	ds := newDroneStore(drone)
	ds.updateErr = assert.AnError

	wf := dispatch.NewWorkflow(rs, ds, false)
	_, err := wf.AssignDrone(context.Background(), report.ID, drone.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, dispatch.ErrInconsistentState)

	// Report rolled back to its pre-assignment state.
	stored := rs.get(report.ID)
	assert.Equal(t, dispatch.ReportStatusPending, stored.Status)
	assert.Empty(t, stored.AssignedDroneID)
	assert.Empty(t, stored.AssignedDroneName)
}

func TestAssignDroneLosesCompareAndSwap(t *testing.T) {
	report := pendingReport()
	drone := availableDrone()
	rs := newReportStore(report)
	ds := newDroneStore(drone)
	// Another actor grabs the drone between the workflow's read and write.
	ds.beforeUpdate = func(s *droneStore) {
		s.mu.Lock()
		s.drones[drone.ID].Status = dispatch.DroneStatusBusy
		s.mu.Unlock()
		s.beforeUpdate = nil
	}

	wf := dispatch.NewWorkflow(rs, ds, false)
	_, err := wf.AssignDrone(context.Background(), report.ID, drone.ID)
	assert.ErrorIs(t, err, dispatch.ErrDroneUnavailable)
	assert.Equal(t, dispatch.ReportStatusPending, rs.get(report.ID).Status)
}

func TestAssignDroneInconsistentStateWhenCompensationFails(t *testing.T) {
	report := pendingReport()
	drone := availableDrone()
	rs := newReportStore(report)
	rs.failUpdatesAfter = 1 // report write succeeds, compensation fails
	ds := newDroneStore(drone)
	ds.updateErr = assert.AnError

	wf := dispatch.NewWorkflow(rs, ds, false)
	_, err := wf.AssignDrone(context.Background(), report.ID, drone.ID)
	assert.ErrorIs(t, err, dispatch.ErrInconsistentState)
}

func TestAssignDroneConcurrentOnlyOneWins(t *testing.T) {
	reportA := pendingReport()
	reportB := pendingReport()
	drone := availableDrone()
	rs := newReportStore(reportA, reportB)
	ds := newDroneStore(drone)

	wf := dispatch.NewWorkflow(rs, ds, false)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, rID := range []primitive.ObjectID{reportA.ID, reportB.ID} {
		wg.Add(1)
		go func(i int, rID primitive.ObjectID) {
			defer wg.Done()
			_, errs[i] = wf.AssignDrone(context.Background(), rID, drone.ID)
		}(i, rID)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, dispatch.ErrDroneUnavailable)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, dispatch.DroneStatusBusy, ds.get(drone.ID).Status)
}

func TestMarkCompleted(t *testing.T) {
	report := pendingReport()
	report.Status = dispatch.ReportStatusAssigned
	rs := newReportStore(report)

	wf := dispatch.NewWorkflow(rs, newDroneStore(), false)
	got, err := wf.MarkCompleted(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, dispatch.ReportStatusCompleted, got.Status)
	assert.Equal(t, dispatch.ReportStatusCompleted, rs.get(report.ID).Status)
}

func TestMarkCompletedIdempotent(t *testing.T) {
	report := pendingReport()
	report.Status = dispatch.ReportStatusCompleted
	rs := newReportStore(report)

	wf := dispatch.NewWorkflow(rs, newDroneStore(), false)
	got, err := wf.MarkCompleted(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, dispatch.ReportStatusCompleted, got.Status)
	// No write happened
	assert.Equal(t, 0, rs.updates)
}

func TestMarkCompletedReportNotFound(t *testing.T) {
	wf := dispatch.NewWorkflow(newReportStore(), newDroneStore(), false)
	_, err := wf.MarkCompleted(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, dispatch.ErrReportNotFound)
}

func TestMarkCompletedKeepsDroneBusyByDefault(t *testing.T) {
	report := pendingReport()
	drone := availableDrone()
	rs := newReportStore(report)
	ds := newDroneStore(drone)

	wf := dispatch.NewWorkflow(rs, ds, false)
	_, err := wf.AssignDrone(context.Background(), report.ID, drone.ID)
	require.NoError(t, err)

	_, err = wf.MarkCompleted(context.Background(), report.ID)
	require.NoError(t, err)

	assert.Equal(t, dispatch.DroneStatusBusy, ds.get(drone.ID).Status)
}

func TestMarkCompletedFreesDroneWhenConfigured(t *testing.T) {
	report := pendingReport()
	drone := availableDrone()
	rs := newReportStore(report)
	ds := newDroneStore(drone)

	wf := dispatch.NewWorkflow(rs, ds, true)
	_, err := wf.AssignDrone(context.Background(), report.ID, drone.ID)
	require.NoError(t, err)

	_, err = wf.MarkCompleted(context.Background(), report.ID)
	require.NoError(t, err)

	storedDrone := ds.get(drone.ID)
	assert.Equal(t, dispatch.DroneStatusAvailable, storedDrone.Status)
	assert.Equal(t, dispatch.DroneModeIdle, storedDrone.Mode)
	// The completed report still points at a drone that points back.
	assert.Equal(t, report.ID.Hex(), storedDrone.LastReportID)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/phoenix-eye/phoenix-eye-api/config"
	"github.com/phoenix-eye/phoenix-eye-api/databases"
	"github.com/phoenix-eye/phoenix-eye-api/dispatch"
	"github.com/phoenix-eye/phoenix-eye-api/models"
)

// Report exported for testing purposes
type Report struct {
	RDB      databases.ReportDatabase
	Workflow *dispatch.Workflow
	Events   *EventHub
}

// assignRequest is the body of POST /report/{report_id}/assign
type assignRequest struct {
	DroneID string `json:"droneId"`
}

// ReportHandler returns all reports
func (re Report) ReportHandler(w http.ResponseWriter, r *http.Request) {
	dbResp, err := re.RDB.Find(context.TODO(), bson.D{})
	if err != nil {
		config.ErrorStatus("failed to get reports", http.StatusNotFound, w, err)
		return
	}
	// Because the frontend requires that the data elements exist, if
	// len == 0 then we will just return an empty data object
	if len(dbResp) == 0 {
		dbResp = []models.Report{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ReportByIDHandler returns a report by ID
func (re Report) ReportByIDHandler(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["report_id"]

	zap.S().Debugf("report_id: %v", reportID)

	rID, err := primitive.ObjectIDFromHex(reportID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := re.RDB.FindOne(context.Background(), bson.M{"_id": rID})
	if err != nil {
		config.ErrorStatus("failed to get report by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CreateReportHandler creates a new report from a citizen submission
func (re Report) CreateReportHandler(w http.ResponseWriter, r *http.Request) {
	var report models.Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	if report.Title == "" {
		config.ErrorStatus("failed to create report", http.StatusBadRequest, w, errors.New("title is required"))
		return
	}

	report.ID = primitive.NewObjectID()
	if report.Status == "" {
		report.Status = dispatch.ReportStatusPending
	}
	// Assignment linkage is never accepted from the intake payload.
	report.AssignedDroneID = ""
	report.AssignedDroneName = ""
	report.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	report.UpdatedAt = report.CreatedAt

	if _, err := re.RDB.InsertOne(context.Background(), report); err != nil {
		config.ErrorStatus("failed to create report", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(report)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// UpdateReportHandler applies an allow-listed partial update to a report.
// Clients cannot touch id, createdAt or the assignment linkage here.
func (re Report) UpdateReportHandler(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["report_id"]

	rID, err := primitive.ObjectIDFromHex(reportID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var body models.ReportUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	updateFields := bson.M{}
	if body.Title != nil {
		updateFields["title"] = *body.Title
	}
	if body.Description != nil {
		updateFields["description"] = *body.Description
	}
	if body.Location != nil {
		updateFields["location"] = *body.Location
	}
	if body.Latitude != nil {
		updateFields["latitude"] = *body.Latitude
	}
	if body.Longitude != nil {
		updateFields["longitude"] = *body.Longitude
	}
	if body.Status != nil {
		if !dispatch.ValidReportStatus(*body.Status) {
			config.ErrorStatus("failed to update report", http.StatusBadRequest, w, errors.New("unknown report status"))
			return
		}
		updateFields["status"] = *body.Status
	}
	if len(updateFields) == 0 {
		config.ErrorStatus("failed to update report", http.StatusBadRequest, w, errors.New("no updatable fields in request"))
		return
	}
	updateFields["updatedAt"] = primitive.NewDateTimeFromTime(time.Now())

	res, err := re.RDB.UpdateOne(context.Background(), bson.M{"_id": rID}, bson.M{"$set": updateFields})
	if err != nil {
		config.ErrorStatus("failed to update report", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("failed to get report by ID", http.StatusNotFound, w, errors.New("report not found"))
		return
	}

	dbResp, err := re.RDB.FindOne(context.Background(), bson.M{"_id": rID})
	if err != nil {
		config.ErrorStatus("failed to get report by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AssignDroneHandler links an available drone to an open report via the
// dispatch workflow
func (re Report) AssignDroneHandler(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["report_id"]

	rID, err := primitive.ObjectIDFromHex(reportID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var body assignRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	dID, err := primitive.ObjectIDFromHex(body.DroneID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	report, err := re.Workflow.AssignDrone(r.Context(), rID, dID)
	if err != nil {
		config.ErrorStatus("failed to assign drone", assignStatusCode(err), w, err)
		return
	}

	re.Events.Publish(EventReportAssigned, report)

	b, err := json.Marshal(report)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CompleteReportHandler marks a report completed. Idempotent: repeating the
// call returns 200 with the already-completed report.
func (re Report) CompleteReportHandler(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["report_id"]

	rID, err := primitive.ObjectIDFromHex(reportID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	report, err := re.Workflow.MarkCompleted(r.Context(), rID)
	if err != nil {
		config.ErrorStatus("failed to complete report", assignStatusCode(err), w, err)
		return
	}

	re.Events.Publish(EventReportCompleted, report)

	b, err := json.Marshal(report)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// assignStatusCode maps workflow errors onto HTTP statuses: unknown ids are
// 404, state conflicts are 409, anything else is a server fault.
func assignStatusCode(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrReportNotFound), errors.Is(err, dispatch.ErrDroneNotFound):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrDroneUnavailable), errors.Is(err, dispatch.ErrReportAlreadyClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

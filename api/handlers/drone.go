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

// Drone exported for testing purposes
type Drone struct {
	DB     databases.DroneDatabase
	Events *EventHub
}

// DroneHandler returns all drones. With ?assignable=true only drones that can
// take a mission right now are returned.
func (d Drone) DroneHandler(w http.ResponseWriter, r *http.Request) {
	filter := bson.M{}
	if r.URL.Query().Get("assignable") == "true" {
		filter = bson.M{"status": bson.M{"$in": []string{
			dispatch.DroneStatusAvailable,
			dispatch.DroneStatusIdleLegacy,
		}}}
	}

	dbResp, err := d.DB.Find(context.TODO(), filter)
	if err != nil {
		config.ErrorStatus("failed to get drones", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Drone{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// DroneByIDHandler returns a drone by ID
func (d Drone) DroneByIDHandler(w http.ResponseWriter, r *http.Request) {
	droneID := mux.Vars(r)["drone_id"]

	zap.S().Debugf("drone_id: %v", droneID)

	dID, err := primitive.ObjectIDFromHex(droneID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := d.DB.FindOne(context.Background(), bson.M{"_id": dID})
	if err != nil {
		config.ErrorStatus("failed to get drone by ID", http.StatusNotFound, w, err)
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

// CreateDroneHandler registers a new drone in the fleet
func (d Drone) CreateDroneHandler(w http.ResponseWriter, r *http.Request) {
	var drone models.Drone
	if err := json.NewDecoder(r.Body).Decode(&drone); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	if drone.Name == "" {
		config.ErrorStatus("failed to create drone", http.StatusBadRequest, w, errors.New("name is required"))
		return
	}

	drone.ID = primitive.NewObjectID()
	if drone.Status == "" {
		drone.Status = dispatch.DroneStatusAvailable
	}
	if !dispatch.ValidDroneStatus(drone.Status) {
		config.ErrorStatus("failed to create drone", http.StatusBadRequest, w, errors.New("unknown drone status"))
		return
	}
	if drone.Battery == 0 {
		drone.Battery = 100
	}
	if drone.Location == "" {
		drone.Location = "Riyadh"
	}
	drone.Mode = dispatch.ModeFor(drone.Status)
	drone.LastReportID = ""
	drone.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	drone.UpdatedAt = drone.CreatedAt

	if _, err := d.DB.InsertOne(context.Background(), drone); err != nil {
		config.ErrorStatus("failed to create drone", http.StatusInternalServerError, w, err)
		return
	}

	d.Events.Publish(EventDroneCreated, drone)

	b, err := json.Marshal(drone)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// UpdateDroneHandler applies an allow-listed partial update to a drone.
// Mode always follows status, so a mode sent alongside a status change is
// ignored in favor of the derived value.
func (d Drone) UpdateDroneHandler(w http.ResponseWriter, r *http.Request) {
	droneID := mux.Vars(r)["drone_id"]

	dID, err := primitive.ObjectIDFromHex(droneID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var body models.DroneUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	updateFields := bson.M{}
	if body.Name != nil {
		updateFields["name"] = *body.Name
	}
	if body.Status != nil {
		if !dispatch.ValidDroneStatus(*body.Status) {
			config.ErrorStatus("failed to update drone", http.StatusBadRequest, w, errors.New("unknown drone status"))
			return
		}
		updateFields["status"] = *body.Status
		updateFields["mode"] = dispatch.ModeFor(*body.Status)
	}
	if body.Battery != nil {
		if *body.Battery < 0 || *body.Battery > 100 {
			config.ErrorStatus("failed to update drone", http.StatusBadRequest, w, errors.New("battery must be between 0 and 100"))
			return
		}
		updateFields["battery"] = *body.Battery
	}
	if body.Location != nil {
		updateFields["location"] = *body.Location
	}
	if len(updateFields) == 0 {
		config.ErrorStatus("failed to update drone", http.StatusBadRequest, w, errors.New("no updatable fields in request"))
		return
	}
	updateFields["updatedAt"] = primitive.NewDateTimeFromTime(time.Now())

	res, err := d.DB.UpdateOne(context.Background(), bson.M{"_id": dID}, bson.M{"$set": updateFields})
	if err != nil {
		config.ErrorStatus("failed to update drone", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("failed to get drone by ID", http.StatusNotFound, w, errors.New("drone not found"))
		return
	}

	dbResp, err := d.DB.FindOne(context.Background(), bson.M{"_id": dID})
	if err != nil {
		config.ErrorStatus("failed to get drone by ID", http.StatusNotFound, w, err)
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

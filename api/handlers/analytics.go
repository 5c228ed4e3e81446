package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/phoenix-eye/phoenix-eye-api/config"
	"github.com/phoenix-eye/phoenix-eye-api/databases"
)

// Analytics exported for testing purposes
type Analytics struct {
	RDB databases.ReportDatabase
	DDB databases.DroneDatabase
}

// statusCount is one bucket of a $group-by-status aggregation
type statusCount struct {
	Status string `bson:"_id" json:"status"`
	Count  int64  `bson:"count" json:"count"`
}

// droneStatusCount additionally carries the average battery of the bucket
type droneStatusCount struct {
	Status     string  `bson:"_id" json:"status"`
	Count      int64   `bson:"count" json:"count"`
	AvgBattery float64 `bson:"avgBattery" json:"avgBattery"`
}

// ReportAnalyticsHandler returns report counts grouped by status
func (a Analytics) ReportAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}},
		{"$sort": bson.M{"_id": 1}},
	}

	cursor, err := a.RDB.Aggregate(context.Background(), pipeline)
	if err != nil {
		config.ErrorStatus("failed to aggregate reports", http.StatusInternalServerError, w, err)
		return
	}

	var buckets []statusCount
	if err := cursor.Decode(&buckets); err != nil {
		config.ErrorStatus("failed to decode aggregation", http.StatusInternalServerError, w, err)
		return
	}
	if len(buckets) == 0 {
		buckets = []statusCount{}
	}

	b, err := json.Marshal(buckets)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// DroneAnalyticsHandler returns drone counts and average battery grouped by
// status
func (a Analytics) DroneAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":        "$status",
			"count":      bson.M{"$sum": 1},
			"avgBattery": bson.M{"$avg": "$battery"},
		}},
		{"$sort": bson.M{"_id": 1}},
	}

	cursor, err := a.DDB.Aggregate(context.Background(), pipeline)
	if err != nil {
		config.ErrorStatus("failed to aggregate drones", http.StatusInternalServerError, w, err)
		return
	}

	var buckets []droneStatusCount
	if err := cursor.Decode(&buckets); err != nil {
		config.ErrorStatus("failed to decode aggregation", http.StatusInternalServerError, w, err)
		return
	}
	if len(buckets) == 0 {
		buckets = []droneStatusCount{}
	}

	b, err := json.Marshal(buckets)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Drone holds the structure for the drone collection in mongo.
type Drone struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id"`
	Name         string             `json:"name" bson:"name"`
	Status       string             `json:"status" bson:"status"`
	Mode         string             `json:"mode" bson:"mode"`
	Battery      int                `json:"battery" bson:"battery"`
	Location     string             `json:"location" bson:"location"`
	LastReportID string             `json:"lastReportId,omitempty" bson:"lastReportId,omitempty"`
	CreatedAt    primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt    primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// DroneUpdate is the allow-list of drone fields a client may patch. Direct
// status/mode edits are permitted for admins (maintenance toggles); the
// mission linkage lastReportId is owned by the dispatch workflow.
type DroneUpdate struct {
	Name     *string `json:"name"`
	Status   *string `json:"status"`
	Mode     *string `json:"mode"`
	Battery  *int    `json:"battery"`
	Location *string `json:"location"`
}

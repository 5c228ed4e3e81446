package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Report holds the structure for the report collection in mongo. Reports are
// flat documents: citizen submissions carry title/description/location and
// optional coordinates, the dispatch workflow fills in the assignment fields.
type Report struct {
	ID                primitive.ObjectID `json:"_id" bson:"_id"`
	Title             string             `json:"title" bson:"title"`
	Description       string             `json:"description" bson:"description"`
	Location          string             `json:"location" bson:"location"`
	Latitude          *float64           `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude         *float64           `json:"longitude,omitempty" bson:"longitude,omitempty"`
	Status            string             `json:"status" bson:"status"`
	AssignedDroneID   string             `json:"assignedDroneId,omitempty" bson:"assignedDroneId,omitempty"`
	AssignedDroneName string             `json:"assignedDroneName,omitempty" bson:"assignedDroneName,omitempty"`
	CreatedAt         primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt         primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// ReportUpdate is the allow-list of report fields a client may patch.
// Pointer fields distinguish "absent" from "set to zero value"; id, createdAt
// and the assignment linkage are deliberately not patchable here, the
// dispatch workflow owns those.
type ReportUpdate struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Location    *string  `json:"location"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Status      *string  `json:"status"`
}

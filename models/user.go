package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User holds the structure for the user collection in mongo. The bcrypt
// password hash never leaves the server.
type User struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	FullName  string             `json:"fullName" bson:"fullName"`
	Email     string             `json:"email" bson:"email"`
	Password  string             `json:"-" bson:"password"`
	Role      string             `json:"role" bson:"role"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

// Roles recognized by the auth middleware.
const (
	RoleCitizen = "citizen"
	RoleAdmin   = "admin"
)

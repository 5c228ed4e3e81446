package databases

// go generate: mockery --name DroneDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phoenix-eye/phoenix-eye-api/models"
)

const droneName = "drones"

// DroneDatabase contains the methods to use with the drone database
type DroneDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Drone, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Drone, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	Aggregate(context.Context, interface{}, ...*options.AggregateOptions) (CursorHelper, error)
}

type droneDatabase struct {
	db DatabaseHelper
}

// NewDroneDatabase initializes a new instance of drone database with the provided db connection
func NewDroneDatabase(db DatabaseHelper) DroneDatabase {
	return &droneDatabase{
		db: db,
	}
}

func (d *droneDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Drone, error) {
	drone := &models.Drone{}
	err := d.db.Collection(droneName).FindOne(ctx, filter, opts...).Decode(&drone)
	if err != nil {
		return nil, err
	}
	return drone, nil
}

func (d *droneDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Drone, error) {
	var drones []models.Drone
	cr := d.db.Collection(droneName).Find(ctx, filter, opts...)
	err := cr.Decode(&drones)
	if err != nil {
		return nil, err
	}
	return drones, nil
}

func (d *droneDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res := d.db.Collection(droneName).InsertOne(ctx, document, opts...)
	return res, nil
}

func (d *droneDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return d.db.Collection(droneName).UpdateOne(ctx, filter, update, opts...)
}

func (d *droneDatabase) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (CursorHelper, error) {
	return d.db.Collection(droneName).Aggregate(ctx, pipeline, opts...)
}

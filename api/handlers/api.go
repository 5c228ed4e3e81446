package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/phoenix-eye/phoenix-eye-api/api"
	"github.com/phoenix-eye/phoenix-eye-api/api/scheduler"
	"github.com/phoenix-eye/phoenix-eye-api/config"
	"github.com/phoenix-eye/phoenix-eye-api/databases"
	"github.com/phoenix-eye/phoenix-eye-api/dispatch"
	"github.com/phoenix-eye/phoenix-eye-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	auth := api.Auth{Secret: a.Config.SecretKey}

	rdb := databases.NewReportDatabase(a.dbHelper)
	ddb := databases.NewDroneDatabase(a.dbHelper)
	udb := databases.NewUserDatabase(a.dbHelper)

	events := NewEventHub()
	workflow := dispatch.NewWorkflow(rdb, ddb, a.Config.FreeDroneOnComplete)

	re := Report{RDB: rdb, Workflow: workflow, Events: events}
	d := Drone{DB: ddb, Events: events}
	u := User{DB: udb, Auth: auth}
	an := Analytics{RDB: rdb, DDB: ddb}

	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware)
	r.Use(api.TimeoutMiddleware(30 * time.Second))

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/register", http.HandlerFunc(u.RegisterHandler)).Methods("POST")
	apiCreate.Handle("/auth/login", http.HandlerFunc(u.LoginHandler)).Methods("POST")
	apiCreate.Handle("/auth/me", auth.Middleware(http.HandlerFunc(u.MeHandler))).Methods("GET")

	apiCreate.Handle("/reports", auth.Middleware(http.HandlerFunc(re.ReportHandler))).Methods("GET")
	apiCreate.Handle("/report", auth.Middleware(http.HandlerFunc(re.CreateReportHandler))).Methods("POST")
	apiCreate.Handle("/report/{report_id}", auth.Middleware(http.HandlerFunc(re.ReportByIDHandler))).Methods("GET")
	apiCreate.Handle("/report/{report_id}", auth.AdminOnly(http.HandlerFunc(re.UpdateReportHandler))).Methods("PUT")
	apiCreate.Handle("/report/{report_id}/assign", auth.AdminOnly(http.HandlerFunc(re.AssignDroneHandler))).Methods("POST")
	apiCreate.Handle("/report/{report_id}/complete", auth.AdminOnly(http.HandlerFunc(re.CompleteReportHandler))).Methods("POST")

	apiCreate.Handle("/drones", auth.Middleware(http.HandlerFunc(d.DroneHandler))).Methods("GET")
	apiCreate.Handle("/drone", auth.AdminOnly(http.HandlerFunc(d.CreateDroneHandler))).Methods("POST")
	apiCreate.Handle("/drone/{drone_id}", auth.Middleware(http.HandlerFunc(d.DroneByIDHandler))).Methods("GET")
	apiCreate.Handle("/drone/{drone_id}", auth.AdminOnly(http.HandlerFunc(d.UpdateDroneHandler))).Methods("PUT")

	apiCreate.Handle("/users", auth.AdminOnly(http.HandlerFunc(u.UsersHandler))).Methods("GET")
	apiCreate.Handle("/user/{user_id}", auth.AdminOnly(http.HandlerFunc(u.UserByIDHandler))).Methods("GET")

	apiCreate.Handle("/analytics/reports", auth.AdminOnly(http.HandlerFunc(an.ReportAnalyticsHandler))).Methods("GET")
	apiCreate.Handle("/analytics/drones", auth.AdminOnly(http.HandlerFunc(an.DroneAnalyticsHandler))).Methods("GET")

	apiCreate.Handle("/metrics/summary", auth.AdminOnly(http.HandlerFunc(MetricsSummaryHandler))).Methods("GET")
	apiCreate.Handle("/metrics/routes", auth.AdminOnly(http.HandlerFunc(MetricsRoutesHandler))).Methods("GET")

	apiCreate.Handle("/events", auth.Middleware(http.HandlerFunc(events.SubscribeHandler))).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("phoenix-eye-api has connected to the database")

	// fleet consistency sweep runs in the background for the life of the pod
	sweep := scheduler.NewScheduler(
		databases.NewReportDatabase(a.dbHelper),
		databases.NewDroneDatabase(a.dbHelper),
	)
	sweep.Start()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}

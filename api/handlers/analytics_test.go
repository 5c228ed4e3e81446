package handlers_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/phoenix-eye/phoenix-eye-api/api/handlers"
	"github.com/phoenix-eye/phoenix-eye-api/databases"
	"github.com/phoenix-eye/phoenix-eye-api/databases/mocks"
)

func TestAnalytics_ReportAnalyticsHandlerEmpty(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/analytics/reports", nil)
	if err != nil {
		t.Fatal(err)
	}

	var db databases.DatabaseHelper
	var conn databases.CollectionHelper
	var cursorHelper databases.CursorHelper

	db = &MockDatabaseHelper{}
	conn = &mocks.CollectionHelper{}
	cursorHelper = &mocks.CursorHelper{}

	cursorHelper.(*mocks.CursorHelper).On("Decode", mock.Anything).Return(nil)
	conn.(*mocks.CollectionHelper).On("Aggregate", mock.Anything, mock.Anything).Return(cursorHelper, nil)
	db.(*MockDatabaseHelper).On("Collection", "reports").Return(conn)

	an := handlers.Analytics{RDB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(an.ReportAnalyticsHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if rr.Body.String() != "[]" {
		t.Errorf("handler returned unexpected body: got %v want []", rr.Body.String())
	}
}

func TestAnalytics_ReportAnalyticsHandlerAggregateError(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/analytics/reports", nil)
	if err != nil {
		t.Fatal(err)
	}

	var db databases.DatabaseHelper
	var conn databases.CollectionHelper

	db = &MockDatabaseHelper{}
	conn = &mocks.CollectionHelper{}

	conn.(*mocks.CollectionHelper).On("Aggregate", mock.Anything, mock.Anything).Return(nil, errors.New("mocked-error"))
	db.(*MockDatabaseHelper).On("Collection", "reports").Return(conn)

	an := handlers.Analytics{RDB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(an.ReportAnalyticsHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusInternalServerError {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusInternalServerError)
	}
}

func TestAnalytics_DroneAnalyticsHandlerEmpty(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/analytics/drones", nil)
	if err != nil {
		t.Fatal(err)
	}

	var db databases.DatabaseHelper
	var conn databases.CollectionHelper
	var cursorHelper databases.CursorHelper

	db = &MockDatabaseHelper{}
	conn = &mocks.CollectionHelper{}
	cursorHelper = &mocks.CursorHelper{}

	cursorHelper.(*mocks.CursorHelper).On("Decode", mock.Anything).Return(nil)
	conn.(*mocks.CollectionHelper).On("Aggregate", mock.Anything, mock.Anything).Return(cursorHelper, nil)
	db.(*MockDatabaseHelper).On("Collection", "drones").Return(conn)

	an := handlers.Analytics{DDB: databases.NewDroneDatabase(db)}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(an.DroneAnalyticsHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if rr.Body.String() != "[]" {
		t.Errorf("handler returned unexpected body: got %v want []", rr.Body.String())
	}
}

func TestMetricsSummaryHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/metrics/summary", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(handlers.MetricsSummaryHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "totalRequests") || !strings.Contains(rr.Body.String(), "errorRate") {
		t.Errorf("handler returned unexpected body: got %v", rr.Body.String())
	}
}

func TestMetricsRoutesHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/metrics/routes", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(handlers.MetricsRoutesHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
}

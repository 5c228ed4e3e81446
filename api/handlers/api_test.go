package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phoenix-eye/phoenix-eye-api/api"
	"github.com/phoenix-eye/phoenix-eye-api/models"
)

var a App

func executeRequest(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	return rr
}

func checkResponseCode(t *testing.T, expected, actual int) {
	if expected != actual {
		t.Errorf("Expected response code %d. Got %d\n", expected, actual)
	}
}

func TestUnknownRoute(t *testing.T) {
	a.Router = a.New()
	req, _ := http.NewRequest("GET", "/asdf", nil)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusNotFound, response.Code)
}

func TestHealthCheckRoute(t *testing.T) {
	a.Router = a.New()
	req, _ := http.NewRequest("GET", "/health", nil)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusOK, response.Code)

	if !strings.Contains(response.Body.String(), "alive") {
		t.Errorf("Expected 'alive' in the reponse. Got '%s'", response.Body.String())
	}
}

func TestApp_ReportsHandlerUnauthorized(t *testing.T) {
	a.Router = a.New()
	req, _ := http.NewRequest("GET", "/api/v1/reports", nil)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusUnauthorized, response.Code)
}

func TestApp_ReportsHandlerInvalidToken(t *testing.T) {
	a.Config.SecretKey = "test-secret"
	a.Router = a.New()
	req, _ := http.NewRequest("GET", "/api/v1/reports", nil)
	req.Header.Add("Authorization", "Bearer asdfasdf")
	response := executeRequest(req)

	checkResponseCode(t, http.StatusUnauthorized, response.Code)

	var m map[string]string
	json.Unmarshal(response.Body.Bytes(), &m)
	if m["error"] != "unauthorized" {
		t.Errorf("Expected the 'error' key of the reponse to be set to 'unauthorized'. Got '%s'", m["error"])
	}
}

func TestApp_AdminRouteForbiddenForCitizen(t *testing.T) {
	a.Config.SecretKey = "test-secret"
	a.Router = a.New()

	token, err := api.Auth{Secret: "test-secret"}.NewToken(models.User{Role: models.RoleCitizen, Email: "sara@example.com"})
	if err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequest("GET", "/api/v1/users", nil)
	req.Header.Add("Authorization", "Bearer "+token)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusForbidden, response.Code)

	var m map[string]string
	json.Unmarshal(response.Body.Bytes(), &m)
	if m["error"] != "admin role required" {
		t.Errorf("Expected the 'error' key of the reponse to be set to 'admin role required'. Got '%s'", m["error"])
	}
}

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
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/phoenix-eye/phoenix-eye-api/api"
	"github.com/phoenix-eye/phoenix-eye-api/config"
	"github.com/phoenix-eye/phoenix-eye-api/databases"
	"github.com/phoenix-eye/phoenix-eye-api/models"
)

// User exported for testing purposes
type User struct {
	DB   databases.UserDatabase
	Auth api.Auth
}

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is returned by both register and login
type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// RegisterHandler creates a new account and returns a bearer token for it
func (u User) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	if body.FullName == "" || body.Email == "" || body.Password == "" {
		config.ErrorStatus("failed to register", http.StatusBadRequest, w, errors.New("fullName, email and password are required"))
		return
	}
	if body.Role == "" {
		body.Role = models.RoleCitizen
	}
	if body.Role != models.RoleCitizen && body.Role != models.RoleAdmin {
		config.ErrorStatus("failed to register", http.StatusBadRequest, w, errors.New("unknown role"))
		return
	}

	count, err := u.DB.CountDocuments(context.Background(), bson.M{"email": body.Email})
	if err != nil {
		config.ErrorStatus("failed to register", http.StatusInternalServerError, w, err)
		return
	}
	if count > 0 {
		config.ErrorStatus("failed to register", http.StatusConflict, w, errors.New("email already registered"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to register", http.StatusInternalServerError, w, err)
		return
	}

	user := models.User{
		ID:        primitive.NewObjectID(),
		FullName:  body.FullName,
		Email:     body.Email,
		Password:  string(hash),
		Role:      body.Role,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}

	if _, err := u.DB.InsertOne(context.Background(), user); err != nil {
		config.ErrorStatus("failed to register", http.StatusInternalServerError, w, err)
		return
	}

	token, err := u.Auth.NewToken(user)
	if err != nil {
		config.ErrorStatus("failed to sign token", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Infow("user registered", "email", user.Email, "role", user.Role)

	b, err := json.Marshal(authResponse{Token: token, User: user})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// LoginHandler checks credentials and returns a bearer token. Unknown email
// and bad password both come back as the same 401 so the endpoint does not
// leak which accounts exist.
func (u User) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if body.Email == "" || body.Password == "" {
		config.ErrorStatus("failed to login", http.StatusBadRequest, w, errors.New("email and password are required"))
		return
	}

	user, err := u.DB.FindOne(context.Background(), bson.M{"email": body.Email})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("failed to login", http.StatusUnauthorized, w, errors.New("invalid credentials"))
			return
		}
		config.ErrorStatus("failed to login", http.StatusInternalServerError, w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(body.Password)); err != nil {
		config.ErrorStatus("failed to login", http.StatusUnauthorized, w, errors.New("invalid credentials"))
		return
	}

	token, err := u.Auth.NewToken(*user)
	if err != nil {
		config.ErrorStatus("failed to sign token", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(authResponse{Token: token, User: *user})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// MeHandler returns the account behind the bearer token
func (u User) MeHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := api.UserFromContext(r.Context())
	if !ok {
		config.ErrorStatus("failed to get current user", http.StatusUnauthorized, w, errors.New("no claims in context"))
		return
	}

	uID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	user, err := u.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(user)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UsersHandler returns all users
func (u User) UsersHandler(w http.ResponseWriter, r *http.Request) {
	dbResp, err := u.DB.Find(context.TODO(), bson.D{})
	if err != nil {
		config.ErrorStatus("failed to get users", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.User{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UserByIDHandler returns a user by ID
func (u User) UserByIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := u.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
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

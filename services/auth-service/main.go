package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"

	"hazard-reporting-system/pkg/database"
	"hazard-reporting-system/pkg/middleware"
	"hazard-reporting-system/pkg/response"
	"hazard-reporting-system/services/auth-service/identity"
	"hazard-reporting-system/services/auth-service/models"
	"hazard-reporting-system/services/auth-service/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var db *gorm.DB

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// isValidEmail validates email format
func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// isValidPassword checks password strength
func isValidPassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters"
	}
	if len(password) > 100 {
		return false, "Password too long"
	}
	return true, ""
}

func main() {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		os.Getenv("POSTGRES_HOST"),
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("POSTGRES_DB"),
		os.Getenv("POSTGRES_PORT"),
	)

	if os.Getenv("POSTGRES_HOST") == "" {
		dsn = "host=localhost user=admin password=password dbname=auth_db port=5434 sslmode=disable TimeZone=UTC"
	}

	var err error
	db, err = database.ConnectPostgres(dsn)
	if err != nil {
		log.Fatalf("[ERROR] Failed to connect to database: %v", err)
	}

	log.Println("[INFO] Running auto migration")
	if err := db.AutoMigrate(&models.User{}); err != nil {
		log.Fatalf("[ERROR] Migration failed: %v", err)
	}
	log.Println("[OK] Migration success")

	http.HandleFunc("/api/auth/register", middleware.LoggerMiddleware(http.HandlerFunc(registerHandler)).ServeHTTP)
	http.HandleFunc("/api/auth/login", middleware.LoggerMiddleware(http.HandlerFunc(loginHandler)).ServeHTTP)
	http.HandleFunc("/api/auth/darpan", middleware.LoggerMiddleware(http.HandlerFunc(darpanLoginHandler)).ServeHTTP)
	http.HandleFunc("/api/auth/gmail", middleware.LoggerMiddleware(http.HandlerFunc(gmailLoginHandler)).ServeHTTP)

	http.HandleFunc("/api/auth/me", middleware.LoggerMiddleware(middleware.AuthMiddleware(http.HandlerFunc(meHandler))).ServeHTTP)

	http.HandleFunc("/health", healthCheckHandler)

	port := ":8081"
	log.Printf("[INFO] Auth Service running on port %s", port)
	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatalf("[ERROR] Server failed: %v", err)
	}
}

func registerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Phone    string `json:"phone"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		log.Printf("[WARN] Invalid request format")
		response.Error(w, http.StatusBadRequest, "Invalid request payload", "")
		return
	}

	if input.Email == "" || input.Password == "" || input.Name == "" {
		response.Error(w, http.StatusBadRequest, "Email, Password, and Name are required", "")
		return
	}

	if !isValidEmail(input.Email) {
		response.Error(w, http.StatusBadRequest, "Invalid email format", "")
		return
	}

	if valid, msg := isValidPassword(input.Password); !valid {
		response.Error(w, http.StatusBadRequest, msg, "")
		return
	}

	if len(strings.TrimSpace(input.Name)) < 3 {
		response.Error(w, http.StatusBadRequest, "Name must be at least 3 characters", "")
		return
	}

	var existingUser models.User
	if result := db.Where("email = ?", input.Email).First(&existingUser); result.Error == nil {
		log.Printf("[WARN] Registration attempt with existing email")
		response.Error(w, http.StatusConflict, "Email already registered", "")
		return
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		log.Printf("[ERROR] Failed to hash password: %v", err)
		response.Error(w, http.StatusInternalServerError, "Failed to process registration", "")
		return
	}

	newUser := models.User{
		Email:    &input.Email,
		Password: hashedPassword,
		Name:     strings.TrimSpace(input.Name),
		Phone:    input.Phone,
		Role:     identity.RoleCitizen,
	}

	if err := db.Create(&newUser).Error; err != nil {
		log.Printf("[ERROR] Failed to save user to database: %v", err)
		response.Error(w, http.StatusInternalServerError, "Failed to save user", "")
		return
	}

	log.Printf("[OK] User registered - ID: %s", newUser.ID)

	issueToken(w, http.StatusCreated, "User registered successfully", &newUser)
}

func loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		log.Printf("[WARN] Invalid login request format")
		response.Error(w, http.StatusBadRequest, "Invalid request payload", "")
		return
	}

	if input.Email == "" || input.Password == "" {
		response.Error(w, http.StatusBadRequest, "Email and Password are required", "")
		return
	}

	var user models.User
	if err := db.Where("email = ?", input.Email).First(&user).Error; err != nil {
		log.Printf("[WARN] Failed login attempt")
		response.Error(w, http.StatusUnauthorized, "Invalid email or password", "")
		return
	}

	if !utils.CheckPasswordHash(input.Password, user.Password) {
		log.Printf("[WARN] Invalid password attempt")
		response.Error(w, http.StatusUnauthorized, "Invalid email or password", "")
		return
	}

	log.Printf("[OK] User logged in - ID: %s, Role: %s", user.ID, user.Role)
	issueToken(w, http.StatusOK, "Login successful", &user)
}

// darpanLoginHandler authenticates by Darpan credential. The resolved id
// (NGO_ prefixed for NGO accounts) is the identity the hazard service keys
// reputation on; the account row is created on first login.
func darpanLoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	var input struct {
		DarpanID string `json:"darpan_id"`
		IsNGO    bool   `json:"is_ngo"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request payload", "")
		return
	}

	userID, err := identity.Resolve(strings.TrimSpace(input.DarpanID), input.IsNGO)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid Darpan ID", "Must be alphanumeric and at least 6 characters")
		return
	}

	user, err := findOrCreateExternal(userID, identity.RoleFor(input.IsNGO))
	if err != nil {
		log.Printf("[ERROR] Failed to upsert Darpan user: %v", err)
		response.Error(w, http.StatusInternalServerError, "Failed to process login", "")
		return
	}

	log.Printf("[OK] Darpan login - ID: %s, Role: %s", userID, user.Role)
	issueToken(w, http.StatusOK, "Login successful", user)
}

// gmailLoginHandler authenticates by Gmail address. A stand-in for a full
// OAuth handshake: the derived GMAIL_ identity matches what the handshake
// would produce.
func gmailLoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	var input struct {
		Email string `json:"email"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request payload", "")
		return
	}

	userID, err := identity.ResolveEmail(input.Email)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid Gmail address", "")
		return
	}

	user, err := findOrCreateExternal(userID, identity.RoleCitizen)
	if err != nil {
		log.Printf("[ERROR] Failed to upsert Gmail user: %v", err)
		response.Error(w, http.StatusInternalServerError, "Failed to process login", "")
		return
	}

	log.Printf("[OK] Gmail login - ID: %s", userID)
	issueToken(w, http.StatusOK, "Login successful", user)
}

func findOrCreateExternal(externalID, role string) (*models.User, error) {
	var user models.User
	err := db.Where("external_id = ?", externalID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{
		ExternalID: &externalID,
		Role:       role,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func issueToken(w http.ResponseWriter, statusCode int, message string, user *models.User) {
	email := ""
	if user.Email != nil {
		email = *user.Email
	}

	token, err := utils.GenerateJWT(user.ReportingID(), email, user.Name, user.Role)
	if err != nil {
		log.Printf("[ERROR] Failed to generate JWT for user id: %s", user.ID)
		response.Error(w, http.StatusInternalServerError, "Failed to generate token", "")
		return
	}

	response.Success(w, statusCode, message, map[string]interface{}{
		"id":    user.ReportingID(),
		"token": token,
		"name":  user.Name,
		"role":  user.Role,
	})
}

func meHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(middleware.UserContextKey).(*middleware.UserClaims)
	if !ok {
		response.Error(w, http.StatusInternalServerError, "Failed to retrieve user context", "")
		return
	}

	var user models.User
	err := db.Where("external_id = ?", claims.UserID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Password accounts carry the row id itself in the token.
		if _, parseErr := uuid.Parse(claims.UserID); parseErr == nil {
			err = db.Where("id = ?", claims.UserID).First(&user).Error
		}
	}
	if err != nil {
		response.Error(w, http.StatusNotFound, "User not found", "")
		return
	}

	response.Success(w, http.StatusOK, "User profile fetched", user)
}

// healthCheckHandler returns service health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":  "UP",
		"service": "auth-service",
	}

	sqlDB, err := db.DB()
	if err != nil || sqlDB.Ping() != nil {
		health["status"] = "DOWN"
		health["database"] = "disconnected"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		health["database"] = "connected"
		w.WriteHeader(http.StatusOK)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

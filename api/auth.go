package api

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler signs in the single admin account configured for the service.
type AuthHandler struct {
	username      string
	passwordHash  string
	jwtSecret     string
	tokenDuration time.Duration
}

func NewAuthHandler(username, passwordHash, jwtSecret string, tokenDuration time.Duration) *AuthHandler {
	if tokenDuration <= 0 {
		tokenDuration = time.Hour
	}
	return &AuthHandler{username: username, passwordHash: passwordHash, jwtSecret: jwtSecret, tokenDuration: tokenDuration}
}

type signinRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Missing fields", http.StatusBadRequest)
		return
	}

	// bcrypt runs for unknown usernames too
	pwErr := bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password))
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.username)) == 1
	if h.username == "" || !userOK || pwErr != nil {
		logger.Warn("admin signin rejected", "username", req.Username)
		http.Error(w, "Credentials not found", http.StatusUnauthorized)
		return
	}

	exp := time.Now().Add(h.tokenDuration)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": h.username,
		"iat": time.Now().Unix(),
		"exp": exp.Unix(),
	})
	tokenStr, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		http.Error(w, "Error signing token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(authResponse{Token: tokenStr, ExpiresAt: exp.Unix()})
}

func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	// For stateless JWT, signout is client-side (just delete token)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"message":"signed out"}`)
}

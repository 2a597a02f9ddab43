// Implements Basic and Bearer authentication for the API.

package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maruel/musicmark/internal/server/dto"
	"github.com/maruel/musicmark/internal/storage"
)

// tokenTTL is how long a login token stays valid.
const tokenTTL = 7 * 24 * time.Hour

// authFunc authenticates a request. On failure it writes the error
// response itself and returns false.
type authFunc func(w http.ResponseWriter, r *http.Request) (*storage.User, bool)

// basicAuth authenticates scrobbling API requests with HTTP Basic
// credentials, the way hobbyist scrobblers expect.
func (s *Server) basicAuth(w http.ResponseWriter, r *http.Request) (*storage.User, bool) {
	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="MusicMark API"`)
		writeError(w, dto.Unauthorized())
		return nil, false
	}
	user, err := s.svc.Users.Authenticate(username, password)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Basic realm="MusicMark API"`)
		writeError(w, dto.Unauthorized())
		return nil, false
	}
	return user, true
}

// bearerAuth authenticates management requests with a JWT issued by Login.
func (s *Server) bearerAuth(w http.ResponseWriter, r *http.Request) (*storage.User, bool) {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		writeError(w, dto.Unauthorized())
		return nil, false
	}
	id, err := s.verifyToken(auth[len(prefix):])
	if err != nil {
		writeError(w, dto.Unauthorized())
		return nil, false
	}
	user := s.svc.Users.Get(id)
	if user == nil {
		writeError(w, dto.Unauthorized())
		return nil, false
	}
	return user, true
}

// adminAuth is bearerAuth plus an admin role check.
func (s *Server) adminAuth(w http.ResponseWriter, r *http.Request) (*storage.User, bool) {
	user, ok := s.bearerAuth(w, r)
	if !ok {
		return nil, false
	}
	if user.Role != storage.RoleAdmin {
		writeError(w, dto.Forbidden("admin role required"))
		return nil, false
	}
	return user, true
}

// issueToken creates a signed bearer token for the user.
func (s *Server) issueToken(user *storage.User, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":      strconv.FormatInt(user.ID, 10),
		"username": user.Username,
		"role":     string(user.Role),
		"iat":      now.Unix(),
		"exp":      now.Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.cfg.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// verifyToken validates a bearer token and returns the user id it names.
func (s *Server) verifyToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.cfg.JWTSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token: %w", err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return 0, fmt.Errorf("invalid token subject: %w", err)
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token subject: %w", err)
	}
	return id, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/playgate/playgate/internal/auth"
	"github.com/playgate/playgate/internal/observability"
	"github.com/playgate/playgate/pkg/errutil"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// birthdateLayout is the wire format of birthdates.
const birthdateLayout = "2006-01-02"

// resultSuccess is the metric label for successful attempts.
const resultSuccess = "success"

// AuthService is the subset of auth.Service the handlers call.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (auth.UserID, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResult, error)
	LogoutToken(ctx context.Context, token string) error
	LogoutSession(ctx context.Context, token string, sessionID auth.SessionID) error
	ValidateSession(ctx context.Context, token string) (*auth.Session, error)
}

// Handler serves the account endpoints.
type Handler struct {
	svc     AuthService
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewHandler creates a Handler. metrics may be nil.
func NewHandler(svc AuthService, logger *slog.Logger, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger, metrics: metrics}
}

type registerRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	Birthdate string `json:"birthdate" validate:"required,datetime=2006-01-02"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

type registerResponse struct {
	ID int64 `json:"id"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type logoutRequest struct {
	SessionID string `json:"session_id"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

var dtoValidator = validator.New(validator.WithRequiredStructEnabled())

// MountRoutes registers the account endpoints on r. loginLimit wraps the
// login route; nil means unlimited.
func (h *Handler) MountRoutes(r chi.Router, loginLimit func(http.Handler) http.Handler) {
	r.Post("/register", h.register)
	r.Group(func(r chi.Router) {
		if loginLimit != nil {
			r.Use(loginLimit)
		}
		r.Post("/login", h.login)
	})
	r.Post("/logout", h.logout)
	r.Get("/session", h.session)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.countRegistration(err)
		h.respondError(w, r, err)
		return
	}

	req := auth.RegisterRequest{
		Username:  body.Username,
		Password:  body.Password,
		Email:     body.Email,
		FirstName: body.FirstName,
		LastName:  body.LastName,
	}
	if err := dtoValidator.Struct(body); err != nil {
		err = oops.Code("AUTH_INVALID_REQUEST").
			With("fields", []string{"birthdate"}).
			Wrap(auth.ErrInvalidRequest)
		h.countRegistration(err)
		h.respondError(w, r, err)
		return
	}
	// Format already checked by the validator.
	req.Birthdate, _ = time.Parse(birthdateLayout, body.Birthdate)

	id, err := h.svc.Register(r.Context(), req)
	h.countRegistration(err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{ID: int64(id)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.countLogin(err)
		h.respondError(w, r, err)
		return
	}

	result, err := h.svc.Login(r.Context(), auth.LoginRequest{
		Username: body.Username,
		Password: body.Password,
	})
	h.countLogin(err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		SessionID: result.Session.ID.String(),
		Token:     result.Token,
		ExpiresAt: result.Session.ExpiresAt,
	})
}

// logout revokes the caller's session, or with a {"session_id"} body another
// session of the same user. A bearer token is always required.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		h.respondError(w, r, oops.Code("SESSION_TOKEN_EMPTY").Wrap(auth.ErrInvalidSession))
		return
	}

	id, hasID, err := logoutTarget(w, r)
	switch {
	case err != nil:
	case hasID:
		err = h.svc.LogoutSession(r.Context(), token, id)
	default:
		err = h.svc.LogoutToken(r.Context(), token)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SessionsRevokedTotal.Inc()
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "logged out"})
}

// logoutTarget reads the optional session id from the body. An empty body
// selects the caller's own session.
func logoutTarget(w http.ResponseWriter, r *http.Request) (auth.SessionID, bool, error) {
	var body logoutRequest
	if err := decodeBody(w, r, &body); err != nil {
		if errors.Is(err, errEmptyBody) {
			return auth.SessionID{}, false, nil
		}
		return auth.SessionID{}, false, err
	}
	id, err := ulid.ParseStrict(body.SessionID)
	if err != nil {
		return auth.SessionID{}, false, oops.Code("AUTH_INVALID_REQUEST").
			With("fields", []string{"session_id"}).
			Wrap(auth.ErrInvalidRequest)
	}
	return id, true, nil
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		h.respondError(w, r, oops.Code("SESSION_TOKEN_EMPTY").Wrap(auth.ErrInvalidSession))
		return
	}

	session, err := h.svc.ValidateSession(r.Context(), token)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: session.ID.String(),
		UserID:    int64(session.UserID),
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *Handler) countRegistration(err error) {
	if h.metrics != nil {
		h.metrics.RegistrationsTotal.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (h *Handler) countLogin(err error) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	errutil.LogErrorContext(r.Context(), h.logger, msg, err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()))
}

func resultLabel(err error) string {
	if err == nil {
		return resultSuccess
	}
	return auth.KindOf(err).String()
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return oops.Code("HTTP_EMPTY_BODY").Wrap(errEmptyBody)
		}
		return oops.Code("HTTP_BAD_BODY").With("error", err.Error()).Wrap(errBadBody)
	}
	return nil
}

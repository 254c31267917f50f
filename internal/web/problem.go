// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/playgate/playgate/internal/auth"
)

// Problem is an RFC 7807 problem document.
type Problem struct {
	Type   string   `json:"type,omitempty"`
	Title  string   `json:"title"`
	Status int      `json:"status"`
	Detail string   `json:"detail,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

// problemContentType is the media type of RFC 7807 bodies.
const problemContentType = "application/problem+json"

// errBadBody marks a request body that could not be decoded. It classifies
// as an invalid request.
var errBadBody = fmt.Errorf("%w: malformed request body", auth.ErrInvalidRequest)

// errEmptyBody marks a request without a body.
var errEmptyBody = fmt.Errorf("%w: empty", errBadBody)

// StatusFor maps an error kind onto an HTTP status code.
func StatusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindNone:
		return http.StatusOK
	case auth.KindInvalidRequest:
		return http.StatusBadRequest
	case auth.KindDuplicateUsername, auth.KindDuplicateEmail:
		return http.StatusConflict
	case auth.KindInvalidCredentials, auth.KindInvalidSession,
		auth.KindSessionExpired, auth.KindSessionRevoked:
		return http.StatusUnauthorized
	case auth.KindSessionNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// problemFor builds the client-facing problem for err. Messages are generic;
// server failures carry no detail.
func problemFor(err error) Problem {
	if errors.Is(err, errBadBody) {
		return Problem{Title: "Bad Request", Status: http.StatusBadRequest, Detail: "malformed request body"}
	}

	kind := auth.KindOf(err)
	status := StatusFor(kind)
	p := Problem{Title: http.StatusText(status), Status: status}

	switch kind {
	case auth.KindInvalidRequest:
		p.Detail = "invalid request"
		p.Fields = invalidFields(err)
	case auth.KindDuplicateUsername:
		p.Detail = auth.ErrDuplicateUsername.Error()
	case auth.KindDuplicateEmail:
		p.Detail = auth.ErrDuplicateEmail.Error()
	case auth.KindInvalidCredentials:
		p.Detail = auth.ErrInvalidCredentials.Error()
	case auth.KindInvalidSession:
		p.Detail = auth.ErrInvalidSession.Error()
	case auth.KindSessionExpired:
		p.Detail = auth.ErrSessionExpired.Error()
	case auth.KindSessionRevoked:
		p.Detail = auth.ErrSessionRevoked.Error()
	case auth.KindSessionNotFound:
		p.Detail = auth.ErrSessionNotFound.Error()
	}
	return p
}

func invalidFields(err error) []string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	fields, _ := oopsErr.Context()["fields"].([]string)
	return fields
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have disconnected
	json.NewEncoder(w).Encode(body)
}

func writeProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(p.Status)
	//nolint:errcheck // client may have disconnected
	json.NewEncoder(w).Encode(p)
}

// respondError writes the problem for err and logs server failures.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	p := problemFor(err)
	if p.Status >= http.StatusInternalServerError {
		h.logError(r, "request failed", err)
	} else {
		h.logger.DebugContext(r.Context(), "request rejected",
			slog.Int("status", p.Status),
			slog.String("kind", auth.KindOf(err).String()))
	}
	writeProblem(w, p)
}

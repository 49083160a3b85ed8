// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package v1 provides version 1 of the tokend API.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/apexid/tokend/pkg/logger"
	"github.com/apexid/tokend/pkg/tokens"
)

// TokenRoutes defines the routes for the tokens API.
type TokenRoutes struct {
	service *tokens.Service
}

// TokenRouter creates a new router for the tokens API.
func TokenRouter(service *tokens.Service) http.Handler {
	routes := TokenRoutes{service: service}

	r := chi.NewRouter()

	r.Post("/", routes.issueToken)
	r.Route("/{token}", func(r chi.Router) {
		r.Get("/", routes.validateToken)
		r.Post("/refresh", routes.refreshToken)
		r.Get("/age", routes.maxTokenAge)
	})

	return r
}

// issueTokenRequest is the request body for minting a token.
type issueTokenRequest struct {
	// Category is one of "access", "refresh", "email" or "offline".
	Category string `json:"category"`
	// Type is a free-form type tag; defaults to "access" when omitted.
	Type string `json:"type,omitempty"`
	// Principal optionally ties the token to its owning entity.
	Principal *principalPayload `json:"principal,omitempty"`
	// State is an opaque map persisted alongside the token.
	State map[string]any `json:"state,omitempty"`
}

// principalPayload is the wire form of a token principal.
type principalPayload struct {
	Type          string `json:"type"`
	EntityID      string `json:"entity_id"`
	ApplicationID string `json:"application_id"`
}

// tokenResponse carries a newly minted or refreshed opaque token.
type tokenResponse struct {
	Token string `json:"token"`
}

// tokenInfoResponse is the introspection view of a validated token.
type tokenInfoResponse struct {
	UUID      string            `json:"uuid"`
	Type      string            `json:"type"`
	Created   int64             `json:"created"`
	Accessed  int64             `json:"accessed"`
	Inactive  int64             `json:"inactive"`
	Principal *principalPayload `json:"principal,omitempty"`
	State     map[string]any    `json:"state"`
}

// tokenAgeResponse reports the maximum allowed age of a token in
// milliseconds.
type tokenAgeResponse struct {
	MaxAgeMillis int64 `json:"max_age_millis"`
}

func (t *TokenRoutes) issueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Errorf("Failed to decode request body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	category, err := tokens.ParseCategory(req.Category)
	if err != nil {
		http.Error(w, fmt.Sprintf("Unknown token category: %s", req.Category), http.StatusBadRequest)
		return
	}

	principal, err := req.Principal.toPrincipal()
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid principal: %v", err), http.StatusBadRequest)
		return
	}

	token, err := t.service.Issue(r.Context(), category, req.Type, principal, req.State)
	if err != nil {
		writeTokenError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(tokenResponse{Token: token}); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

func (t *TokenRoutes) validateToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	info, err := t.service.Validate(r.Context(), token)
	if err != nil {
		writeTokenError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newTokenInfoResponse(info)); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

func (t *TokenRoutes) refreshToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	refreshed, err := t.service.Refresh(r.Context(), token)
	if err != nil {
		writeTokenError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tokenResponse{Token: refreshed}); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

func (t *TokenRoutes) maxTokenAge(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	age, err := t.service.MaxTokenAge(token)
	if err != nil {
		writeTokenError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tokenAgeResponse{MaxAgeMillis: age}); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

// writeTokenError maps the token service error taxonomy onto HTTP status
// codes: malformed tokens are the client's fault, expired or unknown
// tokens fail authentication, and store trouble is server-side.
func writeTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tokens.ErrBadToken):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, tokens.ErrExpiredToken), errors.Is(err, tokens.ErrInvalidToken):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, tokens.ErrStore):
		logger.Errorf("Token store failure: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	default:
		logger.Errorf("Token service failure: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (p *principalPayload) toPrincipal() (*tokens.Principal, error) {
	if p == nil {
		return nil, nil
	}

	principalType, ok := tokens.ParsePrincipalType(p.Type)
	if !ok {
		return nil, fmt.Errorf("unknown principal type %q", p.Type)
	}
	entityID, err := uuid.Parse(p.EntityID)
	if err != nil {
		return nil, fmt.Errorf("malformed entity_id: %v", err)
	}
	applicationID, err := uuid.Parse(p.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("malformed application_id: %v", err)
	}

	return &tokens.Principal{
		Type:          principalType,
		EntityID:      entityID,
		ApplicationID: applicationID,
	}, nil
}

func newTokenInfoResponse(info *tokens.TokenInfo) tokenInfoResponse {
	resp := tokenInfoResponse{
		UUID:     info.UUID.String(),
		Type:     info.Type,
		Created:  info.Created,
		Accessed: info.Accessed,
		Inactive: info.Inactive,
		State:    info.State,
	}
	if info.Principal != nil {
		resp.Principal = &principalPayload{
			Type:          string(info.Principal.Type),
			EntityID:      info.Principal.EntityID.String(),
			ApplicationID: info.Principal.ApplicationID.String(),
		}
	}
	return resp
}

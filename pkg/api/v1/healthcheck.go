// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/apexid/tokend/pkg/storage/columns"
)

// healthProbeKey is a row no token can collide with; token rows are
// keyed by raw 16-byte identifiers.
var healthProbeKey = []byte("tokend:health:probe")

// HealthcheckRouter sets up the healthcheck route.
func HealthcheckRouter(store columns.Store) http.Handler {
	routes := &healthcheckRoutes{store: store}
	r := chi.NewRouter()
	r.Get("/", routes.getHealthcheck)
	return r
}

type healthcheckRoutes struct {
	store columns.Store
}

func (h *healthcheckRoutes) getHealthcheck(w http.ResponseWriter, r *http.Request) {
	// Reading a missing row is not an error, so any failure here means
	// the storage backend is unreachable.
	if _, err := h.store.GetColumns(r.Context(), healthProbeKey, []string{"probe"}); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/apexid/tokend/pkg/logger"
	"github.com/apexid/tokend/pkg/versions"
)

// VersionRouter sets up the version route.
func VersionRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", getVersion)
	return r
}

// versionResponse carries the version of the running server.
type versionResponse struct {
	Version string `json:"version"`
}

func getVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(versionResponse{Version: versions.GetVersionInfo().Version}); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

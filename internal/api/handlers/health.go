package handlers

import (
	"net/http"

	"github.com/qivr/analytics-etl/internal/buildconfig"
)

func Health(w http.ResponseWriter, r *http.Request) {
	info := buildconfig.VersionInfo()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": info["version"],
		"commit":  info["commit"],
	})
}

package handler

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"

	"objectvision/internal/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// render executes a named page template with the given status code.
func render(w http.ResponseWriter, logger *logger.Logger, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		logger.Error("Error rendering %s: %v", name, err)
	}
}

func respondJSON(w http.ResponseWriter, logger *logger.Logger, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, logger *logger.Logger, message string, status int) {
	respondJSON(w, logger, map[string]string{"error": message}, status)
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

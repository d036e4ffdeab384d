package handlers

import (
	"net/http"
	"time"
)

type healthStatus struct {
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// Health reports that service is up.
func Health(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, healthStatus{Service: service, Timestamp: time.Now().UTC()})
	}
}

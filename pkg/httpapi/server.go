// Package httpapi implements the external Job API and notification
// WebSocket endpoint (spec §6.1, §6.2): a gorilla/mux router translating
// HTTP requests into Task Store / Dispatcher / Disk-Space Governor calls
// and taxonomy-tagged errors into the {success, data, message, errorType}
// envelope.
//
// Grounded on noisefs's Server+mux.Router+APIResponse shape, generalized
// from a single mock-data server into one backed by the Task Store.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"videoconv/pkg/diskgov"
	"videoconv/pkg/dispatcher"
	"videoconv/pkg/notify"
	"videoconv/pkg/retention"
	"videoconv/pkg/store"
)

// Server owns every dependency a Job API handler needs.
type Server struct {
	Jobs       *store.JobStore
	Batches    *store.BatchStore
	Dispatcher *dispatcher.Dispatcher
	Governor   *diskgov.Governor
	Bus        *notify.Bus
	Retention  *retention.Tracker

	OutputPath string
}

// NewRouter builds the complete mux.Router for the Job API and the
// notification WebSocket endpoint.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/jobs", s.handleCreateJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/cancel", s.handleCancelJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}/output", s.handleDownloadOutput).Methods(http.MethodGet)

	r.HandleFunc("/batches", s.handleCreateBatch).Methods(http.MethodPost)
	r.HandleFunc("/batches/{id}", s.handleGetBatch).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.Bus.ServeWS)

	return r
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"videoconv/pkg/store"
)

// envelope is the wire shape every Job API response uses (spec §6.1),
// grounded on noisefs's APIResponse but widened with errorType so a
// client can distinguish StorageError/QuotaError/IOError without parsing
// the message string (spec §7: "The HTTP surface is the only layer that
// translates errors into user-visible responses").
type envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	ErrorType string      `json:"errorType,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("httpapi: encode response failed", "err", err)
	}
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeCreated(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: data})
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: message, ErrorType: string(store.KindNotFound)})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: message, ErrorType: "ValidationError"})
}

// writeStoreErr translates a taxonomy-tagged store.Error (spec §7) into
// the envelope's errorType field; any other error is reported as an
// opaque StorageError at 500.
func writeStoreErr(w http.ResponseWriter, err error) {
	var se *store.Error
	if errors.As(err, &se) {
		status := http.StatusInternalServerError
		switch se.Kind {
		case store.KindQuota:
			status = http.StatusInsufficientStorage
		case store.KindNotFound:
			status = http.StatusNotFound
		case store.KindIO:
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, envelope{Success: false, Message: se.Error(), ErrorType: string(se.Kind)})
		return
	}
	log.Error("httpapi: unclassified error", "err", err)
	writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Message: err.Error(), ErrorType: string(store.KindStorage)})
}

package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"videoconv/pkg/estimator"
	"videoconv/pkg/notify"
	"videoconv/pkg/preset"
	"videoconv/pkg/store"
)

// createJobResponse is POST /jobs's data payload (spec §6.1).
type createJobResponse struct {
	TaskID            string   `json:"taskId"`
	TaskName          string   `json:"taskName"`
	Message           string   `json:"message"`
	EstimatedDuration *float64 `json:"estimatedDuration,omitempty"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req StartConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	if req.InputPath == "" {
		writeBadRequest(w, "inputPath is required")
		return
	}

	p := preset.GetDefault()
	if req.Preset != "" {
		resolved, ok := preset.GetByName(req.Preset)
		if !ok {
			writeBadRequest(w, "unknown preset: "+req.Preset)
			return
		}
		p = resolved
	}

	info, err := os.Stat(req.InputPath)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{
			Success: false, Message: "input file not found: " + err.Error(), ErrorType: string(store.KindIO),
		})
		return
	}
	inputBytes := info.Size()

	if s.Governor != nil {
		settings := estimatorSettingsFor(req, p)
		result := estimator.Estimate(inputBytes, settings)
		check, err := s.Governor.CheckSpace(r.Context(), result.TotalRequiredBytes)
		if err != nil {
			writeStoreErr(w, err)
			return
		}
		if !check.Sufficient {
			writeJSON(w, http.StatusInsufficientStorage, envelope{
				Success:   false,
				Message:   "insufficient disk space for this conversion",
				ErrorType: string(store.KindQuota),
			})
			return
		}
	}

	container := req.OutputFormat
	if container == "" {
		container = p.Container
	}

	job := store.Job{
		Name:       req.TaskName,
		InputPath:  req.InputPath,
		InputBytes: inputBytes,
		PresetName: p.Name,
		Overrides:  overridesFromRequest(req),
		BatchID:    req.BatchID,
	}
	created, err := s.Jobs.Create(r.Context(), job)
	if err != nil {
		writeStoreErr(w, err)
		return
	}

	outputPath := defaultOutputPath(s.OutputPath, created.ID, container)
	if err := s.Jobs.SetOutputPath(r.Context(), created.ID, outputPath); err != nil {
		writeStoreErr(w, err)
		return
	}
	created.OutputPath = outputPath

	s.Bus.Publish(created.ID, notify.KindTaskCreated, notify.TaskCreated{
		JobID: created.ID, Name: created.Name,
	})

	writeCreated(w, createJobResponse{
		TaskID:   created.ID,
		TaskName: created.Name,
		Message:  "conversion queued",
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := s.Jobs.Get(r.Context(), id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if job == nil {
		writeNotFound(w, "job not found")
		return
	}
	writeOK(w, toJobDTO(*job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != "active" {
		writeBadRequest(w, "unsupported status filter: "+status)
		return
	}
	jobs, err := s.Jobs.ListActive(r.Context())
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	dtos := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		dtos = append(dtos, toJobDTO(j))
	}
	writeOK(w, dtos)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := s.Jobs.Get(r.Context(), id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if job == nil {
		writeNotFound(w, "job not found")
		return
	}
	// Cancel is idempotent (spec §6.1): a terminal job's cancel request is
	// a no-op that still reports the current (already-terminal) status.
	if !job.Status.Terminal() {
		s.Dispatcher.Cancel(id)
	}
	writeOK(w, map[string]int{"status": int(job.Status)})
}

func (s *Server) handleDownloadOutput(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := s.Jobs.Get(r.Context(), id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if job == nil {
		writeNotFound(w, "job not found")
		return
	}
	if job.Status != store.StatusCompleted {
		writeBadRequest(w, "job has not completed")
		return
	}

	f, err := os.Open(job.OutputPath)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, envelope{
			Success: false, Message: "output file unavailable: " + err.Error(), ErrorType: string(store.KindIO),
		})
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", `attachment; filename="`+job.ID+`"`)
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, f); err != nil {
		log.Warn("httpapi: output stream interrupted", "job_id", job.ID, "err", err)
		return
	}

	if s.Retention != nil {
		_, _ = s.Retention.Track(r.Context(), store.DownloadRecord{
			JobID:      job.ID,
			FileName:   job.OutputPath,
			FileBytes:  job.OutputBytes,
			ClientAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	}
}

// createBatchRequest is POST /batches's body: the caller declares how many
// member jobs it intends to submit and (optionally) the total bytes it
// expects those jobs' outputs to require, so the admission check can warn
// before the individual jobs start landing (spec §3.4, §4.6.4 batch
// aggregation).
type createBatchRequest struct {
	TotalJobs      int   `json:"totalJobs"`
	EstimatedBytes int64 `json:"estimatedBytes"`
}

type createBatchResponse struct {
	BatchID        string `json:"batchId"`
	Status         string `json:"status"`
	TotalJobs      int    `json:"totalJobs"`
	EstimatedBytes int64  `json:"estimatedBytes"`
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	if req.TotalJobs <= 0 {
		writeBadRequest(w, "totalJobs must be positive")
		return
	}

	b, err := s.Batches.CreateBatch(r.Context(), req.TotalJobs, req.EstimatedBytes)
	if err != nil {
		writeStoreErr(w, err)
		return
	}

	if s.Governor != nil && req.EstimatedBytes > 0 {
		if _, err := s.Governor.CheckBatchSpace(r.Context(), b.BatchID, req.EstimatedBytes); err != nil {
			log.Warn("httpapi: batch space check failed", "batch_id", b.BatchID, "err", err)
		}
	}

	writeCreated(w, createBatchResponse{
		BatchID: b.BatchID, Status: b.Status, TotalJobs: b.TotalJobs, EstimatedBytes: b.EstimatedBytes,
	})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b, err := s.Batches.Get(r.Context(), id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if b == nil {
		writeNotFound(w, "batch not found")
		return
	}
	writeOK(w, b)
}

package notify

// Kind names an event's wire contract (§6.2). Payload shapes below mirror
// the fields spec.md assigns each kind.
type Kind string

const (
	KindProgressUpdate          Kind = "ProgressUpdate"
	KindStatusUpdate            Kind = "StatusUpdate"
	KindTaskCompleted           Kind = "TaskCompleted"
	KindTaskCreated             Kind = "TaskCreated"
	KindSystemNotification      Kind = "SystemNotification"
	KindSpaceWarning            Kind = "SpaceWarning"
	KindCleanupCompleted        Kind = "CleanupCompleted"
	KindDownloadTracked         Kind = "DownloadTracked"
	KindDownloadedFileCleanedUp Kind = "DownloadedFileCleanedUp"
	KindBatchSpaceWarning       Kind = "BatchSpaceWarning"
	KindDiskSpaceUpdate         Kind = "DiskSpaceUpdate"
)

// GlobalGroup is the well-known group ID for broadcast events (space
// warnings, cleanup summaries, batch events) as opposed to per-job groups
// keyed by job ID.
const GlobalGroup = "__global__"

// Event is the envelope delivered to subscribers: a kind tag plus an
// opaque payload, routed to a group (per-job or GlobalGroup).
type Event struct {
	Kind    Kind        `json:"kind"`
	Group   string      `json:"group"`
	Payload interface{} `json:"payload"`
}

type ProgressUpdate struct {
	JobID      string   `json:"job_id"`
	Progress   int      `json:"progress"`
	CurrentSec *float64 `json:"current_sec,omitempty"`
	Speed      *float64 `json:"speed,omitempty"`
	ETASec     *float64 `json:"eta_sec,omitempty"`
}

type StatusUpdate struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type TaskCompleted struct {
	JobID       string `json:"job_id"`
	OutputPath  string `json:"output_path"`
	OutputBytes int64  `json:"output_bytes"`
}

type TaskCreated struct {
	JobID string `json:"job_id"`
	Name  string `json:"name"`
}

type SystemNotification struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

type SpaceWarning struct {
	Tier           string  `json:"tier"`
	Message        string  `json:"message"`
	UsedPercent    float64 `json:"used_percent"`
	AvailableBytes int64   `json:"available_bytes"`
}

// CleanupCompleted's per-category fields count files removed, not bytes —
// the wire contract's `details` object breaks down TotalCleanedFiles this
// way. The six retention categories (spec §4.6.4) map onto five fields:
// downloaded outputs and failed-job artifacts both count in ConvertedFiles.
type CleanupCompleted struct {
	Tier           string `json:"tier"`
	BytesFreed     int64  `json:"bytes_freed"`
	FilesRemoved   int    `json:"files_removed"`
	OriginalFiles  int    `json:"original_files"`
	ConvertedFiles int    `json:"converted_files"`
	TempFiles      int    `json:"temp_files"`
	OrphanFiles    int    `json:"orphan_files"`
	LogFiles       int    `json:"log_files"`
}

type DownloadTracked struct {
	JobID             string  `json:"job_id"`
	FileName          string  `json:"file_name"`
	FileBytes         int64   `json:"file_bytes"`
	DownloadedAt      string  `json:"downloaded_at"`
	ScheduledDeleteAt string  `json:"scheduled_delete_at"`
	RetentionHours    float64 `json:"retention_hours"`
}

type DownloadedFileCleanedUp struct {
	JobID          string  `json:"job_id"`
	FileName       string  `json:"file_name"`
	FileBytes      int64   `json:"file_bytes"`
	DownloadedAt   string  `json:"downloaded_at"`
	CleanedAt      string  `json:"cleaned_at"`
	RetentionHours float64 `json:"retention_hours"`
}

type BatchSpaceWarning struct {
	BatchID        string  `json:"batch_id"`
	Message        string  `json:"message"`
	EstimatedBytes int64   `json:"estimated_bytes"`
	AvailableBytes int64   `json:"available_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

type DiskSpaceUpdate struct {
	UploadsBytes   int64   `json:"uploads_bytes"`
	OutputsBytes   int64   `json:"outputs_bytes"`
	TempBytes      int64   `json:"temp_bytes"`
	TotalBytes     int64   `json:"total_bytes"`
	AvailableBytes int64   `json:"available_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

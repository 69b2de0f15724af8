package notify

import "time"

// wireEnvelope is the JSON frame every subscriber actually receives over
// the WebSocket (spec §6.2: "{type: string, data: object, timestamp:
// ISO-8601}"). The internal Event stays {Kind, Group, Payload} — Group
// only matters for routing inside the Bus, a subscriber never sees it.
type wireEnvelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

const bytesPerGB = 1 << 30

// toWireEvent translates an internal Event into the envelope the wire
// contract names, renaming each payload's fields to the spec's camelCase
// vocabulary (taskId, remainingSeconds, ...) via a type switch over the
// concrete payload types declared in events.go.
func toWireEvent(ev Event) wireEnvelope {
	return wireEnvelope{
		Type:      string(ev.Kind),
		Data:      toWireData(ev.Payload),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func toWireData(payload interface{}) interface{} {
	switch p := payload.(type) {
	case ProgressUpdate:
		return wireProgressUpdate{
			TaskID: p.JobID, Progress: p.Progress,
			Message: progressMessage(p.Progress), Speed: p.Speed, RemainingSeconds: p.ETASec,
		}
	case StatusUpdate:
		return wireStatusUpdate{TaskID: p.JobID, Status: p.Status, ErrorMessage: p.Error}
	case TaskCreated:
		return wireTaskCreated{TaskID: p.JobID, Name: p.Name}
	case TaskCompleted:
		return wireTaskCompleted{TaskID: p.JobID, OutputPath: p.OutputPath, OutputBytes: p.OutputBytes}
	case SystemNotification:
		return wireSystemNotification{Message: p.Message, Severity: p.Severity}
	case DiskSpaceUpdate:
		return wireDiskSpaceUpdate{
			TotalSpace: p.TotalBytes, UsedSpace: p.UploadsBytes + p.OutputsBytes + p.TempBytes,
			AvailableSpace: p.AvailableBytes, UsagePercentage: p.UsedPercent,
		}
	case SpaceWarning:
		return wireSpaceWarning{
			Message: p.Message, UsagePercentage: p.UsedPercent,
			AvailableSpaceGB: float64(p.AvailableBytes) / bytesPerGB,
		}
	case BatchSpaceWarning:
		return wireBatchSpaceWarning{
			Message: p.Message, UsagePercentage: p.UsedPercent,
			AvailableSpaceGB: float64(p.AvailableBytes) / bytesPerGB,
			BatchID:          p.BatchID, RequiredSpaceGB: float64(p.EstimatedBytes) / bytesPerGB,
		}
	case CleanupCompleted:
		return wireCleanupCompleted{
			CleanupType: p.Tier, TotalCleanedSize: p.BytesFreed, TotalCleanedFiles: p.FilesRemoved,
			Details: wireCleanupDetails{
				OriginalFiles: p.OriginalFiles, ConvertedFiles: p.ConvertedFiles, TempFiles: p.TempFiles,
				OrphanFiles: p.OrphanFiles, LogFiles: p.LogFiles,
			},
		}
	case DownloadTracked:
		return wireDownloadTracked{
			TaskID: p.JobID, FileName: p.FileName, FileSize: p.FileBytes,
			DownloadTime: p.DownloadedAt, ScheduledCleanupTime: p.ScheduledDeleteAt,
			RetentionHours: p.RetentionHours,
		}
	case DownloadedFileCleanedUp:
		return wireDownloadedFileCleanedUp{
			TaskID: p.JobID, FileName: p.FileName, FileSize: p.FileBytes,
			DownloadTime: p.DownloadedAt, CleanupTime: p.CleanedAt, RetentionHours: p.RetentionHours,
		}
	default:
		return payload
	}
}

func progressMessage(progress int) string {
	if progress >= 100 {
		return "encoding complete"
	}
	return "encoding in progress"
}

type wireProgressUpdate struct {
	TaskID           string   `json:"taskId"`
	Progress         int      `json:"progress"`
	Message          string   `json:"message"`
	Speed            *float64 `json:"speed,omitempty"`
	RemainingSeconds *float64 `json:"remainingSeconds,omitempty"`
}

type wireStatusUpdate struct {
	TaskID       string `json:"taskId"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type wireTaskCreated struct {
	TaskID string `json:"taskId"`
	Name   string `json:"name"`
}

type wireTaskCompleted struct {
	TaskID      string `json:"taskId"`
	OutputPath  string `json:"outputPath"`
	OutputBytes int64  `json:"outputBytes"`
}

type wireSystemNotification struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

type wireDiskSpaceUpdate struct {
	TotalSpace      int64   `json:"totalSpace"`
	UsedSpace       int64   `json:"usedSpace"`
	AvailableSpace  int64   `json:"availableSpace"`
	UsagePercentage float64 `json:"usagePercentage"`
}

type wireSpaceWarning struct {
	Message          string  `json:"message"`
	UsagePercentage  float64 `json:"usagePercentage"`
	AvailableSpaceGB float64 `json:"availableSpaceGB"`
}

type wireBatchSpaceWarning struct {
	Message          string  `json:"message"`
	UsagePercentage  float64 `json:"usagePercentage"`
	AvailableSpaceGB float64 `json:"availableSpaceGB"`
	BatchID          string  `json:"batchId"`
	RequiredSpaceGB  float64 `json:"requiredSpaceGB"`
}

type wireCleanupCompleted struct {
	CleanupType       string             `json:"cleanupType"`
	TotalCleanedSize  int64              `json:"totalCleanedSize"`
	TotalCleanedFiles int                `json:"totalCleanedFiles"`
	Details           wireCleanupDetails `json:"details"`
}

type wireCleanupDetails struct {
	OriginalFiles  int `json:"originalFiles"`
	ConvertedFiles int `json:"convertedFiles"`
	TempFiles      int `json:"tempFiles"`
	OrphanFiles    int `json:"orphanFiles"`
	LogFiles       int `json:"logFiles"`
}

type wireDownloadTracked struct {
	TaskID               string  `json:"taskId"`
	FileName             string  `json:"fileName"`
	FileSize             int64   `json:"fileSize"`
	DownloadTime         string  `json:"downloadTime"`
	ScheduledCleanupTime string  `json:"scheduledCleanupTime"`
	RetentionHours       float64 `json:"retentionHours"`
}

type wireDownloadedFileCleanedUp struct {
	TaskID         string  `json:"taskId"`
	FileName       string  `json:"fileName"`
	FileSize       int64   `json:"fileSize"`
	DownloadTime   string  `json:"downloadTime"`
	CleanupTime    string  `json:"cleanupTime"`
	RetentionHours float64 `json:"retentionHours"`
}

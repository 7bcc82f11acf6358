package downloads

// Status represents the current state of a package download.
type Status string

const (
	StatusDownloading Status = "downloading"
	StatusExtracting  Status = "extracting"
	StatusComplete    Status = "complete"
	StatusError       Status = "error"
)

// Progress describes how far a package download or extraction has got.
type Progress struct {
	Status          Status  `json:"status"`
	Message         string  `json:"message"`
	BytesDownloaded int64   `json:"bytesDownloaded"`
	TotalBytes      int64   `json:"totalBytes"`
	Percent         float64 `json:"percent"`
}

// ProgressCallback is called to report progress.
type ProgressCallback func(Progress)

// ByteProgressCallback is called to report raw byte progress during download.
type ByteProgressCallback func(downloaded, total int64)

// Bytes adapts cb into a ByteProgressCallback that reports downloading
// progress with a percentage.
func Bytes(cb ProgressCallback) ByteProgressCallback {
	if cb == nil {
		return nil
	}
	return func(downloaded, total int64) {
		p := Progress{
			Status:          StatusDownloading,
			BytesDownloaded: downloaded,
			TotalBytes:      total,
			Message:         FormatBytes(downloaded),
		}
		if total > 0 {
			p.Percent = float64(downloaded) * 100 / float64(total)
		}
		cb(p)
	}
}

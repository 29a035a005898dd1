package models

import "time"

// DownloadStatus is the lifecycle state of an item on a debrid account.
type DownloadStatus string

const (
	StatusQueued      DownloadStatus = "queued"
	StatusDownloading DownloadStatus = "downloading"
	StatusCached      DownloadStatus = "cached"
	StatusDownloaded  DownloadStatus = "downloaded"
	StatusError       DownloadStatus = "error"
)

// DebridFile is one file inside a DebridDownload.
type DebridFile struct {
	Index    int
	ID       string
	Name     string
	Size     int64
	Link     string
	MimeType string
}

// DebridDownload is a view of a single item on a debrid account.
type DebridDownload struct {
	ID        string
	Hash      string
	Name      string
	Status    DownloadStatus
	Size      int64
	Files     []DebridFile
	AddedAt   *time.Time
	Private   bool
}

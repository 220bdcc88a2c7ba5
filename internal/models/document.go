package models

import (
	"time"
)

// FileKind is the detected type of a source file.
type FileKind string

const (
	FileKindUnknown  FileKind = "unknown"
	FileKindMarkdown FileKind = "md"
	FileKindPDF      FileKind = "pdf"
	FileKindDOCX     FileKind = "docx"
	FileKindPPTX     FileKind = "pptx"
	FileKindText     FileKind = "txt"
	FileKindHTML     FileKind = "html"
	FileKindCSV      FileKind = "csv"
	FileKindJSON     FileKind = "json"
	FileKindXML      FileKind = "xml"
	FileKindDOC      FileKind = "doc"
	FileKindPPT      FileKind = "ppt"
	FileKindXLS      FileKind = "xls"
	FileKindXLSX     FileKind = "xlsx"
	FileKindRTF      FileKind = "rtf"
	FileKindEPUB     FileKind = "epub"
	FileKindEML      FileKind = "eml"
	FileKindMSG      FileKind = "msg"
	FileKindODT      FileKind = "odt"
	FileKindJPG      FileKind = "jpg"
	FileKindPNG      FileKind = "png"
	FileKindTIFF     FileKind = "tiff"
	FileKindZIP      FileKind = "zip"
)

// RemoteFile describes a file handed out by a stream reader.
type RemoteFile struct {
	URI          string    `json:"uri"`
	MimeType     string    `json:"mimeType,omitempty"`
	LastModified time.Time `json:"lastModified,omitempty"`
	Size         int64     `json:"size,omitempty"`
}

// ParsedRecord is one parsed file.
type ParsedRecord struct {
	Content     string `json:"content"`
	DocumentKey string `json:"document_key"`
}

// ProcessingTask tracks an asynchronous parse request.
type ProcessingTask struct {
	ID        string            `json:"id"`
	Status    ProcessingStatus  `json:"status"`
	Type      string            `json:"type"`
	Priority  int               `json:"priority"`
	Progress  float64           `json:"progress"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty"`
}

type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusRunning   ProcessingStatus = "running"
	StatusCompleted ProcessingStatus = "completed"
	StatusSkipped   ProcessingStatus = "skipped"
	StatusFailed    ProcessingStatus = "failed"
	StatusCancelled ProcessingStatus = "cancelled"
)

package model

import "time"

// Pipeline names stored with each media record.
const (
	PipelineDetection    = "detection"
	PipelineSegmentation = "segmentation"
)

// Media represents an uploaded image and its processed counterpart.
type Media struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Processed string    `json:"processed"`
	Pipeline  string    `json:"pipeline"`
	FileSize  int64     `json:"filesize"`
	CreatedAt time.Time `json:"created_at"`
}

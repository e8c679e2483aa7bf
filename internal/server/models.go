package server

import (
	"encoding/json"
	"time"

	"github.com/nykw2002/elements/internal/store"
)

// ElementResponse is the wire shape for a dynamic element.
type ElementResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Prompt      string    `json:"prompt"`
	AIModel     string    `json:"ai_model"`
	Method      *string   `json:"method"`
	FileType    string    `json:"file_type"`
	DataSources []string  `json:"data_sources"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toElementResponse(e store.Element) ElementResponse {
	if e.DataSources == nil {
		e.DataSources = []string{}
	}
	return ElementResponse{
		ID:          e.ID,
		Name:        e.Name,
		Prompt:      e.Prompt,
		AIModel:     e.AIModel,
		Method:      e.Method,
		FileType:    e.FileType,
		DataSources: e.DataSources,
		Status:      e.Status,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// FileResponse is the wire shape for an uploaded file's metadata.
type FileResponse struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	FilePath         string    `json:"file_path"`
	FileSize         int64     `json:"file_size"`
	ContentType      string    `json:"content_type"`
	ElementID        *string   `json:"element_id"`
	CreatedAt        time.Time `json:"created_at"`
}

func toFileResponse(f store.File) FileResponse {
	return FileResponse{
		ID:               f.ID,
		Filename:         f.Filename,
		OriginalFilename: f.OriginalFilename,
		FilePath:         f.Path,
		FileSize:         f.Size,
		ContentType:      f.ContentType,
		ElementID:        f.ElementID,
		CreatedAt:        f.CreatedAt,
	}
}

// DatasetEntryResponse is the wire shape for a validated element snapshot.
type DatasetEntryResponse struct {
	ID          string          `json:"id"`
	ElementID   string          `json:"element_id"`
	ElementName string          `json:"element_name"`
	JSONConfig  json.RawMessage `json:"json_config"`
	AIOutput    string          `json:"ai_output"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toDatasetEntryResponse(d store.DatasetEntry) DatasetEntryResponse {
	return DatasetEntryResponse{
		ID:          d.ID,
		ElementID:   d.ElementID,
		ElementName: d.ElementName,
		JSONConfig:  d.Config,
		AIOutput:    d.AIOutput,
		CreatedAt:   d.CreatedAt,
	}
}

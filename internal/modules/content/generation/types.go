package generation

import (
	"github.com/mx-space/contentgen/internal/models"
	"github.com/mx-space/contentgen/internal/modules/processing/script"
)

// TaskTypeRun marks queued document runs.
const TaskTypeRun = "content:run"

// RunPayload is stored with a queued run. The upload itself stays on disk
// until the run finishes.
type RunPayload struct {
	Filename        string            `json:"filename"`
	UploadPath      string            `json:"upload_path"`
	Mode            models.ResultType `json:"mode"`
	PanelCount      int               `json:"panel_count,omitempty"`
	ComicPanelCount int               `json:"comic_panel_count,omitempty"`
	SHA256          string            `json:"sha256"`
}

// RunResult is the task result of a finished run.
type RunResult struct {
	Name       string            `json:"name"`
	ResultType models.ResultType `json:"result_type"`
	Errors     []string          `json:"errors"`
}

type runResponse struct {
	Name   string               `json:"name"`
	Bundle *models.ResultBundle `json:"bundle"`
}

type parseScriptDTO struct {
	Script string `json:"script" binding:"required"`
}

type renderScriptDTO struct {
	Title  string `json:"title"`
	Script string `json:"script" binding:"required"`
}

type parseScriptResponse struct {
	Panels []script.Panel `json:"panels"`
}

package generation

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/gin-gonic/gin"

	"github.com/mx-space/contentgen/internal/models"
	"github.com/mx-space/contentgen/internal/modules/content/pipeline"
	"github.com/mx-space/contentgen/internal/modules/processing/script"
	"github.com/mx-space/contentgen/internal/modules/storage/bundle"
	"github.com/mx-space/contentgen/internal/pkg/pagination"
	"github.com/mx-space/contentgen/internal/pkg/response"
	"github.com/mx-space/contentgen/internal/pkg/taskqueue"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	runs := rg.Group("/runs")
	runs.POST("", h.createRun)
	runs.GET("/tasks", h.listTasks)
	runs.GET("/tasks/:id", h.getTask)
	runs.POST("/tasks/:id/cancel", h.cancelTask)
	runs.DELETE("/tasks/:id", h.deleteTask)

	results := rg.Group("/results")
	results.GET("", h.listResults)
	results.GET("/:name", h.getResult)
	results.DELETE("/:name", h.deleteResult)
	results.GET("/:name/script", h.downloadScript)
	results.GET("/:name/script.html", h.previewScript)

	scripts := rg.Group("/scripts")
	scripts.POST("/parse", h.parseScript)
	scripts.POST("/render", h.renderScript)
}

// POST /runs  multipart: file, mode, panel_count, comic_panel_count  ?async=true
func (h *Handler) createRun(c *gin.Context) {
	mode := models.ResultStandard
	if raw := c.PostForm("mode"); raw != "" {
		parsed, ok := models.ParseResultType(raw)
		if !ok {
			response.BadRequest(c, fmt.Sprintf("mode must be standard, carousel or combined, got %q", raw))
			return
		}
		mode = parsed
	}
	panelCount, err := formInt(c, "panel_count")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	comicPanelCount, err := formInt(c, "comic_panel_count")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	doc, ok := h.readUpload(c)
	if !ok {
		return
	}
	opts := pipeline.RunOptions{Mode: mode, PanelCount: panelCount, ComicPanelCount: comicPanelCount}

	if c.Query("async") == "true" {
		task, err := h.svc.EnqueueRun(c.Request.Context(), doc, opts)
		if err != nil {
			if errors.Is(err, errQueueUnavailable) {
				response.ServiceUnavailable(c, err.Error())
				return
			}
			response.InternalError(c, err)
			return
		}
		response.Accepted(c, task)
		return
	}

	name, b, err := h.svc.Run(c.Request.Context(), doc, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, runResponse{Name: name, Bundle: b})
}

// readUpload validates the multipart file against the extension allow-list
// and the per-format size limit.
func (h *Handler) readUpload(c *gin.Context) (models.Document, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return models.Document{}, false
	}
	format, ok := models.FormatFromFilename(fh.Filename)
	if !ok {
		response.BadRequest(c, "unsupported file type, allowed: pdf, msg, eml, txt")
		return models.Document{}, false
	}
	limit := h.svc.limits.For(format)
	if limit > 0 && fh.Size > limit {
		response.PayloadTooLarge(c, fmt.Sprintf("%s files are limited to %s", format, units.BytesSize(float64(limit))))
		return models.Document{}, false
	}

	f, err := fh.Open()
	if err != nil {
		response.InternalError(c, err)
		return models.Document{}, false
	}
	defer f.Close()

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		response.InternalError(c, err)
		return models.Document{}, false
	}
	if limit > 0 && int64(len(data)) > limit {
		response.PayloadTooLarge(c, fmt.Sprintf("%s files are limited to %s", format, units.BytesSize(float64(limit))))
		return models.Document{}, false
	}
	return models.Document{Filename: fh.Filename, Format: format, Data: data}, true
}

func formInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

// GET /runs/tasks?status=&page=&size=
func (h *Handler) listTasks(c *gin.Context) {
	q := pagination.FromContext(c)
	taskType := TaskTypeRun

	var statusPtr *taskqueue.TaskStatus
	if raw := c.Query("status"); raw != "" {
		s, ok := taskqueue.ParseStatus(raw)
		if !ok {
			response.BadRequest(c, "unknown task status")
			return
		}
		statusPtr = &s
	}
	if h.svc.taskSvc == nil {
		response.ServiceUnavailable(c, errQueueUnavailable.Error())
		return
	}

	tasks, err := h.svc.taskSvc.List(c.Request.Context(), &taskType, statusPtr)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	page, pag := pagination.Slice(tasks, q)
	response.Paged(c, page, pag)
}

// GET /runs/tasks/:id
func (h *Handler) getTask(c *gin.Context) {
	task, ok := h.lookupTask(c)
	if !ok {
		return
	}
	response.OK(c, task)
}

// POST /runs/tasks/:id/cancel
func (h *Handler) cancelTask(c *gin.Context) {
	if _, ok := h.lookupTask(c); !ok {
		return
	}
	err := h.svc.taskSvc.Cancel(c.Request.Context(), c.Param("id"))
	if errors.Is(err, taskqueue.ErrNotCancellable) {
		response.Conflict(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	task, _ := h.svc.taskSvc.GetByID(c.Request.Context(), c.Param("id"))
	response.OK(c, task)
}

// DELETE /runs/tasks/:id
func (h *Handler) deleteTask(c *gin.Context) {
	if _, ok := h.lookupTask(c); !ok {
		return
	}
	if err := h.svc.taskSvc.DeleteByID(c.Request.Context(), c.Param("id")); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) lookupTask(c *gin.Context) (*taskqueue.Task, bool) {
	if h.svc.taskSvc == nil {
		response.ServiceUnavailable(c, errQueueUnavailable.Error())
		return nil, false
	}
	task, err := h.svc.taskSvc.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, taskqueue.ErrTaskNotFound) || (err == nil && task.Type != TaskTypeRun) {
		response.NotFoundMsg(c, "task not found")
		return nil, false
	}
	if err != nil {
		response.InternalError(c, err)
		return nil, false
	}
	return task, true
}

// GET /results?page=&size=
func (h *Handler) listResults(c *gin.Context) {
	q := pagination.FromContext(c)
	entries, err := h.svc.store.History(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	page, pag := pagination.Slice(entries, q)
	response.Paged(c, page, pag)
}

// GET /results/:name
func (h *Handler) getResult(c *gin.Context) {
	b, err := h.svc.store.Read(c.Request.Context(), c.Param("name"))
	if err != nil {
		bundleError(c, err)
		return
	}
	response.OK(c, b)
}

// DELETE /results/:name
func (h *Handler) deleteResult(c *gin.Context) {
	if err := h.svc.store.Delete(c.Request.Context(), c.Param("name")); err != nil {
		bundleError(c, err)
		return
	}
	response.NoContent(c)
}

// GET /results/:name/script
func (h *Handler) downloadScript(c *gin.Context) {
	name := c.Param("name")
	_, text, err := h.svc.ScriptExport(c.Request.Context(), name)
	if err != nil {
		bundleError(c, err)
		return
	}
	filename := strings.TrimSuffix(name, ".json") + "_script.md"
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(text))
}

// GET /results/:name/script.html
func (h *Handler) previewScript(c *gin.Context) {
	title, text, err := h.svc.ScriptExport(c.Request.Context(), c.Param("name"))
	if err != nil {
		bundleError(c, err)
		return
	}
	page, err := script.RenderDocument(title, text)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

func bundleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, bundle.ErrInvalidName):
		response.BadRequest(c, err.Error())
	case errors.Is(err, bundle.ErrNotFound):
		response.NotFoundMsg(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

// POST /scripts/parse
func (h *Handler) parseScript(c *gin.Context) {
	var dto parseScriptDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	panels := script.Parse(dto.Script)
	if len(panels) == 0 {
		response.UnprocessableEntity(c, errNoPanels.Error())
		return
	}
	response.OK(c, parseScriptResponse{Panels: panels})
}

// POST /scripts/render
func (h *Handler) renderScript(c *gin.Context) {
	var dto renderScriptDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	name, b, err := h.svc.RenderScript(c.Request.Context(), dto.Title, dto.Script)
	if errors.Is(err, errNoPanels) {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, runResponse{Name: name, Bundle: b})
}

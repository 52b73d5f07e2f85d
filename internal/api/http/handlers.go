// Package http provides the gin handlers for the region manager API.
package http

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quarksys/shmd/internal/infrastructure/logging"
	"github.com/quarksys/shmd/internal/service"
	"github.com/quarksys/shmd/internal/shared/types"
	"github.com/quarksys/shmd/internal/shm"
)

// Handlers bundles the dependencies of the HTTP surface.
type Handlers struct {
	manager  *shm.Manager
	registry *service.Registry
	log      *logging.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(manager *shm.Manager, registry *service.Registry, log *logging.Logger) *Handlers {
	return &Handlers{manager: manager, registry: registry, log: log}
}

// Register attaches all routes to the router.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)

	r.POST("/regions", h.CreateRegion)
	r.POST("/regions/open", h.OpenRegion)
	r.GET("/regions/:handle", h.RegionInfo)
	r.DELETE("/regions/:handle", h.CloseRegion)
	r.POST("/regions/:handle/destroy", h.DestroyRegion)
	r.POST("/regions/:handle/permissions", h.SetPermission)
	r.POST("/regions/:handle/lock", h.LockRegion)
	r.POST("/regions/:handle/unlock", h.UnlockRegion)
	r.POST("/regions/:handle/read", h.ReadRegion)
	r.POST("/regions/:handle/write", h.WriteRegion)

	r.GET("/services", h.ListServices)
	r.POST("/services/execute", h.ExecuteService)
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats reports subsystem usage counters.
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"shm":      h.manager.Stats(),
		"services": h.registry.Stats(),
	})
}

// CreateRegion creates a named region owned by the calling app.
func (h *Handlers) CreateRegion(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required"`
		Size        int    `json:"size" binding:"required"`
		DefaultPerm string `json:"default_perm"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	perm, err := shm.ParsePerm(req.DefaultPerm)
	if err != nil {
		badRequest(c, err)
		return
	}

	handle, err := h.manager.Create(caller, req.Name, req.Size, perm)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"handle":  uint64(handle),
	})
}

// OpenRegion opens a region by name with a requested permission.
func (h *Handlers) OpenRegion(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
		Perm string `json:"perm" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	perm, err := shm.ParsePerm(req.Perm)
	if err != nil {
		badRequest(c, err)
		return
	}

	handle, err := h.manager.Open(caller, req.Name, perm)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"handle":  uint64(handle),
	})
}

// RegionInfo returns a metadata snapshot.
func (h *Handlers) RegionInfo(c *gin.Context) {
	handle, ok := h.handle(c)
	if !ok {
		return
	}
	info, err := h.manager.GetInfo(handle)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"name":         info.Name,
		"size":         info.Size,
		"owner":        info.Owner,
		"ref_count":    info.RefCount,
		"default_perm": info.DefaultPerm.String(),
	})
}

// CloseRegion drops a reference to the region.
func (h *Handlers) CloseRegion(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	handle, ok := h.handle(c)
	if !ok {
		return
	}
	if err := h.manager.Close(caller, handle); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DestroyRegion tears the region down immediately (owner only).
func (h *Handlers) DestroyRegion(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	handle, ok := h.handle(c)
	if !ok {
		return
	}
	if err := h.manager.Destroy(caller, handle); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetPermission grants a permission to another app (owner only).
func (h *Handlers) SetPermission(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	handle, ok := h.handle(c)
	if !ok {
		return
	}

	var req struct {
		AppID uint32 `json:"app_id"`
		Perm  string `json:"perm" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	perm, err := shm.ParsePerm(req.Perm)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.manager.SetPermission(caller, handle, req.AppID, perm); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// LockRegion acquires the advisory exclusive lock.
func (h *Handlers) LockRegion(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	handle, ok := h.handle(c)
	if !ok {
		return
	}

	// Body is optional; an absent body means a non-blocking attempt.
	var req struct {
		TimeoutMS int `json:"timeout_ms"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	timeout := time.Duration(req.TimeoutMS) * time.Millisecond
	if err := h.manager.Lock(caller, handle, timeout); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UnlockRegion releases the advisory lock.
func (h *Handlers) UnlockRegion(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	handle, ok := h.handle(c)
	if !ok {
		return
	}
	if err := h.manager.Unlock(caller, handle); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ReadRegion copies bytes out of a region, base64-encoded.
func (h *Handlers) ReadRegion(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	handle, ok := h.handle(c)
	if !ok {
		return
	}

	var req struct {
		Offset int `json:"offset"`
		Size   int `json:"size" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Size < 0 {
		badRequest(c, errors.New("size must be non-negative"))
		return
	}

	buf := make([]byte, req.Size)
	n, err := h.manager.Read(caller, handle, req.Offset, buf)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    base64.StdEncoding.EncodeToString(buf[:n]),
		"bytes":   n,
	})
}

// WriteRegion copies base64-encoded bytes into a region.
func (h *Handlers) WriteRegion(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	handle, ok := h.handle(c)
	if !ok {
		return
	}

	var req struct {
		Offset int    `json:"offset"`
		Data   string `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		badRequest(c, errors.New("data is not valid base64"))
		return
	}

	n, err := h.manager.Write(caller, handle, req.Offset, data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"bytes_written": n,
	})
}

// ListServices returns all registered service definitions.
func (h *Handlers) ListServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"services": h.registry.List(nil),
	})
}

// ExecuteService dispatches a tool call through the service registry.
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req struct {
		ToolID string                 `json:"tool_id" binding:"required"`
		Params map[string]interface{} `json:"params"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	appCtx := &types.Context{}
	if id, err := parseAppID(c); err == nil {
		appCtx.AppID = &id
	}

	result, _ := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, appCtx)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	c.JSON(status, result)
}

// caller extracts the calling app's identity from the X-App-ID header.
func (h *Handlers) caller(c *gin.Context) (uint32, bool) {
	id, err := parseAppID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "missing or invalid X-App-ID header",
		})
		return 0, false
	}
	return id, true
}

func parseAppID(c *gin.Context) (uint32, error) {
	raw := c.GetHeader("X-App-ID")
	if raw == "" {
		return 0, errors.New("missing X-App-ID header")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}

// handle parses the :handle path parameter.
func (h *Handlers) handle(c *gin.Context) (shm.Handle, bool) {
	raw := c.Param("handle")
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid handle",
		})
		return 0, false
	}
	return shm.Handle(v), true
}

// fail maps subsystem errors to HTTP status codes.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shm.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, shm.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, shm.ErrNotFound), errors.Is(err, shm.ErrInvalidHandle):
		status = http.StatusNotFound
	case errors.Is(err, shm.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, shm.ErrResourceExhausted):
		status = http.StatusInsufficientStorage
	case errors.Is(err, shm.ErrTimeout):
		status = http.StatusRequestTimeout
	default:
		h.log.Error("unexpected error", zap.Error(err))
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

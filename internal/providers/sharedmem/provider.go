package sharedmem

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/quarksys/shmd/internal/shared/types"
	"github.com/quarksys/shmd/internal/shm"
)

// Provider implements shared memory operations over the region manager.
type Provider struct {
	manager *shm.Manager
}

// NewProvider creates a shared memory provider.
func NewProvider(manager *shm.Manager) *Provider {
	return &Provider{manager: manager}
}

// Definition returns the service definition.
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "shm",
		Name:        "Shared Memory",
		Description: "Named shared memory regions for zero-copy data sharing between apps",
		Category:    types.CategoryMemory,
		Capabilities: []string{
			"create",
			"open",
			"close",
			"destroy",
			"info",
			"set_permission",
			"lock",
			"unlock",
			"read",
			"write",
			"stats",
		},
		Tools: []types.Tool{
			{
				ID:          "shm.create",
				Name:        "Create Region",
				Description: "Create a named shared memory region, zero-filled",
				Parameters: []types.Parameter{
					{Name: "name", Type: "string", Description: "Unique region name", Required: true},
					{Name: "size", Type: "number", Description: "Region size in bytes", Required: true},
					{Name: "default_perm", Type: "string", Description: "Default permission for other apps: none, read, write, rw", Required: false},
				},
				Returns: "Region handle (number)",
			},
			{
				ID:          "shm.open",
				Name:        "Open Region",
				Description: "Open an existing region by name with a requested permission",
				Parameters: []types.Parameter{
					{Name: "name", Type: "string", Description: "Region name", Required: true},
					{Name: "perm", Type: "string", Description: "Requested permission: read, write, rw", Required: true},
				},
				Returns: "Region handle (number)",
			},
			{
				ID:          "shm.close",
				Name:        "Close Region",
				Description: "Drop a reference; the last close destroys the region",
				Parameters: []types.Parameter{
					{Name: "handle", Type: "number", Description: "Region handle", Required: true},
				},
				Returns: "Success confirmation",
			},
			{
				ID:          "shm.destroy",
				Name:        "Destroy Region",
				Description: "Destroy a region immediately regardless of references (owner only)",
				Parameters: []types.Parameter{
					{Name: "handle", Type: "number", Description: "Region handle", Required: true},
				},
				Returns: "Success confirmation",
			},
			{
				ID:          "shm.info",
				Name:        "Region Info",
				Description: "Get region metadata: name, size, owner, references, default permission",
				Parameters: []types.Parameter{
					{Name: "handle", Type: "number", Description: "Region handle", Required: true},
				},
				Returns: "Region info object",
			},
			{
				ID:          "shm.set_permission",
				Name:        "Set Permission",
				Description: "Grant an app a permission on a region (owner only)",
				Parameters: []types.Parameter{
					{Name: "handle", Type: "number", Description: "Region handle", Required: true},
					{Name: "app_id", Type: "number", Description: "Target app ID", Required: true},
					{Name: "perm", Type: "string", Description: "Permission to grant: none, read, write, rw", Required: true},
				},
				Returns: "Success confirmation",
			},
			{
				ID:          "shm.lock",
				Name:        "Lock Region",
				Description: "Acquire the region's advisory exclusive lock",
				Parameters: []types.Parameter{
					{Name: "handle", Type: "number", Description: "Region handle", Required: true},
					{Name: "timeout_ms", Type: "number", Description: "Wait timeout in milliseconds (0 = try once)", Required: false},
				},
				Returns: "Success confirmation",
			},
			{
				ID:          "shm.unlock",
				Name:        "Unlock Region",
				Description: "Release the advisory lock (holder only)",
				Parameters: []types.Parameter{
					{Name: "handle", Type: "number", Description: "Region handle", Required: true},
				},
				Returns: "Success confirmation",
			},
			{
				ID:          "shm.read",
				Name:        "Read Region",
				Description: "Copy bytes out of a region (requires read permission)",
				Parameters: []types.Parameter{
					{Name: "handle", Type: "number", Description: "Region handle", Required: true},
					{Name: "offset", Type: "number", Description: "Byte offset to read from", Required: true},
					{Name: "size", Type: "number", Description: "Maximum bytes to read", Required: true},
				},
				Returns: "Base64-encoded bytes",
			},
			{
				ID:          "shm.write",
				Name:        "Write Region",
				Description: "Copy bytes into a region (requires write permission)",
				Parameters: []types.Parameter{
					{Name: "handle", Type: "number", Description: "Region handle", Required: true},
					{Name: "offset", Type: "number", Description: "Byte offset to write at", Required: true},
					{Name: "data", Type: "string", Description: "Base64-encoded bytes", Required: true},
				},
				Returns: "Number of bytes written",
			},
			{
				ID:          "shm.stats",
				Name:        "Subsystem Stats",
				Description: "Region table and arena usage counters",
				Parameters:  []types.Parameter{},
				Returns:     "Stats object",
			},
		},
	}
}

// Execute handles shared memory tool execution.
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	if toolID == "shm.stats" {
		return p.stats()
	}

	if appCtx == nil || appCtx.AppID == nil {
		return errorResult("caller has no app id")
	}
	caller := *appCtx.AppID

	switch toolID {
	case "shm.create":
		return p.create(params, caller)
	case "shm.open":
		return p.open(params, caller)
	case "shm.close":
		return p.close(params, caller)
	case "shm.destroy":
		return p.destroy(params, caller)
	case "shm.info":
		return p.info(params)
	case "shm.set_permission":
		return p.setPermission(params, caller)
	case "shm.lock":
		return p.lock(params, caller)
	case "shm.unlock":
		return p.unlock(params, caller)
	case "shm.read":
		return p.read(params, caller)
	case "shm.write":
		return p.write(params, caller)
	default:
		return errorResult(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (p *Provider) create(params map[string]interface{}, caller uint32) (*types.Result, error) {
	name, ok := params["name"].(string)
	if !ok {
		return errorResult("name is required")
	}
	size, ok := params["size"].(float64)
	if !ok {
		return errorResult("size is required")
	}

	defaultPerm := shm.PermNone
	if s, ok := params["default_perm"].(string); ok {
		perm, err := shm.ParsePerm(s)
		if err != nil {
			return errorResult(err.Error())
		}
		defaultPerm = perm
	}

	handle, err := p.manager.Create(caller, name, int(size), defaultPerm)
	if err != nil {
		return errorResult(err.Error())
	}
	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"handle": uint64(handle),
			"name":   name,
			"size":   int(size),
			"owner":  caller,
		},
	}, nil
}

func (p *Provider) open(params map[string]interface{}, caller uint32) (*types.Result, error) {
	name, ok := params["name"].(string)
	if !ok {
		return errorResult("name is required")
	}
	permStr, ok := params["perm"].(string)
	if !ok {
		return errorResult("perm is required")
	}
	perm, err := shm.ParsePerm(permStr)
	if err != nil {
		return errorResult(err.Error())
	}

	handle, err := p.manager.Open(caller, name, perm)
	if err != nil {
		return errorResult(err.Error())
	}
	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"handle": uint64(handle),
			"name":   name,
		},
	}, nil
}

func (p *Provider) close(params map[string]interface{}, caller uint32) (*types.Result, error) {
	handle, ok := params["handle"].(float64)
	if !ok {
		return errorResult("handle is required")
	}
	if err := p.manager.Close(caller, shm.Handle(handle)); err != nil {
		return errorResult(err.Error())
	}
	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"closed": true},
	}, nil
}

func (p *Provider) destroy(params map[string]interface{}, caller uint32) (*types.Result, error) {
	handle, ok := params["handle"].(float64)
	if !ok {
		return errorResult("handle is required")
	}
	if err := p.manager.Destroy(caller, shm.Handle(handle)); err != nil {
		return errorResult(err.Error())
	}
	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"destroyed": true},
	}, nil
}

func (p *Provider) info(params map[string]interface{}) (*types.Result, error) {
	handle, ok := params["handle"].(float64)
	if !ok {
		return errorResult("handle is required")
	}
	info, err := p.manager.GetInfo(shm.Handle(handle))
	if err != nil {
		return errorResult(err.Error())
	}
	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"name":         info.Name,
			"size":         info.Size,
			"owner":        info.Owner,
			"ref_count":    info.RefCount,
			"default_perm": info.DefaultPerm.String(),
		},
	}, nil
}

func (p *Provider) setPermission(params map[string]interface{}, caller uint32) (*types.Result, error) {
	handle, ok := params["handle"].(float64)
	if !ok {
		return errorResult("handle is required")
	}
	target, ok := params["app_id"].(float64)
	if !ok {
		return errorResult("app_id is required")
	}
	permStr, ok := params["perm"].(string)
	if !ok {
		return errorResult("perm is required")
	}
	perm, err := shm.ParsePerm(permStr)
	if err != nil {
		return errorResult(err.Error())
	}

	if err := p.manager.SetPermission(caller, shm.Handle(handle), uint32(target), perm); err != nil {
		return errorResult(err.Error())
	}
	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"app_id": uint32(target),
			"perm":   perm.String(),
		},
	}, nil
}

func (p *Provider) lock(params map[string]interface{}, caller uint32) (*types.Result, error) {
	handle, ok := params["handle"].(float64)
	if !ok {
		return errorResult("handle is required")
	}
	var timeout time.Duration
	if ms, ok := params["timeout_ms"].(float64); ok {
		timeout = time.Duration(ms) * time.Millisecond
	}

	if err := p.manager.Lock(caller, shm.Handle(handle), timeout); err != nil {
		return errorResult(err.Error())
	}
	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"locked": true},
	}, nil
}

func (p *Provider) unlock(params map[string]interface{}, caller uint32) (*types.Result, error) {
	handle, ok := params["handle"].(float64)
	if !ok {
		return errorResult("handle is required")
	}
	if err := p.manager.Unlock(caller, shm.Handle(handle)); err != nil {
		return errorResult(err.Error())
	}
	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"locked": false},
	}, nil
}

func (p *Provider) read(params map[string]interface{}, caller uint32) (*types.Result, error) {
	handle, ok := params["handle"].(float64)
	if !ok {
		return errorResult("handle is required")
	}
	offset, ok := params["offset"].(float64)
	if !ok {
		return errorResult("offset is required")
	}
	size, ok := params["size"].(float64)
	if !ok {
		return errorResult("size is required")
	}
	if size < 0 {
		return errorResult("size must be non-negative")
	}

	buf := make([]byte, int(size))
	n, err := p.manager.Read(caller, shm.Handle(handle), int(offset), buf)
	if err != nil {
		return errorResult(err.Error())
	}
	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"data":  base64.StdEncoding.EncodeToString(buf[:n]),
			"bytes": n,
		},
	}, nil
}

func (p *Provider) write(params map[string]interface{}, caller uint32) (*types.Result, error) {
	handle, ok := params["handle"].(float64)
	if !ok {
		return errorResult("handle is required")
	}
	offset, ok := params["offset"].(float64)
	if !ok {
		return errorResult("offset is required")
	}
	encoded, ok := params["data"].(string)
	if !ok {
		return errorResult("data is required")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return errorResult("data is not valid base64")
	}

	n, err := p.manager.Write(caller, shm.Handle(handle), int(offset), data)
	if err != nil {
		return errorResult(err.Error())
	}
	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"bytes_written": n},
	}, nil
}

func (p *Provider) stats() (*types.Result, error) {
	stats := p.manager.Stats()
	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"regions_in_use":    stats.RegionsInUse,
			"max_regions":       stats.MaxRegions,
			"arena_used":        stats.ArenaUsed,
			"arena_capacity":    stats.ArenaCapacity,
			"regions_created":   stats.RegionsCreated,
			"regions_destroyed": stats.RegionsDestroyed,
		},
	}, nil
}

func errorResult(message string) (*types.Result, error) {
	return &types.Result{
		Success: false,
		Error:   &message,
	}, fmt.Errorf("%s", message)
}

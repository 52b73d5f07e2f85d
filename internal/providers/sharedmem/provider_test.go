package sharedmem

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarksys/shmd/internal/shared/types"
	"github.com/quarksys/shmd/internal/shm"
)

func newTestProvider() *Provider {
	return NewProvider(shm.NewManager(shm.DefaultConfig(), nil))
}

func appCtx(id uint32) *types.Context {
	return &types.Context{AppID: &id}
}

func exec(t *testing.T, p *Provider, ctx *types.Context, tool string, params map[string]interface{}) *types.Result {
	t.Helper()
	res, err := p.Execute(context.Background(), tool, params, ctx)
	require.NoError(t, err)
	require.True(t, res.Success, "tool %s failed: %v", tool, res.Error)
	return res
}

func TestDefinitionCoversAllTools(t *testing.T) {
	def := newTestProvider().Definition()

	assert.Equal(t, "shm", def.ID)
	assert.Equal(t, types.CategoryMemory, def.Category)
	require.Len(t, def.Tools, 11)
	for _, tool := range def.Tools {
		assert.Contains(t, tool.ID, "shm.", "tool %s missing service prefix", tool.ID)
	}
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	p := newTestProvider()
	owner := appCtx(1)

	res := exec(t, p, owner, "shm.create", map[string]interface{}{
		"name": "audio",
		"size": float64(256),
	})
	handle := float64(res.Data["handle"].(uint64))

	payload := []byte("pcm frame")
	res = exec(t, p, owner, "shm.write", map[string]interface{}{
		"handle": handle,
		"offset": float64(16),
		"data":   base64.StdEncoding.EncodeToString(payload),
	})
	assert.Equal(t, len(payload), res.Data["bytes_written"])

	res = exec(t, p, owner, "shm.read", map[string]interface{}{
		"handle": handle,
		"offset": float64(16),
		"size":   float64(len(payload)),
	})
	assert.Equal(t, len(payload), res.Data["bytes"])
	decoded, err := base64.StdEncoding.DecodeString(res.Data["data"].(string))
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestExecuteRequiresAppID(t *testing.T) {
	p := newTestProvider()

	res, err := p.Execute(context.Background(), "shm.create", map[string]interface{}{
		"name": "x",
		"size": float64(64),
	}, nil)
	assert.Error(t, err)
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "app id")

	// stats is the one identity-free tool.
	res, err = p.Execute(context.Background(), "shm.stats", nil, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestPermissionFlow(t *testing.T) {
	p := newTestProvider()
	owner, other := appCtx(1), appCtx(2)

	res := exec(t, p, owner, "shm.create", map[string]interface{}{
		"name":         "fb",
		"size":         float64(1024),
		"default_perm": "none",
	})
	handle := float64(res.Data["handle"].(uint64))

	// Denied until the owner grants read.
	denied, err := p.Execute(context.Background(), "shm.open", map[string]interface{}{
		"name": "fb",
		"perm": "read",
	}, other)
	assert.Error(t, err)
	assert.False(t, denied.Success)

	exec(t, p, owner, "shm.set_permission", map[string]interface{}{
		"handle": handle,
		"app_id": float64(2),
		"perm":   "read",
	})
	exec(t, p, other, "shm.open", map[string]interface{}{
		"name": "fb",
		"perm": "read",
	})

	// Read permission does not imply write.
	denied, err = p.Execute(context.Background(), "shm.write", map[string]interface{}{
		"handle": handle,
		"offset": float64(0),
		"data":   base64.StdEncoding.EncodeToString([]byte("x")),
	}, other)
	assert.Error(t, err)
	assert.False(t, denied.Success)
}

func TestInfoAndStats(t *testing.T) {
	p := newTestProvider()
	owner := appCtx(7)

	res := exec(t, p, owner, "shm.create", map[string]interface{}{
		"name":         "meta",
		"size":         float64(128),
		"default_perm": "rw",
	})
	handle := float64(res.Data["handle"].(uint64))

	res = exec(t, p, owner, "shm.info", map[string]interface{}{"handle": handle})
	assert.Equal(t, "meta", res.Data["name"])
	assert.Equal(t, 128, res.Data["size"])
	assert.Equal(t, uint32(7), res.Data["owner"])
	assert.Equal(t, uint32(1), res.Data["ref_count"])
	assert.Equal(t, "rw", res.Data["default_perm"])

	res = exec(t, p, owner, "shm.stats", nil)
	assert.Equal(t, 1, res.Data["regions_in_use"])
	assert.Equal(t, 128, res.Data["arena_used"])
}

func TestLockUnlockTools(t *testing.T) {
	p := newTestProvider()
	owner, other := appCtx(1), appCtx(2)

	res := exec(t, p, owner, "shm.create", map[string]interface{}{
		"name": "locked",
		"size": float64(64),
	})
	handle := float64(res.Data["handle"].(uint64))

	exec(t, p, owner, "shm.lock", map[string]interface{}{"handle": handle})

	// A held lock times out for a second caller.
	busy, err := p.Execute(context.Background(), "shm.lock", map[string]interface{}{
		"handle":     handle,
		"timeout_ms": float64(10),
	}, other)
	assert.Error(t, err)
	assert.False(t, busy.Success)

	exec(t, p, owner, "shm.unlock", map[string]interface{}{"handle": handle})
	exec(t, p, other, "shm.lock", map[string]interface{}{"handle": handle})
}

func TestCloseAndDestroyTools(t *testing.T) {
	p := newTestProvider()
	owner := appCtx(1)

	res := exec(t, p, owner, "shm.create", map[string]interface{}{
		"name": "gone",
		"size": float64(64),
	})
	handle := float64(res.Data["handle"].(uint64))

	exec(t, p, owner, "shm.close", map[string]interface{}{"handle": handle})

	stale, err := p.Execute(context.Background(), "shm.info", map[string]interface{}{
		"handle": handle,
	}, owner)
	assert.Error(t, err)
	assert.False(t, stale.Success)
}

func TestMissingAndMalformedParams(t *testing.T) {
	p := newTestProvider()
	owner := appCtx(1)

	res, err := p.Execute(context.Background(), "shm.create", map[string]interface{}{
		"size": float64(64),
	}, owner)
	assert.Error(t, err)
	assert.False(t, res.Success)

	res, err = p.Execute(context.Background(), "shm.create", map[string]interface{}{
		"name":         "bad",
		"size":         float64(64),
		"default_perm": "superuser",
	}, owner)
	assert.Error(t, err)
	assert.False(t, res.Success)

	created := exec(t, p, owner, "shm.create", map[string]interface{}{
		"name": "b64",
		"size": float64(64),
	})
	res, err = p.Execute(context.Background(), "shm.write", map[string]interface{}{
		"handle": float64(created.Data["handle"].(uint64)),
		"offset": float64(0),
		"data":   "not base64!!",
	}, owner)
	assert.Error(t, err)
	assert.False(t, res.Success)

	res, err = p.Execute(context.Background(), "shm.frobnicate", nil, owner)
	assert.Error(t, err)
	assert.False(t, res.Success)
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarksys/shmd/internal/shared/types"
)

type mockProvider struct {
	def      types.Service
	lastTool string
}

func (p *mockProvider) Definition() types.Service { return p.def }

func (p *mockProvider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	p.lastTool = toolID
	return &types.Result{Success: true, Data: map[string]interface{}{"tool": toolID}}, nil
}

func newMockProvider(id string, category types.Category, tools int) *mockProvider {
	def := types.Service{ID: id, Name: id, Category: category}
	for i := 0; i < tools; i++ {
		def.Tools = append(def.Tools, types.Tool{ID: id + ".tool", Name: "tool"})
	}
	return &mockProvider{def: def}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	p := newMockProvider("shm", types.CategoryMemory, 3)

	require.NoError(t, r.Register(p))

	got, ok := r.Get("shm")
	require.True(t, ok)
	assert.Equal(t, "shm", got.Definition().ID)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegisterRejectsEmptyID(t *testing.T) {
	r := NewRegistry()
	err := r.Register(newMockProvider("", types.CategoryMemory, 0))
	assert.Error(t, err)
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newMockProvider("shm", types.CategoryMemory, 1)))

	r.Unregister("shm")
	_, ok := r.Get("shm")
	assert.False(t, ok)
}

func TestListByCategory(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newMockProvider("shm", types.CategoryMemory, 2)))
	require.NoError(t, r.Register(newMockProvider("sys", types.CategorySystem, 1)))

	assert.Len(t, r.List(nil), 2)

	mem := types.CategoryMemory
	got := r.List(&mem)
	require.Len(t, got, 1)
	assert.Equal(t, "shm", got[0].ID)
}

func TestExecuteDispatchesByServicePrefix(t *testing.T) {
	r := NewRegistry()
	p := newMockProvider("shm", types.CategoryMemory, 1)
	require.NoError(t, r.Register(p))

	res, err := r.Execute(context.Background(), "shm.create", map[string]interface{}{"name": "fb"}, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "shm.create", p.lastTool)
}

func TestExecuteErrors(t *testing.T) {
	r := NewRegistry()

	res, err := r.Execute(context.Background(), "noseparator", nil, nil)
	assert.Error(t, err)
	assert.False(t, res.Success)

	res, err = r.Execute(context.Background(), "ghost.tool", nil, nil)
	assert.Error(t, err)
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "ghost")
}

func TestStats(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newMockProvider("shm", types.CategoryMemory, 11)))
	require.NoError(t, r.Register(newMockProvider("sys", types.CategorySystem, 2)))

	stats := r.Stats()
	assert.Equal(t, 2, stats["total_services"])
	assert.Equal(t, 13, stats["total_tools"])
	assert.Equal(t, map[string]int{"memory": 1, "system": 1}, stats["categories"])
}

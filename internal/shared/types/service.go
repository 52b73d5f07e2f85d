package types

// Category represents service categories.
type Category string

const (
	CategorySystem Category = "system"
	CategoryMemory Category = "memory"
)

// Service represents a service definition.
type Service struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	Capabilities []string `json:"capabilities"`
	Tools        []Tool   `json:"tools"`
}

// Tool represents a service tool.
type Tool struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Returns     string      `json:"returns"`
}

// Parameter represents a tool parameter.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Context carries the caller's identity into tool execution. AppID is
// the opaque sandbox app id supplied by the identity provider; tools
// that touch regions require it.
type Context struct {
	AppID *uint32 `json:"app_id,omitempty"`
}

// Result represents a service execution result.
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *string                `json:"error,omitempty"`
}

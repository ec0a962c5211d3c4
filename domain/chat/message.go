package chat

import (
	"chat-relay/errors"
	"fmt"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
	"strings"
	"time"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
	RoleTool   Role = "tool"
)

var knownRoles = map[Role]struct{}{
	RoleUser:   {},
	RoleAgent:  {},
	RoleSystem: {},
	RoleTool:   {},
}

func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

// ParseRole returns the role named by raw. A missing role means user.
// An unknown role also resolves to user and reports known=false so the
// caller can log the coercion.
func ParseRole(raw string) (role Role, known bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return RoleUser, true
	}
	role = Role(raw)
	if !role.Valid() {
		return RoleUser, false
	}
	return role, true
}

// Message is immutable once stored.
// AuthorUserID is set if and only if Role is RoleUser.
type Message struct {
	ID           uuid.UUID      `json:"id"`
	SessionID    uuid.UUID      `json:"session_id"`
	AuthorUserID *uuid.UUID     `json:"author_user_id"`
	Role         Role           `json:"role"`
	Content      string         `json:"content"`
	ToolCalls    []any          `json:"tool_calls"`
	ToolMetadata map[string]any `json:"tool_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

// MessageDraft is what a writer hands to the message store.
// ToolCalls and ToolMetadata are raw decoded JSON, normalized on append.
type MessageDraft struct {
	SessionID    uuid.UUID
	AuthorUserID *uuid.UUID
	Role         Role
	Content      string
	ToolCalls    any
	ToolMetadata any
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ListOptions filters and pages a session history.
// Since is inclusive. An empty Roles slice keeps every role.
type ListOptions struct {
	Limit     int
	Offset    int
	Roles     []Role
	Since     *time.Time
	OrderDesc bool
}

// Normalize clamps the paging values into their accepted range.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

func (o ListOptions) Keeps(m Message) bool {
	if o.Since != nil && m.CreatedAt.Before(*o.Since) {
		return false
	}
	if len(o.Roles) == 0 {
		return true
	}
	for _, r := range o.Roles {
		if r == m.Role {
			return true
		}
	}
	return false
}

// NormalizeToolCalls validates that raw is a JSON-compatible tree and returns it as a list.
// A single object becomes a one-element list.
func NormalizeToolCalls(raw any) ([]any, error) {
	if raw == nil {
		return nil, nil
	}
	v, err := structpb.NewValue(raw)
	if err != nil {
		return nil, fmt.Errorf("tool_calls: %v: %w", err, errors.ErrInvalidPayload)
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_ListValue:
		return kind.ListValue.AsSlice(), nil
	case *structpb.Value_StructValue:
		return []any{kind.StructValue.AsMap()}, nil
	default:
		return nil, fmt.Errorf("tool_calls must be a list or an object: %w", errors.ErrInvalidPayload)
	}
}

// NormalizeToolMetadata validates that raw is a JSON object.
func NormalizeToolMetadata(raw any) (map[string]any, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("tool_metadata must be an object: %w", errors.ErrInvalidPayload)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("tool_metadata: %v: %w", err, errors.ErrInvalidPayload)
	}
	return s.AsMap(), nil
}

// IsEmptyToolPayload reports whether raw carries no tool call at all.
// Falsy JSON scalars ("", false, 0) count as empty.
func IsEmptyToolPayload(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case string:
		return v == ""
	case bool:
		return !v
	case float64:
		return v == 0
	case int:
		return v == 0
	default:
		return false
	}
}

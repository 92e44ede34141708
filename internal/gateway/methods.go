package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// HeartbeatSessionKey returns the session an agent actively reads on each
// heartbeat tick. Task instructions are delivered there.
func HeartbeatSessionKey(agentID string) string {
	return fmt.Sprintf("agent:%s:cron:%s-heartbeat", agentID, agentID)
}

// SendMessage delivers a chat message to an agent session. With deliver set,
// the gateway injects it into the agent's current turn instead of queueing
// it. Each call carries a fresh idempotency key.
func (c *Client) SendMessage(ctx context.Context, message, sessionKey string, deliver bool) (json.RawMessage, error) {
	return c.Call(ctx, "chat.send", map[string]any{
		"sessionKey":     sessionKey,
		"message":        message,
		"deliver":        deliver,
		"idempotencyKey": uuid.NewString(),
	})
}

// EnsureSession creates or updates an agent session.
func (c *Client) EnsureSession(ctx context.Context, sessionKey, label string) (json.RawMessage, error) {
	params := map[string]any{"key": sessionKey}
	if label != "" {
		params["label"] = label
	}
	return c.Call(ctx, "sessions.patch", params)
}

// WakeAgent triggers an agent's next heartbeat immediately.
func (c *Client) WakeAgent(ctx context.Context, agentID string) (json.RawMessage, error) {
	return c.Call(ctx, "wake", map[string]any{"agentId": agentID})
}

// ListSessions lists all gateway sessions.
func (c *Client) ListSessions(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, "sessions.list", nil)
}

// ChatHistory fetches chat history for a session. A limit of 0 means no
// limit parameter is sent.
func (c *Client) ChatHistory(ctx context.Context, sessionKey string, limit int) (json.RawMessage, error) {
	params := map[string]any{"sessionKey": sessionKey}
	if limit > 0 {
		params["limit"] = limit
	}
	return c.Call(ctx, "chat.history", params)
}

// GetAgentFile reads an agent workspace file via the gateway.
func (c *Client) GetAgentFile(ctx context.Context, agentID, name string) (json.RawMessage, error) {
	return c.Call(ctx, "agents.files.get", map[string]any{
		"agentId": agentID,
		"name":    name,
	})
}

// SetAgentFile writes an agent workspace file via the gateway.
func (c *Client) SetAgentFile(ctx context.Context, agentID, name, content string) (json.RawMessage, error) {
	return c.Call(ctx, "agents.files.set", map[string]any{
		"agentId": agentID,
		"name":    name,
		"content": content,
	})
}

// Health checks gateway health.
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, "health", nil)
}

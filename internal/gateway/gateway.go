// Package gateway implements the RPC client for the agent control gateway.
//
// Gateway protocol v3:
//  1. Connect to ws://host:port?token=<token>
//  2. Receive a best-effort connect.challenge event
//  3. Send a connect request declaring the operator role
//  4. Call the RPC method (chat.send, sessions.patch, wake, ...)
//
// Every call opens a fresh connection and closes it when the call finishes.
// The full handshake per call costs latency but leaves no persistent
// connection state to reconcile after a crash.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mattjoyce/missionctl/internal/log"
)

// ProtocolVersion is the only gateway protocol revision this client speaks.
const ProtocolVersion = 3

// OperatorScopes are the capability scopes declared in the connect handshake.
var OperatorScopes = []string{
	"operator.admin",
	"operator.approvals",
	"operator.pairing",
}

const (
	challengeWait  = 3 * time.Second
	handshakeWait  = 10 * time.Second
	defaultTimeout = 30 * time.Second

	clientID       = "missionctl"
	clientVersion  = "2.1.0"
	clientPlatform = "server"
	clientMode     = "api"
)

// Error is the single error kind raised by gateway calls. It covers remote
// rejections, response timeouts and connectivity failures alike; callers
// that need to react differently inspect the message.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return "gateway: " + e.Message
}

func errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Config holds the connection settings for the gateway.
type Config struct {
	URL   string // e.g. ws://127.0.0.1:18789
	Token string
}

// BuildWSURL appends the token as a query parameter when present.
func BuildWSURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.URL)
	if base == "" {
		return "", errorf("gateway URL is not configured")
	}
	if cfg.Token == "" {
		return base, nil
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", errorf("invalid gateway URL %q: %v", base, err)
	}
	q := parsed.Query()
	q.Set("token", cfg.Token)
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// Client performs one-shot RPC calls against the gateway.
type Client struct {
	cfg     Config
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a gateway client. A zero timeout selects the default 30s
// response wait.
func NewClient(cfg Config, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cfg:     cfg,
		timeout: timeout,
		logger:  log.WithComponent("gateway"),
	}
}

// Call opens a connection, performs the handshake, invokes method and
// returns the response payload. All failures surface as *Error.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	wsURL, err := BuildWSURL(c.cfg)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	c.logger.Info("rpc call", "method", method)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		c.logger.Error("rpc dial failed", "method", method, "error", err)
		return nil, errorf("connect to gateway: %v", err)
	}
	defer conn.Close()

	// Step 1: best-effort challenge. Absence is not an error.
	c.readChallenge(conn)

	// Step 2: handshake.
	connectID := uuid.NewString()
	if err := c.writeRequest(conn, connectID, "connect", c.connectParams()); err != nil {
		return nil, err
	}
	if _, err := c.awaitResponse(conn, connectID, handshakeWait); err != nil {
		c.logger.Error("handshake failed", "error", err)
		return nil, err
	}

	// Step 3: the actual method call.
	requestID := uuid.NewString()
	if err := c.writeRequest(conn, requestID, method, params); err != nil {
		return nil, err
	}
	payload, err := c.awaitResponse(conn, requestID, c.timeout)
	if err != nil {
		c.logger.Error("rpc failed", "method", method, "elapsed_ms", time.Since(started).Milliseconds(), "error", err)
		return nil, err
	}

	c.logger.Info("rpc ok", "method", method, "elapsed_ms", time.Since(started).Milliseconds())
	return payload, nil
}

func (c *Client) connectParams() map[string]any {
	params := map[string]any{
		"minProtocol": ProtocolVersion,
		"maxProtocol": ProtocolVersion,
		"role":        "operator",
		"scopes":      OperatorScopes,
		"client": map[string]any{
			"id":       clientID,
			"version":  clientVersion,
			"platform": clientPlatform,
			"mode":     clientMode,
		},
	}
	if c.cfg.Token != "" {
		params["auth"] = map[string]any{"token": c.cfg.Token}
	}
	return params
}

// readChallenge waits briefly for the connect.challenge event. Anything
// else, or nothing at all, is tolerated.
func (c *Client) readChallenge(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(challengeWait))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		c.logger.Debug("no challenge received, proceeding")
		return
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event != "connect.challenge" {
		c.logger.Warn("unexpected first message", "type", env.Type, "event", env.Event)
	}
}

func (c *Client) writeRequest(conn *websocket.Conn, id, method string, params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	req := request{Type: "req", ID: id, Method: method, Params: params}
	c.logger.Debug("rpc send", "method", method, "id", id)
	if err := conn.WriteJSON(req); err != nil {
		return errorf("send %s request: %v", method, err)
	}
	return nil
}

// awaitResponse reads frames until one matches requestID, discarding
// unsolicited events and responses to other outstanding ids.
func (c *Client) awaitResponse(conn *websocket.Conn, requestID string, timeout time.Duration) (json.RawMessage, error) {
	deadline := time.Now().Add(timeout)
	_ = conn.SetReadDeadline(deadline)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return nil, errorf("timeout waiting for response to %s", requestID)
			}
			return nil, errorf("read response: %v", err)
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Debug("skipping unparsable frame")
			continue
		}

		// Canonical response envelope.
		if env.Type == "res" && env.ID == requestID {
			if env.OK != nil && !*env.OK {
				return nil, &Error{Message: env.errorMessage()}
			}
			return env.Payload, nil
		}

		// Generic envelope: match on id alone.
		if env.ID == requestID && env.Type == "" {
			if env.Err != nil {
				return nil, &Error{Message: env.errorMessage()}
			}
			return env.Result, nil
		}

		c.logger.Debug("rpc skip", "type", env.Type, "event", env.Event, "id", env.ID)
	}
}

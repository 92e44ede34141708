package dispatch

import (
	"context"
	"encoding/json"

	"github.com/mattjoyce/missionctl/internal/gateway"
	"github.com/mattjoyce/missionctl/internal/model"
)

// Strategy is one way of delivering an instruction to an agent. The
// dispatcher tries strategies in order and aggregates their failure reasons,
// so adding a delivery channel is a data change, not a control-flow change.
type Strategy interface {
	// Name labels the strategy in aggregated error text, e.g. "RPC".
	Name() string

	// Deliver attempts delivery and returns a short response description.
	Deliver(ctx context.Context, task model.Task, agentID, message string) (string, error)
}

// GatewaySender is the slice of the gateway client used for delivery.
type GatewaySender interface {
	SendMessage(ctx context.Context, message, sessionKey string, deliver bool) (json.RawMessage, error)
}

// CLIDeliverer is the slice of the agent CLI runner used for fallback
// delivery.
type CLIDeliverer interface {
	Deliver(ctx context.Context, agentID, message string) (string, error)
}

// GatewayStrategy delivers through the gateway's chat.send with the deliver
// flag set, targeting the agent's heartbeat session.
type GatewayStrategy struct {
	Gateway GatewaySender
}

func (s *GatewayStrategy) Name() string { return "RPC" }

func (s *GatewayStrategy) Deliver(ctx context.Context, _ model.Task, agentID, message string) (string, error) {
	payload, err := s.Gateway.SendMessage(ctx, message, gateway.HeartbeatSessionKey(agentID), true)
	if err != nil {
		return "", err
	}
	if len(payload) == 0 {
		return "ok", nil
	}
	return clip(string(payload), responsePreview), nil
}

// CLIStrategy delivers through the local agent CLI with a shortened message.
type CLIStrategy struct {
	Runner CLIDeliverer
}

func (s *CLIStrategy) Name() string { return "CLI" }

func (s *CLIStrategy) Deliver(ctx context.Context, task model.Task, agentID, _ string) (string, error) {
	return s.Runner.Deliver(ctx, agentID, buildShortMessage(task))
}

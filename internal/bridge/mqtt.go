package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/infrastructure/mqtt"
)

// MQTTClient is the part of *mqtt.Client the MQTT transport uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTTransport sends requests through a broker. Clients subscribe to
// their own request topic and publish replies on their response topic.
type MQTTTransport struct {
	client  MQTTClient
	qos     byte
	logger  Logger
	pending *pending
	closed  atomic.Bool
}

var _ Transport = (*MQTTTransport)(nil)

// NewMQTTTransport subscribes to every client's response topic.
func NewMQTTTransport(client MQTTClient, qos byte) (*MQTTTransport, error) {
	t := &MQTTTransport{
		client:  client,
		qos:     qos,
		logger:  noopLogger{},
		pending: newPending(),
	}
	if err := client.Subscribe(mqtt.Topics{}.AllResponses(), qos, t.handleResponse); err != nil {
		return nil, fmt.Errorf("subscribing to client responses: %w", err)
	}
	return t, nil
}

// SetLogger sets the logger for the transport.
func (t *MQTTTransport) SetLogger(logger Logger) {
	t.logger = logger
}

// Call publishes req and waits for the matching response.
func (t *MQTTTransport) Call(ctx context.Context, req Request) (Response, error) {
	if t.closed.Load() {
		return Response{}, fmt.Errorf("%w: %w", access.ErrNotConnected, ErrClosed)
	}
	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encoding request: %w", err)
	}

	ch := t.pending.add(req)
	defer t.pending.remove(req.ID)

	if err := t.client.Publish(mqtt.Topics{}.Request(req.Client), data, t.qos, false); err != nil {
		return Response{}, fmt.Errorf("%w: %w", access.ErrNotConnected, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (t *MQTTTransport) handleResponse(topic string, payload []byte) error {
	client := mqtt.Topics{}.ClientOf(topic)
	if client == "" {
		return fmt.Errorf("%w: unexpected topic %q", ErrBadResponse, topic)
	}
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if !t.pending.resolve(client, resp) {
		t.logger.Debug("response without a waiting request", "client", client, "id", resp.ID)
	}
	return nil
}

// Close stops listening for responses.
func (t *MQTTTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.client.Unsubscribe(mqtt.Topics{}.AllResponses())
}

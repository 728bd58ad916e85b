// Package mqtt publishes stored changes to an MQTT broker so other devices
// of the same user know to reload, and lets clients follow that feed.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"namaz/internal/domain"
)

const (
	qos            = 1
	publishTimeout = 2 * time.Second
)

// Client is the subset of the paho client used here.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	Unsubscribe(topics ...string) pahomqtt.Token
}

// Topic returns the change feed topic of a user.
func Topic(userID int64) string {
	return fmt.Sprintf("namaz/users/%d/changes", userID)
}

// Connect dials the broker. Reconnects are automatic after the first success.
func Connect(broker, clientID string, logger zerolog.Logger) (pahomqtt.Client, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.OnConnect = func(pahomqtt.Client) {
		logger.Info().Str("broker", broker).Msg("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ pahomqtt.Client, err error) {
		logger.Warn().Err(err).Str("broker", broker).Msg("MQTT connection lost")
	}

	c := pahomqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", broker, token.Error())
	}
	return c, nil
}

// Notifier implements domain.ChangeNotifier over MQTT.
type Notifier struct {
	client Client
	logger zerolog.Logger
}

var _ domain.ChangeNotifier = (*Notifier)(nil)

// NewNotifier returns a notifier publishing through client.
func NewNotifier(client Client, logger zerolog.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// Publish sends ev to the user's topic. Failures are logged and dropped.
func (n *Notifier) Publish(_ context.Context, ev domain.ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error().Err(err).Msg("encode change event")
		return
	}
	topic := Topic(ev.UserID)
	token := n.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		n.logger.Warn().Str("topic", topic).Msg("MQTT publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		n.logger.Warn().Err(err).Str("topic", topic).Msg("MQTT publish")
	}
}

// Watch calls fn for every change event of userID until ctx is done.
// Messages that do not decode are skipped.
func Watch(ctx context.Context, client Client, userID int64, fn func(domain.ChangeEvent)) error {
	topic := Topic(userID)
	handler := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		var ev domain.ChangeEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			return
		}
		fn(ev)
	}
	if token := client.Subscribe(topic, qos, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}

	<-ctx.Done()
	client.Unsubscribe(topic).WaitTimeout(publishTimeout)
	return nil
}

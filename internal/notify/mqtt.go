// Package notify delivers guardian notifications over MQTT or to the log.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/alert"
)

// Publisher is the part of mqtt.Client the notifier needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTNotifier publishes notifications to <prefix>/<subject>/notifications.
type MQTTNotifier struct {
	client  Publisher
	prefix  string
	qos     byte
	timeout time.Duration
}

// NewMQTTNotifier returns a notifier publishing at QoS 1 under prefix.
func NewMQTTNotifier(client Publisher, prefix string) *MQTTNotifier {
	return &MQTTNotifier{
		client:  client,
		prefix:  strings.Trim(prefix, "/"),
		qos:     1,
		timeout: 5 * time.Second,
	}
}

// Topic returns the notification topic of a subject.
func (n *MQTTNotifier) Topic(subjectID string) string {
	return fmt.Sprintf("%s/%s/notifications", n.prefix, subjectID)
}

func (n *MQTTNotifier) Notify(ctx context.Context, note alert.Notification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	token := n.client.Publish(n.Topic(note.SubjectID), n.qos, false, payload)
	timer := time.NewTimer(n.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publish to %s timed out after %s", n.Topic(note.SubjectID), n.timeout)
	}
	return classify(token.Error())
}

// classify maps broker authorisation refusals to alert.ErrPermissionDenied.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, packets.ErrorRefusedNotAuthorised) || errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) {
		return fmt.Errorf("%w: %v", alert.ErrPermissionDenied, err)
	}
	return err
}

// DialOptions configures Dial.
type DialOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Timeout  time.Duration
}

// Dial connects an MQTT client with auto-reconnect enabled. A refused
// connection for bad credentials is reported as alert.ErrPermissionDenied.
func Dial(opts DialOptions) (mqtt.Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(opts.Timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("mqtt: connection to %s lost: %v", opts.Broker, err)
		})
	if opts.Username != "" {
		co.SetUsername(opts.Username).SetPassword(opts.Password)
	}

	client := mqtt.NewClient(co)
	token := client.Connect()
	if !token.WaitTimeout(opts.Timeout) {
		return nil, fmt.Errorf("connect to %s timed out", opts.Broker)
	}
	if err := classify(token.Error()); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", opts.Broker, err)
	}
	log.Printf("mqtt: connected to %s as %s", opts.Broker, opts.ClientID)
	return client, nil
}

package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/monitoring"
)

// Subscriber is the part of mqtt.Client the ingest side needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// MQTTSource consumes <prefix>/<subject>/fix and <prefix>/<subject>/motion.
// The subject comes from the topic; a subject in the payload is ignored.
type MQTTSource struct {
	client Subscriber
	prefix string
	router *Router
	ctx    context.Context
}

// NewMQTTSource returns a source that routes messages through r.
func NewMQTTSource(client Subscriber, prefix string, r *Router) *MQTTSource {
	return &MQTTSource{client: client, prefix: strings.Trim(prefix, "/"), router: r, ctx: context.Background()}
}

func (s *MQTTSource) topics() []string {
	return []string{
		fmt.Sprintf("%s/+/%s", s.prefix, PayloadFix),
		fmt.Sprintf("%s/+/%s", s.prefix, PayloadMotion),
	}
}

// Start subscribes to both topics. Handlers run with ctx until Stop.
func (s *MQTTSource) Start(ctx context.Context) error {
	s.ctx = ctx
	for _, topic := range s.topics() {
		token := s.client.Subscribe(topic, 1, s.handle)
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("subscribe to %s timed out", topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		log.Printf("mqtt: subscribed to %s", topic)
	}
	return nil
}

// Stop unsubscribes from both topics.
func (s *MQTTSource) Stop() {
	token := s.client.Unsubscribe(s.topics()...)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("mqtt: unsubscribe failed: %v", token.Error())
	}
}

func (s *MQTTSource) handle(_ mqtt.Client, msg mqtt.Message) {
	subject, kind, ok := s.parseTopic(msg.Topic())
	if !ok {
		monitoring.Inc(monitoring.IngestRejected)
		monitoring.Logf("mqtt: ignoring message on %s", msg.Topic())
		return
	}
	ev, err := ParseTyped(kind, msg.Payload(), s.router.nowMs())
	if err != nil {
		monitoring.Inc(monitoring.IngestRejected)
		monitoring.Logf("mqtt: bad %s payload for %s: %v", kind, subject, err)
		return
	}
	ev.SubjectID = subject
	if err := s.router.Route(s.ctx, ev); err != nil {
		monitoring.Logf("mqtt: %s for %s failed: %v", kind, subject, err)
	}
}

func (s *MQTTSource) parseTopic(topic string) (subject, kind string, ok bool) {
	rest, found := strings.CutPrefix(topic, s.prefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
		return "", "", false
	}
	if parts[1] != PayloadFix && parts[1] != PayloadMotion {
		return "", "", false
	}
	return parts[0], parts[1], true
}

package mqtt

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/protoflow/internal/events"
	"github.com/AaronLay10/protoflow/internal/patch"
	"github.com/AaronLay10/protoflow/internal/player"
)

// Conn is the broker connection the bridge needs. *Client implements it.
type Conn interface {
	Subscribe(topic string, handler paho.MessageHandler) error
	Publish(topic string, payload []byte) error
	IsConnected() bool
}

// Target receives inbound gestures and variable writes. *player.Player
// implements it.
type Target interface {
	Gesture(g patch.Gesture) error
	SetVariable(id string, v interface{}) error
}

// VariableMessage is the payload of the variable topic.
type VariableMessage struct {
	ID    string      `json:"id"`
	Value interface{} `json:"value"`
}

// StateMessage is published when the active display state or keyframe changes.
type StateMessage struct {
	DisplayStateID string  `json:"displayStateId"`
	KeyframeID     string  `json:"keyframeId"`
	At             float64 `json:"t"`
}

// Bridge connects one running prototype to MQTT. It listens on
// <prefix>/<project>/gesture and <prefix>/<project>/variable and publishes
// to <prefix>/<project>/state.
type Bridge struct {
	conn   Conn
	target Target
	prefix string

	mu         sync.RWMutex
	subscribed map[string]bool // topic -> subscribed
	last       StateMessage
	published  bool
}

// NewBridge creates a bridge for projectID under topicPrefix.
func NewBridge(conn Conn, target Target, topicPrefix, projectID string) *Bridge {
	return &Bridge{
		conn:       conn,
		target:     target,
		prefix:     topicPrefix + "/" + projectID,
		subscribed: make(map[string]bool),
	}
}

func (b *Bridge) GestureTopic() string  { return b.prefix + "/gesture" }
func (b *Bridge) VariableTopic() string { return b.prefix + "/variable" }
func (b *Bridge) StateTopic() string    { return b.prefix + "/state" }

// Subscribe subscribes to the inbound topics not yet subscribed.
// This is idempotent - calling it after every reconnect is safe.
func (b *Bridge) Subscribe() error {
	handlers := map[string]paho.MessageHandler{
		b.GestureTopic():  b.handleGesture,
		b.VariableTopic(): b.handleVariable,
	}
	for topic, handler := range handlers {
		if b.IsSubscribed(topic) {
			continue
		}
		if err := b.conn.Subscribe(topic, handler); err != nil {
			return err
		}
		b.mu.Lock()
		b.subscribed[topic] = true
		b.mu.Unlock()
	}
	return nil
}

func (b *Bridge) handleGesture(_ paho.Client, msg paho.Message) {
	var g patch.Gesture
	if err := json.Unmarshal(msg.Payload(), &g); err != nil {
		b.reject(msg.Topic(), err)
		return
	}
	if err := b.target.Gesture(g); err != nil {
		b.reject(msg.Topic(), err)
		return
	}
	events.Emit("debug", "bridge.received", "", map[string]interface{}{
		"topic":      msg.Topic(),
		"kind":       string(g.Kind),
		"element_id": g.ElementID,
	})
}

func (b *Bridge) handleVariable(_ paho.Client, msg paho.Message) {
	var m VariableMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		b.reject(msg.Topic(), err)
		return
	}
	if m.ID == "" {
		b.reject(msg.Topic(), fmt.Errorf("variable id missing"))
		return
	}
	if err := b.target.SetVariable(m.ID, m.Value); err != nil {
		b.reject(msg.Topic(), err)
		return
	}
	events.Emit("debug", "bridge.received", "", map[string]interface{}{
		"topic":       msg.Topic(),
		"variable_id": m.ID,
	})
}

func (b *Bridge) reject(topic string, err error) {
	events.Emit("warn", "bridge.rejected", err.Error(), map[string]interface{}{"topic": topic})
}

// ObserveFrame publishes the state topic when the frame's display state or
// keyframe differs from the last one published. It is meant for
// player.OnFrame and never blocks on the broker.
func (b *Bridge) ObserveFrame(f *player.Frame) {
	msg := StateMessage{DisplayStateID: f.ActiveDisplayStateID, KeyframeID: f.ActiveKeyframeID, At: f.At}

	b.mu.Lock()
	if b.published && b.last.DisplayStateID == msg.DisplayStateID && b.last.KeyframeID == msg.KeyframeID {
		b.mu.Unlock()
		return
	}
	if !b.conn.IsConnected() {
		b.mu.Unlock()
		return
	}
	b.last = msg
	b.published = true
	b.mu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := b.conn.Publish(b.StateTopic(), payload); err != nil {
		b.mu.Lock()
		b.published = false
		b.mu.Unlock()
	}
}

// IsSubscribed returns true if the topic is already subscribed.
func (b *Bridge) IsSubscribed(topic string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.subscribed[topic]
}

// SubscribedTopics returns the subscribed topics, sorted.
func (b *Bridge) SubscribedTopics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topics := make([]string, 0, len(b.subscribed))
	for topic := range b.subscribed {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// ClearSubscriptions clears the subscription tracking.
// Call this on disconnect to allow re-subscription on reconnect.
func (b *Bridge) ClearSubscriptions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed = make(map[string]bool)
	b.published = false
}

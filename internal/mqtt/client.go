package mqtt

import (
	"errors"
	"log"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Client wraps the Paho MQTT client for the preview bridge.
type Client struct {
	client paho.Client
	mu     sync.Mutex

	hookMu    sync.Mutex
	onConnect func()
	onLost    func(error)
}

// BrokerURL returns the MQTT broker URL from env or default.
func BrokerURL() string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	return "tcp://localhost:1883"
}

// NewClient creates a new MQTT client but does not connect.
func NewClient(clientID string) *Client {
	opts := paho.NewClientOptions().
		AddBroker(BrokerURL()).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	c := &Client{}
	opts.SetOnConnectHandler(func(paho.Client) {
		c.hookMu.Lock()
		fn := c.onConnect
		c.hookMu.Unlock()
		if fn != nil {
			fn()
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.hookMu.Lock()
		fn := c.onLost
		c.hookMu.Unlock()
		if fn != nil {
			fn(err)
		}
	})
	c.client = paho.NewClient(opts)
	return c
}

// OnConnect sets a callback run after every successful (re)connect.
func (c *Client) OnConnect(fn func()) {
	c.hookMu.Lock()
	c.onConnect = fn
	c.hookMu.Unlock()
}

// OnConnectionLost sets a callback run when the broker connection drops.
func (c *Client) OnConnectionLost(fn func(error)) {
	c.hookMu.Lock()
	c.onLost = fn
	c.hookMu.Unlock()
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return &ConnectTimeoutError{}
	}
	if err := token.Error(); err != nil {
		return err
	}
	return nil
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(10 * time.Second) {
		return &SubscribeTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Publish sends payload to topic without waiting for delivery. Failures
// are logged once the token completes.
func (c *Client) Publish(topic string, payload []byte) error {
	if !c.client.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, 0, false, payload)
	go func() {
		if !token.WaitTimeout(10 * time.Second) {
			log.Printf("mqtt: publish to %s timed out", topic)
			return
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: publish to %s failed: %v", topic, err)
		}
	}()
	return nil
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// ErrNotConnected is returned by Publish while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt not connected")

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

// SubscribeTimeoutError indicates subscription timed out.
type SubscribeTimeoutError struct {
	Topic string
}

func (e *SubscribeTimeoutError) Error() string {
	return "mqtt subscribe timeout: " + e.Topic
}

// StartWithRetry connects and attaches the bridge, logging errors but not
// crashing. Returns true if connected, false otherwise. status, if set,
// follows later connection changes.
func (c *Client) StartWithRetry(b *Bridge, status func(connected bool)) bool {
	if status == nil {
		status = func(bool) {}
	}
	if err := c.Connect(); err != nil {
		log.Printf("mqtt: failed to connect to %s: %v", BrokerURL(), err)
		return false
	}

	c.OnConnectionLost(func(err error) {
		log.Printf("mqtt: connection lost: %v", err)
		b.ClearSubscriptions()
		status(false)
	})
	c.OnConnect(func() {
		status(true)
		// paho runs this on its own goroutine; Subscribe waits on a token.
		go func() {
			if err := b.Subscribe(); err != nil {
				log.Printf("mqtt: resubscribe failed: %v", err)
			}
		}()
	})

	if err := b.Subscribe(); err != nil {
		log.Printf("mqtt: failed to subscribe: %v", err)
		return false
	}

	log.Printf("mqtt: connected, bridging %s", b.prefix)
	return true
}

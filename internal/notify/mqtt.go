// Package notify publishes task progress to external listeners.
package notify

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Publisher receives every task state change.
type Publisher interface {
	Publish(taskID string, state any)
	Close()
}

// Nop discards every update.
type Nop struct{}

func (Nop) Publish(string, any) {}
func (Nop) Close()              {}

// MQTT publishes task snapshots as retained JSON messages to
// <prefix>/tasks/<id>, so late subscribers see the latest state.
type MQTT struct {
	conn      mqtt.Client
	prefix    string
	connected atomic.Bool
	published atomic.Int64
	log       zerolog.Logger
}

type Options struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
	Log         zerolog.Logger
}

// Connect dials the broker. Reconnects are handled by the client library.
func Connect(opts Options) (*MQTT, error) {
	m := &MQTT{
		prefix: strings.Trim(opts.TopicPrefix, "/"),
		log:    opts.Log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(m.onConnect).
		SetConnectionLostHandler(m.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	m.conn = mqtt.NewClient(clientOpts)
	token := m.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MQTT) onConnect(_ mqtt.Client) {
	m.connected.Store(true)
	m.log.Info().Str("prefix", m.prefix).Msg("mqtt connected")
}

func (m *MQTT) onConnectionLost(_ mqtt.Client, err error) {
	m.connected.Store(false)
	m.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

// Topic returns the topic updates for taskID are published to.
func (m *MQTT) Topic(taskID string) string {
	return TaskTopic(m.prefix, taskID)
}

// TaskTopic builds <prefix>/tasks/<id>.
func TaskTopic(prefix, taskID string) string {
	if prefix == "" {
		return "tasks/" + taskID
	}
	return prefix + "/tasks/" + taskID
}

// Publish sends state without waiting for the broker. Failures are logged.
func (m *MQTT) Publish(taskID string, state any) {
	payload, err := json.Marshal(state)
	if err != nil {
		m.log.Warn().Err(err).Str("task_id", taskID).Msg("marshal task update")
		return
	}
	token := m.conn.Publish(m.Topic(taskID), 0, true, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			m.log.Warn().Err(token.Error()).Str("task_id", taskID).Msg("mqtt publish failed")
			return
		}
		m.published.Add(1)
	}()
}

func (m *MQTT) IsConnected() bool {
	return m.connected.Load()
}

// Published returns the number of acknowledged publishes.
func (m *MQTT) Published() int64 { return m.published.Load() }

func (m *MQTT) Close() {
	m.log.Info().Int64("published", m.published.Load()).Msg("disconnecting mqtt client")
	m.conn.Disconnect(1000)
}

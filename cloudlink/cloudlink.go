// Package cloudlink implements a client for a cloud IoT broker that
// pushes updates to named remote variables over a websocket connection.
//
// The client authenticates with a device ID and secret key using HTTP
// basic authentication on the websocket handshake, then sends a
// subscribe message naming the variables it is interested in:
//
//	{"type": "subscribe", "names": ["x", "y", "z"]}
//
// The broker sends one message for each variable update:
//
//	{"type": "update", "name": "x", "value": 0.981}
//
// or an error message, after which the connection is unusable:
//
//	{"type": "error", "error": "some message"}
package cloudlink

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/juju/loggo"
	"gopkg.in/errgo.v1"
)

var logger = loggo.GetLogger("accellog.cloudlink")

// ErrUnauthorized is the cause of the error returned by Dial
// when the broker rejects the device credentials.
var ErrUnauthorized = errgo.New("device credentials rejected")

// Message types.
const (
	TypeSubscribe = "subscribe"
	TypeUpdate    = "update"
	TypeError     = "error"
)

// Message holds a message as sent over the wire in either direction.
type Message struct {
	Type  string   `json:"type"`
	Names []string `json:"names,omitempty"`
	Name  string   `json:"name,omitempty"`
	Value *float64 `json:"value,omitempty"`
	Error string   `json:"error,omitempty"`
}

// Update holds a new value for a remote variable.
type Update struct {
	Name  string
	Value float64
}

// Params holds the parameters for a call to Dial.
type Params struct {
	// URL holds the websocket URL of the broker.
	URL string
	// DeviceID holds the device identifier used to authenticate.
	DeviceID string
	// Secret holds the secret key used to authenticate.
	Secret string
	// Names holds the names of the variables to subscribe to.
	Names []string
	// Dialer is used to make the connection.
	// If it's nil, websocket.DefaultDialer is used.
	Dialer *websocket.Dialer
}

// Conn represents a subscription to a set of remote variables.
type Conn struct {
	ws    *websocket.Conn
	url   string
	names map[string]bool
}

// Dial connects to the broker, authenticates and subscribes to
// all the variables named in p.Names.
func Dial(ctx context.Context, p Params) (*Conn, error) {
	if p.URL == "" {
		return nil, errgo.Newf("no broker URL specified")
	}
	if p.DeviceID == "" || p.Secret == "" {
		return nil, errgo.Newf("no device credentials specified")
	}
	if len(p.Names) == 0 {
		return nil, errgo.Newf("no variables to subscribe to")
	}
	dialer := p.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	h := make(http.Header)
	h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(p.DeviceID+":"+p.Secret)))
	ws, resp, err := dialer.DialContext(ctx, p.URL, h)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, errgo.WithCausef(err, ErrUnauthorized, "cannot connect to %s as %q", p.URL, p.DeviceID)
		}
		return nil, errgo.Notef(err, "cannot connect to %s", p.URL)
	}
	if err := ws.WriteJSON(Message{
		Type:  TypeSubscribe,
		Names: p.Names,
	}); err != nil {
		ws.Close()
		return nil, errgo.Notef(err, "cannot subscribe")
	}
	names := make(map[string]bool)
	for _, name := range p.Names {
		names[name] = true
	}
	logger.Infof("connected to %s as %q; subscribed to %v", p.URL, p.DeviceID, p.Names)
	return &Conn{
		ws:    ws,
		url:   p.URL,
		names: names,
	}, nil
}

// Run reads updates from the broker and sends them on the updates
// channel until the context is cancelled, in which case it returns
// nil, or the connection fails, in which case it returns the error.
// Updates are sent in the order that they are received.
//
// Malformed messages and updates to variables that were not
// subscribed to are logged and dropped.
func (c *Conn) Run(ctx context.Context, updates chan<- Update) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// Unblock the read below.
			c.ws.Close()
		case <-done:
		}
	}()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errgo.Notef(err, "cannot read from %s", c.url)
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			logger.Warningf("dropping malformed message %q: %v", data, err)
			continue
		}
		switch m.Type {
		case TypeUpdate:
			if !c.names[m.Name] {
				logger.Warningf("dropping update to unsubscribed variable %q", m.Name)
				continue
			}
			if m.Value == nil {
				logger.Warningf("dropping update to %q with no value", m.Name)
				continue
			}
			select {
			case updates <- Update{
				Name:  m.Name,
				Value: *m.Value,
			}:
			case <-ctx.Done():
				return nil
			}
		case TypeError:
			return errgo.Newf("broker error: %s", m.Error)
		default:
			logger.Warningf("ignoring message with unknown type %q", m.Type)
		}
	}
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}

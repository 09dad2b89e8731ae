// Package cloudlinktest provides an in-process broker that speaks the
// protocol understood by the cloudlink package. It's intended for
// testing and local simulation.
package cloudlinktest

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/loggo"
	"github.com/julienschmidt/httprouter"
	"gopkg.in/errgo.v1"
	"gopkg.in/httprequest.v1"

	"github.com/rogpeppe/accellog/cloudlink"
)

// Server represents a running broker.
type Server struct {
	// Addr holds the address the server is listening on.
	Addr string
	// URL holds the websocket URL that clients should dial.
	URL string

	deviceID string
	secret   string
	lis      net.Listener

	mu          sync.Mutex
	subscribers map[*subscriber]bool
	values      map[string]float64
}

type subscriber struct {
	// mu guards writes to ws.
	mu    sync.Mutex
	ws    *websocket.Conn
	names map[string]bool
}

var logger = loggo.GetLogger("accellog.cloudlinktest")

var reqServer = &httprequest.Server{}

var upgrader = websocket.Upgrader{}

// NewServer starts a broker listening on the given address
// that accepts clients authenticating with the given
// device ID and secret.
func NewServer(addr, deviceID, secret string) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &Server{
		Addr:        lis.Addr().String(),
		URL:         "ws://" + lis.Addr().String() + "/stream",
		deviceID:    deviceID,
		secret:      secret,
		lis:         lis,
		subscribers: make(map[*subscriber]bool),
		values:      make(map[string]float64),
	}
	router := httprouter.New()
	router.GET("/stream", srv.serveStream)
	for _, h := range reqServer.Handlers(srv.handler) {
		router.Handle(h.Method, h.Path, h.Handle)
	}
	go http.Serve(lis, router)
	return srv, nil
}

// Set sets the value of the named variable and sends
// an update to all clients subscribed to it.
func (srv *Server) Set(name string, value float64) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.values[name] = value
	m := cloudlink.Message{
		Type:  cloudlink.TypeUpdate,
		Name:  name,
		Value: &value,
	}
	for sub := range srv.subscribers {
		if sub.names[name] {
			sub.send(m)
		}
	}
}

// Value returns the most recently set value of the named variable.
func (srv *Server) Value(name string) (float64, bool) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	v, ok := srv.values[name]
	return v, ok
}

// SendRaw sends the given data as a message to all subscribers
// regardless of what they've subscribed to.
func (srv *Server) SendRaw(data []byte) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	for sub := range srv.subscribers {
		sub.sendRaw(data)
	}
}

// Fail sends an error message to all subscribers and
// disconnects them.
func (srv *Server) Fail(msg string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	for sub := range srv.subscribers {
		sub.send(cloudlink.Message{
			Type:  cloudlink.TypeError,
			Error: msg,
		})
		sub.ws.Close()
		delete(srv.subscribers, sub)
	}
}

// NumSubscribers returns the number of currently subscribed clients.
func (srv *Server) NumSubscribers() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return len(srv.subscribers)
}

// WaitSubscribers waits until at least n clients have subscribed.
func (srv *Server) WaitSubscribers(ctx context.Context, n int) error {
	for srv.NumSubscribers() < n {
		select {
		case <-ctx.Done():
			return errgo.Notef(ctx.Err(), "timed out waiting for %d subscribers", n)
		case <-time.After(5 * time.Millisecond):
		}
	}
	return nil
}

// Close stops the server listening and disconnects all clients.
func (srv *Server) Close() {
	srv.lis.Close()
	srv.mu.Lock()
	defer srv.mu.Unlock()
	for sub := range srv.subscribers {
		sub.ws.Close()
		delete(srv.subscribers, sub)
	}
}

func (srv *Server) serveStream(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	user, password, ok := req.BasicAuth()
	if !ok || user != srv.deviceID || password != srv.secret {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Errorf("cannot upgrade websocket: %v", err)
		return
	}
	defer ws.Close()
	var m cloudlink.Message
	if err := ws.ReadJSON(&m); err != nil {
		logger.Errorf("cannot read subscribe message: %v", err)
		return
	}
	if m.Type != cloudlink.TypeSubscribe {
		logger.Errorf("unexpected first message type %q", m.Type)
		return
	}
	sub := &subscriber{
		ws:    ws,
		names: make(map[string]bool),
	}
	for _, name := range m.Names {
		sub.names[name] = true
	}
	srv.mu.Lock()
	srv.subscribers[sub] = true
	srv.mu.Unlock()
	defer func() {
		srv.mu.Lock()
		delete(srv.subscribers, sub)
		srv.mu.Unlock()
	}()
	// Clients don't send anything after subscribing; just
	// wait for the connection to go away.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (sub *subscriber) send(m cloudlink.Message) {
	data, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	sub.sendRaw(data)
}

func (sub *subscriber) sendRaw(data []byte) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if err := sub.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Errorf("cannot send to subscriber: %v", err)
	}
}

func (srv *Server) handler(p httprequest.Params) (handler, context.Context, error) {
	return handler{srv}, p.Context, nil
}

type handler struct {
	srv *Server
}

type setValueReq struct {
	httprequest.Route `httprequest:"PUT /v/:name"`
	Name              string  `httprequest:"name,path"`
	Value             float64 `httprequest:"v,form"`
}

// SetValue sets the value of a variable, notifying any subscribers.
func (h handler) SetValue(req *setValueReq) error {
	if strings.TrimSpace(req.Name) == "" {
		return errgo.Newf("empty variable name")
	}
	h.srv.Set(req.Name, req.Value)
	return nil
}

// Package vizserver implements a web server that shows the most
// recent batch of accelerometer records as a line chart. The page
// refreshes itself over a websocket whenever a new batch arrives.
package vizserver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/websocket"
	"github.com/juju/loggo"
	"github.com/julienschmidt/httprouter"
	"gopkg.in/httprequest.v1"

	"github.com/rogpeppe/accellog/accel"
	"github.com/rogpeppe/accellog/asset"
	"github.com/rogpeppe/accellog/googlecharts"
	"github.com/rogpeppe/accellog/internal/notifier"
)

var logger = loggo.GetLogger("accellog.vizserver")

// DefaultTitle holds the page title used when none is specified.
const DefaultTitle = "Accelerometer Data Plot"

// Params holds the parameters for a call to New.
type Params struct {
	// Title holds the title of the page.
	// If it's empty, DefaultTitle is used.
	Title string
	// BatchSize holds the number of records in a batch.
	// It's used only in the chart title.
	BatchSize int
	// Location holds the time zone used to display timestamps.
	// If it's nil, UTC is used.
	Location *time.Location
}

// Server serves the chart page. It's an http.Handler.
type Server struct {
	p       Params
	batch   notifier.Value
	handler http.Handler
}

// New returns a new Server with no batch. It should be
// closed after use.
func New(p Params) *Server {
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	srv := &Server{
		p: p,
	}
	router := httprouter.New()
	router.GET("/", srv.serveIndex)
	router.GET("/batch.csv", srv.serveCSV)
	router.Handler(http.MethodGet, "/chart.js", http.FileServer(http.FS(asset.Data())))
	for _, h := range reqServer.Handlers(srv.apiHandler) {
		router.Handle(h.Method, h.Path, h.Handle)
	}
	mux := http.NewServeMux()
	// The websocket endpoint must not be wrapped by the
	// gzip handler because it needs to hijack the connection.
	mux.HandleFunc("/ws", srv.serveWatch)
	mux.Handle("/", gziphandler.GzipHandler(router))
	srv.handler = mux
	return srv
}

// SetBatch sets the batch to display. All watching clients
// are sent the new batch.
func (srv *Server) SetBatch(b accel.Batch) {
	srv.batch.Set(b)
	logger.Infof("showing batch %s (%d records)", b.ID, len(b.Records))
}

// Batch returns the batch currently being displayed and reports
// whether there is one.
func (srv *Server) Batch() (accel.Batch, bool) {
	b, ok := srv.batch.Get()
	if !ok {
		return accel.Batch{}, false
	}
	return b.(accel.Batch), true
}

// ServeHTTP implements http.Handler.
func (srv *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	srv.handler.ServeHTTP(w, req)
}

// Close closes the server, disconnecting any clients
// that are watching for new batches.
func (srv *Server) Close() {
	srv.batch.Close()
}

func (srv *Server) serveIndex(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	p := indexTemplParams{
		Title:      srv.p.Title,
		ChartTitle: "Accelerometer Data Over Time",
	}
	if srv.p.BatchSize > 0 {
		p.ChartTitle += fmt.Sprintf(" (Last %d Samples)", srv.p.BatchSize)
	}
	var b bytes.Buffer
	if err := indexTempl.Execute(&b, p); err != nil {
		logger.Errorf("index template execution failed: %v", err)
		http.Error(w, fmt.Sprintf("template execution failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(b.Bytes())
}

func (srv *Server) serveCSV(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	b, _ := srv.Batch()
	var buf bytes.Buffer
	if err := accel.WriteRecords(&buf, b.Records, srv.p.Location); err != nil {
		http.Error(w, fmt.Sprintf("cannot write records: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Write(buf.Bytes())
}

var upgrader = websocket.Upgrader{}

// serveWatch serves a websocket connection that's sent
// a BatchResponse every time the batch changes, starting
// with the current batch if there is one.
func (srv *Server) serveWatch(w http.ResponseWriter, req *http.Request) {
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Warningf("cannot upgrade websocket: %v", err)
		return
	}
	defer ws.Close()
	watcher := srv.batch.Watch()
	go func() {
		// Clients don't send anything; wait until
		// the connection is closed.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				watcher.Close()
				return
			}
		}
	}()
	for watcher.Next() {
		if err := ws.WriteJSON(srv.batchResponse(watcher.Value().(accel.Batch))); err != nil {
			logger.Debugf("cannot send batch to watcher: %v", err)
			watcher.Close()
			return
		}
	}
}

// BatchResponse holds the response to a GET /batch.json request.
// It's also sent to websocket watchers.
type BatchResponse struct {
	// ID holds the batch ID. It's empty if no batch
	// has been received yet.
	ID string `json:"id"`
	// Table holds the records in the batch.
	Table *googlecharts.DataTable `json:"table"`
}

type chartRow struct {
	Timestamp time.Time `googlecharts:"Timestamp,format=2006-01-02 15:04:05"`
	X         float64   `googlecharts:"x"`
	Y         float64   `googlecharts:"y"`
	Z         float64   `googlecharts:"z"`
}

func (srv *Server) batchResponse(b accel.Batch) *BatchResponse {
	rows := make([]chartRow, len(b.Records))
	for i, r := range b.Records {
		rows[i] = chartRow{
			Timestamp: r.Time.In(srv.p.Location),
			X:         r.X,
			Y:         r.Y,
			Z:         r.Z,
		}
	}
	return &BatchResponse{
		ID:    b.ID,
		Table: googlecharts.NewDataTable(rows),
	}
}

var reqServer httprequest.Server

func (srv *Server) apiHandler(p httprequest.Params) (*apiHandler, context.Context, error) {
	return &apiHandler{srv}, p.Context, nil
}

type apiHandler struct {
	srv *Server
}

type batchGetRequest struct {
	httprequest.Route `httprequest:"GET /batch.json"`
}

// GetBatch returns the current batch as a chart data table.
func (h *apiHandler) GetBatch(*batchGetRequest) (*BatchResponse, error) {
	b, _ := h.srv.Batch()
	return h.srv.batchResponse(b), nil
}

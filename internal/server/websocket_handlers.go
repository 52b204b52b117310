package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/MeKo-Tech/gobar/internal/generator"
	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketRequest is a client message on /ws. Type is "generate" (default)
// or "cancel".
type WebSocketRequest struct {
	Type      string `json:"type,omitempty"`
	Text      string `json:"text,omitempty"`
	Mode      string `json:"mode,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WebSocketMessage is a server message on /ws. Each accepted request yields
// "start", then "success" or "failure", then "finish"; rejected requests
// yield a single "error".
type WebSocketMessage struct {
	Type      string           `json:"type"`
	RequestID string           `json:"request_id,omitempty"`
	Result    *WebSocketResult `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorType string           `json:"error_type,omitempty"`
}

// WebSocketResult carries an outcome. Binary artifacts are base64 encoded:
// JPEG for bytes mode, PNG for image mode.
type WebSocketResult struct {
	Mode        string `json:"mode"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsSession serializes writes for one connection and tracks its tasks.
type wsSession struct {
	s    *Server
	conn WebSocketConnWriter

	writeMu sync.Mutex

	mu    sync.Mutex
	tasks map[string]*generator.Task
}

func newWSSession(s *Server, conn WebSocketConnWriter) *wsSession {
	return &wsSession{s: s, conn: conn, tasks: make(map[string]*generator.Task)}
}

// barcodeWebSocketHandler streams task notifications for barcode requests.
func (s *Server) barcodeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	sess := newWSSession(s, &deadlineConn{conn})
	defer sess.cancelAll()

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			sess.handleMessage(data)
		}
	}
}

// deadlineConn applies a write deadline to every message.
type deadlineConn struct{ *websocket.Conn }

func (c *deadlineConn) WriteMessage(messageType int, data []byte) error {
	_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.Conn.WriteMessage(messageType, data)
}

func (ws *wsSession) handleMessage(data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		ws.send(WebSocketMessage{Type: "error", Error: fmt.Sprintf("Failed to parse request: %v", err), ErrorType: "bad_request"})
		return
	}

	switch req.Type {
	case "", "generate":
		ws.generate(req)
	case "cancel":
		ws.cancel(req.RequestID)
	default:
		ws.send(WebSocketMessage{Type: "error", Error: "Unsupported request type: " + req.Type, ErrorType: "bad_request"})
	}
}

func (ws *wsSession) generate(body WebSocketRequest) {
	req, err := ws.s.toRequest(BarcodeRequest{Text: body.Text, Mode: body.Mode})
	if err != nil {
		ws.send(WebSocketMessage{Type: "error", Error: err.Error(), ErrorType: "bad_request"})
		return
	}
	if ws.s.gen == nil {
		ws.sendError("", generator.ErrPoolClosed)
		return
	}

	// Callbacks run on a worker and may start before TrySubmit returns. Start
	// waits until the task is tracked, so Finish always untracks after track.
	var (
		id    string
		ready = make(chan struct{})
		start time.Time
	)
	listener := generator.ListenerFuncs{
		Start: func() {
			<-ready
			ws.send(WebSocketMessage{Type: "start", RequestID: id})
		},
		Success: func(out barcode.Outcome) {
			barcodeRequestsTotal.WithLabelValues(req.Mode.String(), "success").Inc()
			result, err := toWebSocketResult(out)
			if err != nil {
				ws.sendError(id, err)
				return
			}
			ws.send(WebSocketMessage{Type: "success", RequestID: id, Result: result})
		},
		Failure: func(err error) {
			barcodeRequestsTotal.WithLabelValues(req.Mode.String(), errorType(err)).Inc()
			ws.send(WebSocketMessage{Type: "failure", RequestID: id, Error: err.Error(), ErrorType: errorType(err)})
		},
		Finish: func() {
			barcodeRequestDuration.WithLabelValues(req.Mode.String()).Observe(time.Since(start).Seconds())
			ws.untrack(id)
			ws.send(WebSocketMessage{Type: "finish", RequestID: id})
		},
	}

	start = time.Now()
	// Tasks are stopped through cancel and cancelAll, not through a context.
	task, err := ws.s.gen.TrySubmit(context.Background(), req, listener)
	if err != nil {
		barcodeRequestsTotal.WithLabelValues(req.Mode.String(), errorType(err)).Inc()
		ws.sendError("", err)
		return
	}
	id = task.ID()
	ws.track(task)
	close(ready)
}

func (ws *wsSession) track(t *generator.Task) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.tasks[t.ID()] = t
}

func (ws *wsSession) untrack(id string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.tasks, id)
}

func (ws *wsSession) cancel(id string) {
	ws.mu.Lock()
	t, ok := ws.tasks[id]
	ws.mu.Unlock()
	if !ok {
		ws.send(WebSocketMessage{Type: "error", RequestID: id, Error: "unknown or finished request", ErrorType: "not_found"})
		return
	}
	t.Cancel()
}

// cancelAll stops every task still running for this connection.
func (ws *wsSession) cancelAll() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for id, t := range ws.tasks {
		t.Cancel()
		delete(ws.tasks, id)
	}
}

func (ws *wsSession) sendError(id string, err error) {
	ws.send(WebSocketMessage{Type: "error", RequestID: id, Error: err.Error(), ErrorType: errorType(err)})
}

// send writes msg; gorilla connections allow only one concurrent writer.
func (ws *wsSession) send(msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		ws.s.logger.Error("Failed to marshal WebSocket message", "error", err)
		return
	}

	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	if err := ws.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		ws.s.logger.Debug("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func toWebSocketResult(out barcode.Outcome) (*WebSocketResult, error) {
	res := &WebSocketResult{Mode: out.Kind.String(), Width: out.Width(), Height: out.Height()}
	switch out.Kind {
	case barcode.ModeBase64:
		res.ContentType = "image/jpeg"
		res.Data = out.Text
	case barcode.ModeBytes:
		res.ContentType = "image/jpeg"
		res.Data = base64.StdEncoding.EncodeToString(out.Bytes)
	case barcode.ModeImage:
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, out.Image, imaging.PNG); err != nil {
			return nil, &barcode.FormatterError{Mode: out.Kind, Err: err}
		}
		res.ContentType = "image/png"
		res.Data = base64.StdEncoding.EncodeToString(buf.Bytes())
	default:
		return nil, barcode.ErrNullResult
	}
	return res, nil
}

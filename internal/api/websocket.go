package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// JobUpdate is pushed to every /stream client when a job finishes.
type JobUpdate struct {
	Type        string           `json:"type"`
	JobID       string           `json:"job_id"`
	Status      models.JobStatus `json:"status"`
	ErrorDetail string           `json:"error_detail,omitempty"`
	Summary     *models.Summary  `json:"summary,omitempty"`
}

// Hub maintains the set of active websocket clients and broadcasts messages.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	done      chan struct{}
	closeOnce sync.Once
	mutex     sync.Mutex
	logger    zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		clients:   make(map[*websocket.Conn]bool),
		logger:    log.With().Str("component", "stream").Logger(),
	}
}

// Run fans queued messages out to clients until Close is called.
func (h *Hub) Run() {
	for {
		var message []byte
		select {
		case <-h.done:
			h.closeClients()
			return
		case message = <-h.broadcast:
		}

		h.mutex.Lock()
		for client := range h.clients {
			// bounded write per client
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Warn().Err(err).Msg("websocket write failed")
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Close stops Run and disconnects every client. Later broadcasts are
// discarded.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) closeClients() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

// Subscribe handles incoming websocket connections
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mutex.Unlock()
	h.logger.Info().Int("clients", total).Msg("websocket client connected")

	// clients only receive, but reading is how disconnects are noticed
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			total := len(h.clients)
			h.mutex.Unlock()
			conn.Close()
			h.logger.Info().Int("clients", total).Msg("websocket client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Warn().Err(err).Msg("websocket read failed")
				}
				return
			}
		}
	}()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Broadcast queues data for every client. When the queue is full the
// message is dropped rather than blocking the caller.
func (h *Hub) Broadcast(data []byte) {
	select {
	case <-h.done:
	case h.broadcast <- data:
	default:
		h.logger.Warn().Msg("stream queue full, dropping message")
	}
}

// BroadcastJob announces a finished job. It is meant to be registered with
// jobs.Manager.OnFinish.
func (h *Hub) BroadcastJob(job models.Job) {
	update := JobUpdate{
		Type:        "job_update",
		JobID:       job.JobID,
		Status:      job.Status,
		ErrorDetail: job.ErrorDetail,
	}
	if job.Result != nil {
		summary := job.Result.Summary
		update.Summary = &summary
	}

	payload, err := json.Marshal(update)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", job.JobID).Msg("encode job update")
		return
	}
	h.Broadcast(payload)
}

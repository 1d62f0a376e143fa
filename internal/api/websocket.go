package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fargoat/internal/feed"
)

// Websocket timing
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is open for the dashboard, so is the stream
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleFeedStream handles GET /api/v1/feed/{channel}/ws
// Every value published on the channel is written as a FeedMessage.
// chart-data viewers first receive the buffered chart history.
func (h *Handler) HandleFeedStream(w http.ResponseWriter, r *http.Request) {
	channel, ok := channelVar(w, r, false)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.String("channel", channel), zap.String("remote_addr", r.RemoteAddr))
	h.metrics.AddWebsocketClients(1)
	defer h.metrics.AddWebsocketClients(-1)

	done := make(chan struct{})
	send := make(chan any, sendBufferSize)

	sub := h.hub.Subscribe(channel, func(value any) {
		select {
		case send <- value:
		case <-done:
		default:
			logger.Warn("Websocket client too slow, dropping value")
		}
	})
	defer sub.Unsubscribe()

	// Reader detects the close and keeps the read deadline fresh
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger.Info("Websocket client connected")
	defer logger.Info("Websocket client disconnected")

	if channel == feed.ChannelChartData && h.series != nil {
		history := ChartHistoryMessage{Channel: channel, History: h.series.Points()}
		if err := writeJSON(conn, history); err != nil {
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case value := <-send:
			if err := writeJSON(conn, FeedMessage{Channel: channel, Data: value}); err != nil {
				logger.Debug("Websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

package http

import (
	"errors"
	"log"
	"net/http"

	"contest-grading-service/internal/app"
	"contest-grading-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.GradingService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GradingService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeLeaderboard upgrades to a websocket and streams a contest's leaderboard
// on every change. The stream is read-only; client frames are discarded.
func (h *WSHandler) ServeLeaderboard(w http.ResponseWriter, r *http.Request) {
	contestID := r.URL.Query().Get("contestId")
	if contestID == "" {
		http.Error(w, "missing contestId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(r.Context(), contestID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: publicMessage(err)}})
		return
	}
	defer cancel()

	// the read loop only notices the peer going away
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case lb, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[[]domain.LeaderboardEntry]{Type: "leaderboard", Payload: lb.Entries}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-readerDone:
			return
		}
	}
}

func publicMessage(err error) string {
	if errors.Is(err, domain.ErrNotFound) {
		return err.Error()
	}
	log.Printf("ws subscribe failed: %v", err)
	return "leaderboard unavailable"
}

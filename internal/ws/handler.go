package ws

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/TheKaito2/Hybrid-complete/internal/domain"
)

// Detector turns a raw image into detections. The model pipeline is an
// external collaborator; the server only brokers frames and results.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]domain.Detection, error)
}

// NoopDetector is wired when no model backend is configured. Every frame
// yields zero detections.
type NoopDetector struct{}

func (NoopDetector) Detect(context.Context, []byte) ([]domain.Detection, error) {
	return nil, nil
}

// Handler serves the /ws/detection endpoint: it registers the connection
// with the hub and answers frame messages with detection results. All other
// recognized types are server->client only and are ignored if echoed back;
// unknown types are dropped.
type Handler struct {
	hub      *Hub
	detector Detector
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, detector Detector) *Handler {
	return &Handler{
		hub:      hub,
		detector: detector,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 20,
			WriteBufferSize: 1 << 16,
			// Kiosk clients are served from arbitrary origins on the LAN.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := h.hub.Register(conn)
	defer func() {
		h.hub.Unregister(client)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}

		env, err := Decode(data)
		if err != nil {
			// A bad message never takes down the channel.
			log.Printf("dropping websocket message: %v", err)
			continue
		}

		if env.Type == TypeFrame {
			h.handleFrame(r.Context(), client, env.Frame)
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, frame string) {
	image, err := decodeFrame(frame)
	if err != nil {
		log.Printf("dropping frame: %v", err)
		return
	}

	detections, err := h.detector.Detect(ctx, image)
	if err != nil {
		log.Printf("detection failed: %v", err)
		return
	}

	if err := h.hub.Send(client, Envelope{Type: TypeDetections, Detections: detections}); err != nil {
		log.Printf("failed to send detections: %v", err)
	}
}

// decodeFrame accepts either a bare base64 string or a data URL
// ("data:image/jpeg;base64,...") as produced by canvas.toDataURL.
func decodeFrame(frame string) ([]byte, error) {
	if frame == "" {
		return nil, errors.New("empty frame payload")
	}
	if idx := strings.IndexByte(frame, ','); idx >= 0 {
		frame = frame[idx+1:]
	}
	return base64.StdEncoding.DecodeString(frame)
}

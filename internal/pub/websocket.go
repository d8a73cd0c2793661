package pub

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/kaimana/picamd/internal/msg"
)

// Per-client backlog before old frames are dropped.
const clientQueueDepth = 8

// WSPublisher serves published records to WebSocket clients as JSON
// envelopes. It is an http.Handler; each accepted connection gets its own
// subscription and writer goroutine.
type WSPublisher struct {
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
}

func NewWSPublisher() *WSPublisher {
	return &WSPublisher{
		broadcaster: NewBroadcaster(),
		upgrader: websocket.Upgrader{
			// Frame consumers are trusted local tooling.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (p *WSPublisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed: %v", err)
		return
	}
	log.Info("stream client connected: %s", conn.RemoteAddr())
	go p.writeLoop(conn)
}

func (p *WSPublisher) writeLoop(conn *websocket.Conn) {
	sub := p.broadcaster.Subscribe(clientQueueDepth)
	defer func() {
		p.broadcaster.Unsubscribe(sub)
		conn.Close()
	}()

	// Discard inbound messages so control frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for e := range sub {
		if err := conn.WriteJSON(e); err != nil {
			log.Info("stream client gone: %s (%v)", conn.RemoteAddr(), err)
			return
		}
	}
}

func (p *WSPublisher) PublishImage(img msg.RawImage) error {
	return p.broadcaster.PublishImage(img)
}

func (p *WSPublisher) PublishCompressed(img msg.CompressedImage) error {
	return p.broadcaster.PublishCompressed(img)
}

func (p *WSPublisher) PublishCameraInfo(info msg.CameraInfo) error {
	return p.broadcaster.PublishCameraInfo(info)
}

func (p *WSPublisher) Close() error {
	return p.broadcaster.Close()
}

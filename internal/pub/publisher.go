// Package pub carries completed frames out of the pipeline. Publisher is
// the interface the callback sinks write to; Broadcaster fans records out
// to in-process subscribers; WSPublisher serves them to WebSocket clients.
package pub

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/kaimana/picamd/internal/logging"
	"github.com/kaimana/picamd/internal/msg"
)

var log = logging.DefaultLogger.WithTag("pub")

var errNotFound = errors.New("pub: subscriber not found")

// Record types carried by an Envelope.
const (
	TypeRawImage        = "image_raw"
	TypeCompressedImage = "image_compressed"
	TypeCameraInfo      = "camera_info"
)

// Envelope wraps one published record. Exactly one payload field is set,
// according to Type.
type Envelope struct {
	Type       string               `json:"type"`
	Image      *msg.RawImage        `json:"image,omitempty"`
	Compressed *msg.CompressedImage `json:"compressed,omitempty"`
	CameraInfo *msg.CameraInfo      `json:"camera_info,omitempty"`
}

// Publisher consumes completed frames. Implementations must not block:
// they are called synchronously from driver delivery callbacks.
type Publisher interface {
	PublishImage(msg.RawImage) error
	PublishCompressed(msg.CompressedImage) error
	PublishCameraInfo(msg.CameraInfo) error
	Close() error
}

// Broadcaster fans envelopes out to subscribers. Each subscriber has its
// own buffered channel; when a subscriber is backlogged, the oldest
// envelope is dropped in favor of the newest.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers []chan Envelope
	closed      bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe to published records, buffering up to n envelopes.
func (b *Broadcaster) Subscribe(n int) <-chan Envelope {
	if n < 1 {
		panic("pub: subscriber capacity must be nonzero")
	}
	ch := make(chan Envelope, n)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe using the channel returned by Subscribe.
func (b *Broadcaster) Unsubscribe(s <-chan Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, subscriber := range b.subscribers {
		if s == subscriber {
			subs := b.subscribers
			close(subs[i])
			subs[len(subs)-1], subs[i] = subs[i], subs[len(subs)-1]
			b.subscribers = subs[:len(subs)-1]
			return nil
		}
	}
	return errNotFound
}

func (b *Broadcaster) publish(e Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("pub: broadcaster closed")
	}
	for _, subscriber := range b.subscribers {
		select {
		case subscriber <- e:
		default:
			// Subscriber backlogged. Drop oldest envelope, add newest.
			select {
			case <-subscriber:
			default:
			}
			subscriber <- e
			log.Debug("subscriber missed a %s record", e.Type)
		}
	}
	return nil
}

func (b *Broadcaster) PublishImage(img msg.RawImage) error {
	return b.publish(Envelope{Type: TypeRawImage, Image: &img})
}

func (b *Broadcaster) PublishCompressed(img msg.CompressedImage) error {
	return b.publish(Envelope{Type: TypeCompressedImage, Compressed: &img})
}

func (b *Broadcaster) PublishCameraInfo(info msg.CameraInfo) error {
	return b.publish(Envelope{Type: TypeCameraInfo, CameraInfo: &info})
}

// Close disconnects all subscribers. Subsequent publishes fail.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subscriber := range b.subscribers {
		close(subscriber)
	}
	b.subscribers = nil
	return nil
}

package transport

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/ganot/rpstage/internal/hub"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	maxFrameBytes      = 64 << 10
	maxFramesPerSecond = 30
	maxBadFrames       = 5
	peerBufferSize     = 64
	writeTimeout       = 10 * time.Second
)

// wsPeer queues outbound frames for one websocket connection. A peer whose
// queue fills up is closed.
type wsPeer struct {
	id   string
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan []byte, peerBufferSize),
		done: make(chan struct{}),
	}
}

func (p *wsPeer) ID() string { return p.id }

func (p *wsPeer) Send(frame []byte) error {
	select {
	case <-p.done:
		return errPeerClosed
	default:
	}
	select {
	case p.out <- frame:
		return nil
	default:
		p.close()
		return errSlowPeer
	}
}

func (p *wsPeer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

func (p *wsPeer) writeLoop() {
	for {
		select {
		case <-p.done:
			return
		case frame := <-p.out:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := websocket.Message.Send(p.conn, string(frame)); err != nil {
				p.close()
				return
			}
		}
	}
}

func (s *Server) handleWS(conn *websocket.Conn) {
	conn.MaxPayloadBytes = maxFrameBytes
	peer := newWSPeer(conn)
	defer peer.close()
	go peer.writeLoop()

	log := s.logger.With("conn_id", peer.ID())
	if err := s.game.Attach(peer); err != nil {
		log.Warn("rejecting connection", "error", err)
		return
	}
	defer func() {
		if err := s.game.Detach(peer.ID()); err != nil && !errors.Is(err, hub.ErrStopped) {
			log.Warn("detach failed", "error", err)
		}
	}()
	log.Debug("websocket connected")

	windowStart := time.Now()
	framesInWindow := 0
	badFrames := 0

	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				_ = peer.Send(errorFrame("frame too large"))
				continue
			}
			if !errors.Is(err, io.EOF) {
				log.Debug("websocket read ended", "error", err)
			}
			return
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = peer.Send(errorFrame("rate limit exceeded"))
			log.Warn("closing connection, rate limit exceeded")
			return
		}

		frame, err := ParseFrame(data)
		if err != nil {
			badFrames++
			_ = peer.Send(errorFrame("invalid frame"))
			if badFrames >= maxBadFrames {
				return
			}
			continue
		}
		badFrames = 0

		if frame.Type == hub.CmdDisconnect {
			return
		}
		cmd, err := hub.DecodeCommand(frame.Type, frame.Payload)
		switch {
		case errors.Is(err, hub.ErrUnknownCommand):
			_ = peer.Send(errorFrame("unsupported frame type"))
			continue
		case err != nil:
			log.Debug("frame dropped", "type", frame.Type, "error", err)
			continue
		}
		if err := s.game.Dispatch(peer.ID(), cmd); err != nil {
			return
		}
	}
}

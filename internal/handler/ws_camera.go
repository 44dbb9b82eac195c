package handler

import (
	"context"
	"sync"
	"time"

	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

// wsCamera is the student's webcam as seen through the socket: the client
// streams frames as binary messages between a start and a stop command.
type wsCamera struct {
	w     *ws.Writer
	stale time.Duration

	mu        sync.Mutex
	streaming bool
	frame     []byte
	at        time.Time
}

func newWSCamera(w *ws.Writer, stale time.Duration) *wsCamera {
	return &wsCamera{w: w, stale: stale}
}

func (c *wsCamera) Start(context.Context) error {
	c.mu.Lock()
	c.streaming = true
	c.frame = nil
	c.at = time.Now()
	c.mu.Unlock()
	return c.w.WriteTyped(ws.CameraResponse{Event: ws.EventCamera, Command: ws.CameraStart})
}

func (c *wsCamera) Frame() ([]byte, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streaming {
		return nil, time.Time{}, false
	}
	if c.frame == nil {
		// A feed that never starts reports its start time and turns stale.
		if time.Since(c.at) > c.stale {
			return nil, c.at, true
		}
		return nil, time.Time{}, false
	}
	return c.frame, c.at, true
}

func (c *wsCamera) Stop() {
	c.mu.Lock()
	if !c.streaming {
		c.mu.Unlock()
		return
	}
	c.streaming = false
	c.frame = nil
	c.mu.Unlock()
	_ = c.w.WriteTyped(ws.CameraResponse{Event: ws.EventCamera, Command: ws.CameraStop})
}

// push stores a frame received from the client. Frames outside a
// start/stop window are dropped.
func (c *wsCamera) push(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streaming {
		return
	}
	c.frame = frame
	c.at = time.Now()
}

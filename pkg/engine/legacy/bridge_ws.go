package legacy

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/voxkit/voxkit/pkg/audio"
)

// WSBridge connects to the platform's streaming recognition service over a
// local websocket endpoint. Audio goes out as binary little-endian 16-bit
// PCM messages; results come back as JSON text messages.
type WSBridge struct {
	// URL is the recognizer endpoint, e.g. ws://127.0.0.1:7333/listen.
	URL string
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// resultMessage is the recognizer's wire format for one increment.
type resultMessage struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error,omitempty"`
}

// controlMessage signals end-of-stream to the recognizer.
type controlMessage struct {
	Type string `json:"type"`
}

// Connect dials the recognizer for the given locale. A locale the service
// cannot serve is rejected at dial time, which doubles as the availability
// check for this variant.
func (b *WSBridge) Connect(ctx context.Context, locale string) (Conn, error) {
	if b.URL == "" {
		return nil, errors.New("streaming recognizer endpoint is not configured")
	}
	endpoint, err := url.Parse(b.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid recognizer endpoint: %w", err)
	}
	query := endpoint.Query()
	query.Set("locale", locale)
	endpoint.RawQuery = query.Encode()

	dialer := b.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to streaming recognizer: %w", err)
	}

	wc := &wsConn{
		conn:    conn,
		results: make(chan Result, 64),
	}
	go wc.readLoop()
	return wc, nil
}

type wsConn struct {
	conn    *websocket.Conn
	results chan Result

	writeMu       sync.Mutex
	closeSendOnce sync.Once
	closeOnce     sync.Once
}

// Send encodes one frame as little-endian 16-bit PCM and writes it as a
// binary message.
func (c *wsConn) Send(frame audio.Frame) error {
	payload := make([]byte, len(frame.Samples)*2)
	for i, s := range frame.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(int16(s*32767)))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return fmt.Errorf("failed to send audio to recognizer: %w", err)
	}
	return nil
}

// CloseSend tells the recognizer no more audio will arrive. Results keep
// flowing until the service flushes its final hypothesis.
func (c *wsConn) CloseSend() error {
	var err error
	c.closeSendOnce.Do(func() {
		payload, marshalErr := json.Marshal(controlMessage{Type: "CloseStream"})
		if marshalErr != nil {
			err = marshalErr
			return
		}
		c.writeMu.Lock()
		err = c.conn.WriteMessage(websocket.TextMessage, payload)
		c.writeMu.Unlock()
	})
	return err
}

func (c *wsConn) Results() <-chan Result { return c.results }

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) readLoop() {
	defer close(c.results)
	for {
		kind, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				errors.Is(err, net.ErrClosed) {
				return
			}
			c.results <- Result{Err: fmt.Errorf("recognizer connection failed: %w", err)}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		var msg resultMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.results <- Result{Err: fmt.Errorf("malformed recognizer message: %w", err)}
			continue
		}
		if msg.Error != "" {
			c.results <- Result{Err: errors.New(msg.Error)}
			continue
		}
		c.results <- Result{Text: msg.Text, Final: msg.IsFinal}
	}
}

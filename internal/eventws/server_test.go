package eventws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/voxkit/voxkit/pkg/speech"
)

func TestBroadcastReachesSubscriber(t *testing.T) {
	is := is.New(t)
	srv := NewServer(zerolog.Nop())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	is.NoErr(err)
	defer conn.Close()

	// Registration is finished by the time Upgrade returns on the server,
	// but give the handler goroutine a moment regardless.
	deadline := time.Now().Add(2 * time.Second)
	for {
		srv.mu.Lock()
		n := len(srv.clients)
		srv.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.BroadcastProgress(speech.Progress{Text: "hello", IsFinal: true})
	srv.BroadcastError(speech.ErrorEvent{Message: "boom"})

	var first message
	is.NoErr(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	is.NoErr(conn.ReadJSON(&first))
	is.Equal(first.Type, "progress")
	is.Equal(first.Text, "hello")
	is.True(first.IsFinal)

	var second message
	is.NoErr(conn.ReadJSON(&second))
	is.Equal(second.Type, "error")
	is.Equal(second.Message, "boom")
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	is := is.New(t)
	srv := NewServer(zerolog.Nop())

	// Register a queue directly and never read it.
	queue := make(chan message, clientQueue)
	srv.mu.Lock()
	srv.clients[queue] = struct{}{}
	srv.mu.Unlock()

	for i := 0; i < clientQueue+1; i++ {
		srv.BroadcastProgress(speech.Progress{Text: "x"})
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	is.Equal(len(srv.clients), 0)
}

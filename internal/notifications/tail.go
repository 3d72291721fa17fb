package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// TailOptions select which events a remote stream delivers.
type TailOptions struct {
	Token     string
	Types     []string
	Following bool
}

// StreamURL builds the event stream URL for base, which may use an http(s)
// or ws(s) scheme.
func StreamURL(base string, opts TailOptions) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws/events"
	}

	q := u.Query()
	if len(opts.Types) > 0 {
		q.Set("types", strings.Join(opts.Types, ","))
	}
	if opts.Following {
		q.Set("following", "true")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Tail connects to a remote event stream and calls onEvent for each
// envelope until ctx is done or the server closes the stream.
func Tail(ctx context.Context, base string, opts TailOptions, onEvent func(Envelope)) error {
	target, err := StreamURL(base, opts)
	if err != nil {
		return err
	}

	headers := http.Header{}
	if opts.Token != "" {
		headers.Set("Authorization", "Bearer "+opts.Token)
	}

	dialer := websocket.DefaultDialer
	conn, resp, err := dialer.DialContext(ctx, target, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %s: %w", target, resp.Status, err)
		}
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer func() { _ = conn.Close() }()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if env.Type == "" {
			var failure struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(data, &failure) == nil && failure.Error != "" {
				return errors.New(failure.Error)
			}
		}
		onEvent(env)
	}
}

// Package client is the terminal board viewer: a websocket protocol
// consumer rendering one grid live and forwarding edits.
package client

import (
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/alexanderramin/gridboard/internal/protocol"
)

// Client wraps one websocket connection to the server. Incoming
// envelopes are surfaced on a channel so the bubbletea loop can consume
// them as messages.
type Client struct {
	socket   *websocket.Conn
	incoming chan protocol.Envelope
	errs     chan error
}

// Dial connects and authenticates with the token in the query string.
func Dial(serverURL, token string) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	socket, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", u.Host, err)
	}

	c := &Client{
		socket:   socket,
		incoming: make(chan protocol.Envelope, 32),
		errs:     make(chan error, 1),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.incoming)
	for {
		var env protocol.Envelope
		if err := c.socket.ReadJSON(&env); err != nil {
			c.errs <- err
			return
		}
		c.incoming <- env
	}
}

// Send writes one envelope.
func (c *Client) Send(t protocol.MessageType, payload any) error {
	env, err := protocol.NewEnvelope(t, "", payload)
	if err != nil {
		return err
	}
	return c.socket.WriteJSON(env)
}

// Incoming is the stream of server envelopes; closed on disconnect.
func (c *Client) Incoming() <-chan protocol.Envelope {
	return c.incoming
}

// Close tears the connection down.
func (c *Client) Close() error {
	return c.socket.Close()
}

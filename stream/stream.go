// Package stream serves a live browser preview of a running pipeline over
// websockets, together with a small HTTP API to control it.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/tmpim/mosaic"
)

// Subscription is a set of packet kinds a client wants to receive.
type Subscription uint32

// Possible subscription flags.
const (
	SubscriptionVideo = Subscription(1 << iota)
	SubscriptionMetadata
	SubscriptionAll = Subscription(0)
)

// Possible packet types. Every websocket message starts with one of these.
const (
	PacketVideo = iota + 1
	PacketMetadata
	PacketPause
	PacketStop
)

// maxPaletteColors bounds the palette sent with the metadata.
const maxPaletteColors = 4096

// WebsocketControl is the message a client sends to change its
// subscriptions.
type WebsocketControl struct {
	ID           string `json:"id"`
	Subscription uint32 `json:"subscription"`
}

// IsSubscribedTo returns whether or not the client subscription is subscribed
// to the given subscription.
func (s Subscription) IsSubscribedTo(sub Subscription) bool {
	return (s & sub) == sub
}

// Client is a websocket connected client.
type Client struct {
	mutex         sync.Mutex
	id            string
	conn          *websocket.Conn
	subscriptions Subscription
}

func (c *Client) write(data []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// State is the preview state reported to clients and by the HTTP API.
type State struct {
	mosaic.Snapshot
	Title    string               `json:"title,omitempty"`
	Frames   int                  `json:"frames"`
	Width    int                  `json:"width"`
	Height   int                  `json:"height"`
	Encoding *mosaic.EncodingInfo `json:"encoding,omitempty"`
	Palette  []string             `json:"palette,omitempty"`
}

// Hub tracks connected clients and broadcasts the frames presented to it.
// It implements mosaic.Display.
type Hub struct {
	ctl    *mosaic.Control
	title  string
	logger *log.Logger

	clientsMutex sync.Mutex
	clients      []*Client

	stateMutex sync.Mutex
	state      State

	buf bytes.Buffer
	enc png.Encoder
}

// NewHub returns a hub reporting the state of ctl. A nil logger discards
// log output.
func NewHub(ctl *mosaic.Control, title string, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{
		ctl:    ctl,
		title:  title,
		logger: logger,
		enc:    png.Encoder{CompressionLevel: png.BestSpeed},
	}
}

// Control returns the control the hub reports on.
func (h *Hub) Control() *mosaic.Control {
	return h.ctl
}

// State returns the current preview state.
func (h *Hub) State() State {
	h.stateMutex.Lock()
	defer h.stateMutex.Unlock()

	s := h.state
	s.Snapshot = h.ctl.Snapshot()
	s.Title = h.title
	return s
}

func (h *Hub) clientsSubscribedTo(sub Subscription) []*Client {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	var out []*Client
	for _, c := range h.clients {
		c.mutex.Lock()
		ok := c.subscriptions.IsSubscribedTo(sub)
		c.mutex.Unlock()
		if ok {
			out = append(out, c)
		}
	}
	return out
}

// Broadcast sends data to every client subscribed to sub.
func (h *Hub) Broadcast(sub Subscription, data ...[]byte) {
	for _, client := range h.clientsSubscribedTo(sub) {
		for _, d := range data {
			if err := client.write(d); err != nil {
				h.logger.Println("mosaic stream: write to client failed:", err)
				break
			}
		}
	}
}

// BroadcastState sends the current state to every metadata subscriber.
func (h *Hub) BroadcastState() {
	state := h.State()
	d, err := json.Marshal(&state)
	if err != nil {
		h.logger.Println("mosaic stream: error encoding state JSON:", err)
		return
	}
	h.Broadcast(SubscriptionMetadata, append([]byte{PacketMetadata}, d...))

	switch state.State {
	case mosaic.StatePaused:
		h.Broadcast(SubscriptionAll, []byte{PacketPause})
	case mosaic.StateStopped:
		h.Broadcast(SubscriptionAll, []byte{PacketStop})
	}
}

func paletteHex(enc mosaic.Encoding) []string {
	pe, ok := enc.(interface{ Palette() *mosaic.Palette })
	if !ok || pe.Palette().Len() > maxPaletteColors {
		return nil
	}

	p := pe.Palette()
	out := make([]string, p.Len())
	for key := range out {
		c, _ := colorful.MakeColor(p.Color(key))
		out[key] = c.Hex()
	}
	return out
}

// Present broadcasts r as a PNG to video subscribers. The frame count and
// encoding are recorded in the state either way.
func (h *Hub) Present(r *mosaic.Rendered) error {
	size := r.Image.Bounds().Size()

	h.stateMutex.Lock()
	first := h.state.Encoding == nil
	h.state.Frames = r.Index + 1
	h.state.Width, h.state.Height = size.X, size.Y
	if first {
		info := r.Encoding.Describe()
		h.state.Encoding = &info
		h.state.Palette = paletteHex(r.Encoding)
	}
	h.stateMutex.Unlock()

	if first {
		h.BroadcastState()
	}

	if len(h.clientsSubscribedTo(SubscriptionVideo)) == 0 {
		return nil
	}

	h.buf.Reset()
	h.buf.WriteByte(PacketVideo)
	if err := h.enc.Encode(&h.buf, r.Image); err != nil {
		return err
	}
	h.Broadcast(SubscriptionVideo, h.buf.Bytes())

	return nil
}

// Watch broadcasts the state whenever the control changes, until ctx is
// done.
func (h *Hub) Watch(ctx context.Context) {
	for {
		select {
		case <-h.ctl.Changed():
			h.BroadcastState()
		case <-ctx.Done():
			return
		}
	}
}

// HandleConn serves a connected client until it disconnects.
func (h *Hub) HandleConn(conn *websocket.Conn) {
	client := &Client{conn: conn}

	h.clientsMutex.Lock()
	h.clients = append(h.clients, client)
	h.clientsMutex.Unlock()

	defer func() {
		h.clientsMutex.Lock()
		defer h.clientsMutex.Unlock()

		for i, c := range h.clients {
			if c == client {
				h.clients = append(h.clients[:i], h.clients[i+1:]...)
				return
			}
		}
	}()

	for {
		msgType, data, err := client.conn.ReadMessage()
		if err != nil {
			h.logger.Println("mosaic stream: client disconnected:", err)
			return
		}

		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}

		var controlMsg WebsocketControl
		if err := json.Unmarshal(data, &controlMsg); err != nil {
			h.logger.Println("mosaic stream: failed to unmarshal control message:", err)
			continue
		}

		client.mutex.Lock()
		client.id = controlMsg.ID
		client.subscriptions = Subscription(controlMsg.Subscription)
		client.mutex.Unlock()

		if Subscription(controlMsg.Subscription).IsSubscribedTo(SubscriptionMetadata) {
			state := h.State()
			d, err := json.Marshal(&state)
			if err != nil {
				h.logger.Println("mosaic stream: HandleConn: error encoding state JSON:", err)
				continue
			}
			client.write(append([]byte{PacketMetadata}, d...))
		}
	}
}

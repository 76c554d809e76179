package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// ErrClosed is returned by calls made on, or pending when, the connection closes.
var ErrClosed = errors.New("sync connection closed")

// Document is a cached document: its published fields plus "_id".
type Document map[string]any

// Event describes one change applied to the cache.
type Event struct {
	Type       string
	Collection string
	ID         string
	Fields     map[string]any
	Cleared    []string
}

// Client is a connection to the sync endpoint that mirrors the documents published to it.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu          sync.Mutex
	session     string
	collections map[string]map[string]Document
	waiting     map[string]chan *Message
	observers   []func(Event)
	err         error

	done chan struct{}
}

// Dial connects to url (ws:// or wss://) and completes the connect handshake. header
// may carry the access token cookie or Authorization header.
func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:        conn,
		collections: map[string]map[string]Document{},
		waiting:     map[string]chan *Message{},
		done:        make(chan struct{}),
	}
	connected := c.await("")
	go c.readLoop()
	if err := c.write(&Message{Msg: MsgConnect}); err != nil {
		_ = c.Close()
		return nil, err
	}
	m, err := c.wait(ctx, "", connected)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.mu.Lock()
	c.session = m.Session
	c.mu.Unlock()
	return c, nil
}

// Session is the id the server assigned to this connection.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) id() string {
	return strconv.FormatUint(c.nextID.Add(1), 10)
}

func (c *Client) write(m *Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(m)
}

// await registers interest in the reply to id before the request is sent.
func (c *Client) await(id string) chan *Message {
	ch := make(chan *Message, 1)
	c.mu.Lock()
	c.waiting[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *Client) wait(ctx context.Context, id string, ch chan *Message) (*Message, error) {
	select {
	case m := <-ch:
		return m, nil
	case <-c.done:
		return nil, c.closeErr()
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.waiting, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

// Call runs a method and returns its raw result. Data changes made by the method are in
// the cache when Call returns.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	raw, err := EncodeParams(params...)
	if err != nil {
		return nil, err
	}
	id := c.id()
	ch := c.await(id)
	if err := c.write(&Message{Msg: MsgMethod, ID: id, Method: method, Params: raw}); err != nil {
		return nil, err
	}
	m, err := c.wait(ctx, id, ch)
	if err != nil {
		return nil, err
	}
	if m.Error != nil {
		return nil, m.Error
	}
	return m.Result, nil
}

// Subscribe starts a publication and blocks until its initial documents are cached.
// It returns the subscription id.
func (c *Client) Subscribe(ctx context.Context, name string, params ...any) (string, error) {
	raw, err := EncodeParams(params...)
	if err != nil {
		return "", err
	}
	id := c.id()
	ch := c.await(id)
	if err := c.write(&Message{Msg: MsgSub, ID: id, Name: name, Params: raw}); err != nil {
		return "", err
	}
	m, err := c.wait(ctx, id, ch)
	if err != nil {
		return "", err
	}
	if m.Msg == MsgNosub {
		if m.Error != nil {
			return "", m.Error
		}
		return "", ErrClosed
	}
	return id, nil
}

// Unsubscribe stops a subscription and waits for the server to withdraw its documents.
func (c *Client) Unsubscribe(ctx context.Context, id string) error {
	ch := c.await(id)
	if err := c.write(&Message{Msg: MsgUnsub, ID: id}); err != nil {
		return err
	}
	_, err := c.wait(ctx, id, ch)
	return err
}

// Login switches the connection's identity. Active subscriptions are re-evaluated by
// the server; an empty token logs out.
func (c *Client) Login(ctx context.Context, token string) (string, error) {
	id := c.id()
	ch := c.await(id)
	if err := c.write(&Message{Msg: MsgLogin, ID: id, Token: token}); err != nil {
		return "", err
	}
	m, err := c.wait(ctx, id, ch)
	if err != nil {
		return "", err
	}
	if m.Error != nil {
		return "", m.Error
	}
	var res struct {
		UserID string `json:"userId"`
	}
	if len(m.Result) > 0 {
		if err := json.Unmarshal(m.Result, &res); err != nil {
			return "", err
		}
	}
	return res.UserID, nil
}

// Ping round-trips a ping frame.
func (c *Client) Ping(ctx context.Context) error {
	id := c.id()
	ch := c.await(id)
	if err := c.write(&Message{Msg: MsgPing, ID: id}); err != nil {
		return err
	}
	_, err := c.wait(ctx, id, ch)
	return err
}

// Find returns the cached documents of collection ordered by id.
func (c *Client) Find(collection string) []Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs := c.collections[collection]
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, copyDoc(d))
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := out[i]["_id"].(string)
		b, _ := out[j]["_id"].(string)
		return a < b
	})
	return out
}

// Get returns one cached document.
func (c *Client) Get(collection, id string) (Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.collections[collection][id]
	if !ok {
		return nil, false
	}
	return copyDoc(d), true
}

// OnChange registers fn to run, on the read goroutine, after each change is cached.
func (c *Client) OnChange(fn func(Event)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func copyDoc(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var m Message
		if err := c.conn.ReadJSON(&m); err != nil {
			c.mu.Lock()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.err = err
			}
			c.mu.Unlock()
			return
		}
		c.handle(&m)
	}
}

func (c *Client) handle(m *Message) {
	switch m.Msg {
	case MsgAdded, MsgChanged, MsgRemoved:
		c.apply(m)
	case MsgConnected:
		c.reply("", m)
	case MsgResult, MsgPong:
		c.reply(m.ID, m)
	case MsgReady:
		for _, id := range m.Subs {
			c.reply(id, m)
		}
	case MsgNosub:
		c.reply(m.ID, m)
	}
}

func (c *Client) reply(id string, m *Message) {
	c.mu.Lock()
	ch, ok := c.waiting[id]
	delete(c.waiting, id)
	c.mu.Unlock()
	if ok {
		ch <- m
	}
}

func (c *Client) apply(m *Message) {
	c.mu.Lock()
	coll, ok := c.collections[m.Collection]
	if !ok {
		coll = map[string]Document{}
		c.collections[m.Collection] = coll
	}
	switch m.Msg {
	case MsgAdded:
		d := Document{"_id": m.ID}
		for k, v := range m.Fields {
			d[k] = v
		}
		coll[m.ID] = d
	case MsgChanged:
		d, ok := coll[m.ID]
		if !ok {
			d = Document{"_id": m.ID}
			coll[m.ID] = d
		}
		for k, v := range m.Fields {
			d[k] = v
		}
		for _, k := range m.Cleared {
			delete(d, k)
		}
	case MsgRemoved:
		delete(coll, m.ID)
		if len(coll) == 0 {
			delete(c.collections, m.Collection)
		}
	}
	observers := c.observers
	c.mu.Unlock()

	ev := Event{Type: m.Msg, Collection: m.Collection, ID: m.ID, Fields: m.Fields, Cleared: m.Cleared}
	for _, fn := range observers {
		fn(ev)
	}
}

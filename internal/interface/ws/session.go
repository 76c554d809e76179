package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/internal/application"
	"github.com/oksasatya/go-social-sync/internal/livequery"
	"github.com/oksasatya/go-social-sync/pkg/syncclient"
)

type subscription struct {
	name   string
	params []json.RawMessage
	live   *livequery.Subscription
}

// Session is one client connection. Incoming frames are handled in order on the read
// goroutine; everything sent to the client goes through the buffered send queue, so
// the data changes a method causes are queued ahead of its result.
type Session struct {
	ID     string
	server *Server
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	box    *livequery.MergeBox

	// read goroutine only
	caller string
	subs   map[string]*subscription
	gen    int
}

func (s *Session) log() *logrus.Entry {
	if s.server.Logger == nil {
		return nil
	}
	return s.server.Logger.WithField("session", s.ID)
}

func (s *Session) close() {
	s.once.Do(func() {
		s.cancel()
		_ = s.conn.Close()
	})
}

// enqueue queues m for the writer. A client that cannot keep up is disconnected rather
// than allowed to stall the change feed.
func (s *Session) enqueue(m *syncclient.Message) {
	if s.ctx.Err() != nil {
		return
	}
	b, err := json.Marshal(m)
	if err != nil {
		if l := s.log(); l != nil {
			l.WithError(err).WithField("msg", m.Msg).Error("encode sync message failed")
		}
		return
	}
	select {
	case s.send <- b:
	default:
		if l := s.log(); l != nil {
			l.Warn("sync send buffer full; closing session")
		}
		s.close()
	}
}

func (s *Session) readPump() {
	defer s.teardown()
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				if l := s.log(); l != nil {
					l.WithError(err).Warn("sync read failed")
				}
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		var m syncclient.Message
		if err := json.Unmarshal(data, &m); err != nil {
			s.enqueue(&syncclient.Message{Msg: syncclient.MsgError, Reason: "Malformed message"})
			continue
		}
		s.handle(&m)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()
	for {
		select {
		case b := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// teardown stops every subscription once the connection is gone.
func (s *Session) teardown() {
	s.close()
	for id, sub := range s.subs {
		sub.live.Stop()
		delete(s.subs, id)
	}
	s.server.unregister(s)
	if l := s.log(); l != nil {
		l.WithField("user_id", s.caller).Debug("sync session closed")
	}
}

func (s *Session) handle(m *syncclient.Message) {
	switch m.Msg {
	case syncclient.MsgConnect:
		s.enqueue(&syncclient.Message{Msg: syncclient.MsgConnected, Session: s.ID})
	case syncclient.MsgPing:
		s.enqueue(&syncclient.Message{Msg: syncclient.MsgPong, ID: m.ID})
	case syncclient.MsgSub:
		s.sub(m)
	case syncclient.MsgUnsub:
		s.unsub(m.ID)
	case syncclient.MsgMethod:
		s.method(m)
	case syncclient.MsgLogin:
		s.login(m)
	default:
		s.enqueue(&syncclient.Message{Msg: syncclient.MsgError, Reason: "Unknown message type '" + m.Msg + "'"})
	}
}

func wireError(err error) *syncclient.Error {
	var e *application.Error
	if errors.Is(err, livequery.ErrUnknownPublication) {
		e = application.NotFound("Subscription not found")
	} else {
		e = application.AsError(err)
	}
	return &syncclient.Error{Kind: string(e.Kind), Reason: e.Reason, Details: e.Details}
}

// start runs a publication for the current caller. Each run gets its own merge box
// input so a re-run can overlap the run it replaces.
func (s *Session) start(id, name string, params []json.RawMessage) (*livequery.Subscription, error) {
	s.gen++
	sink := s.box.Sink(id + "#" + strconv.Itoa(s.gen))
	return s.server.Publisher.Subscribe(s.ctx, s.caller, name, params, sink)
}

func (s *Session) sub(m *syncclient.Message) {
	if m.ID == "" {
		s.enqueue(&syncclient.Message{Msg: syncclient.MsgError, Reason: "Subscription id required"})
		return
	}
	if _, dup := s.subs[m.ID]; dup {
		s.enqueue(&syncclient.Message{Msg: syncclient.MsgReady, Subs: []string{m.ID}})
		return
	}
	live, err := s.start(m.ID, m.Name, m.Params)
	if err != nil {
		if e := application.AsError(err); e.Kind == application.KindInternal {
			if l := s.log(); l != nil {
				l.WithError(err).WithField("sub", m.Name).Error("subscription failed")
			}
		}
		s.enqueue(&syncclient.Message{Msg: syncclient.MsgNosub, ID: m.ID, Error: wireError(err)})
		return
	}
	s.subs[m.ID] = &subscription{name: m.Name, params: m.Params, live: live}
	s.enqueue(&syncclient.Message{Msg: syncclient.MsgReady, Subs: []string{m.ID}})
}

func (s *Session) unsub(id string) {
	if sub, ok := s.subs[id]; ok {
		sub.live.Stop()
		delete(s.subs, id)
	}
	s.enqueue(&syncclient.Message{Msg: syncclient.MsgNosub, ID: id})
}

func (s *Session) method(m *syncclient.Message) {
	reply := &syncclient.Message{Msg: syncclient.MsgResult, ID: m.ID}
	res, err := s.server.Gateway.Call(s.ctx, s.caller, m.Method, m.Params)
	if err != nil {
		reply.Error = wireError(err)
	} else if res != nil {
		b, err := json.Marshal(res)
		if err != nil {
			reply.Error = wireError(application.Internal("", err))
		} else {
			reply.Result = b
		}
	}
	s.enqueue(reply)
	s.enqueue(&syncclient.Message{Msg: syncclient.MsgUpdated, Methods: []string{m.ID}})
}

// login switches the caller and re-runs every subscription under the new identity.
// An empty token logs out.
func (s *Session) login(m *syncclient.Message) {
	caller := ""
	if m.Token != "" {
		caller = s.server.identify(s.ctx, m.Token)
		if caller == "" {
			s.enqueue(&syncclient.Message{
				Msg:   syncclient.MsgResult,
				ID:    m.ID,
				Error: wireError(application.NotAuthorized("Invalid or expired token")),
			})
			return
		}
	}
	s.caller = caller
	for id, sub := range s.subs {
		live, err := s.start(id, sub.name, sub.params)
		sub.live.Stop()
		if err != nil {
			delete(s.subs, id)
			s.enqueue(&syncclient.Message{Msg: syncclient.MsgNosub, ID: id, Error: wireError(err)})
			continue
		}
		sub.live = live
	}
	res, _ := json.Marshal(map[string]string{"userId": caller})
	s.enqueue(&syncclient.Message{Msg: syncclient.MsgResult, ID: m.ID, Result: res})
}

// dataSink turns merged document deltas into protocol frames.
type dataSink struct{ s *Session }

func (d dataSink) Added(collection, id string, fields livequery.Fields) {
	d.s.enqueue(&syncclient.Message{Msg: syncclient.MsgAdded, Collection: collection, ID: id, Fields: fields})
}

func (d dataSink) Changed(collection, id string, fields livequery.Fields, cleared []string) {
	d.s.enqueue(&syncclient.Message{Msg: syncclient.MsgChanged, Collection: collection, ID: id, Fields: fields, Cleared: cleared})
}

func (d dataSink) Removed(collection, id string) {
	d.s.enqueue(&syncclient.Message{Msg: syncclient.MsgRemoved, Collection: collection, ID: id})
}

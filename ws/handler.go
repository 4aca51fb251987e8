package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/ktao/dmhub/metrics"
)

type SessionError int

const (
	ReadError  SessionError = 1
	WriteError SessionError = 2
	PingError  SessionError = 3
	BadRequest SessionError = 4
	ServerStop SessionError = 5
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 3 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 20 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 25 * time.Second

	// websocket max message size to read.
	readLimit = 4096
)

// eventFunc handles one inbound client event for a connection.
type eventFunc func(h *Handler, data json.RawMessage)

// eventTable is the dispatch table from event name to handler. Handlers
// run serially inside the connection's recvLoop, which is what preserves
// per-sender send ordering end to end.
var eventTable = map[string]eventFunc{
	EvtSendMessage:    (*Handler).onSendMessage,
	EvtJoinChat:       (*Handler).onJoinChat,
	EvtLeaveChat:      (*Handler).onLeaveChat,
	EvtTyping:         (*Handler).onTyping,
	EvtMarkRead:       (*Handler).onMarkRead,
	EvtGetChatList:    (*Handler).onGetChatList,
	EvtGetMessages:    (*Handler).onGetMessages,
	EvtGetUnreadCount: (*Handler).onGetUnreadCount,
}

// Handler owns one authenticated websocket connection: a recvLoop that
// dispatches client events and a sendLoop that serializes every
// outbound write, including fan-out pushed from other connections.
type Handler struct {
	sync.Mutex

	api      *ChatApi
	registry *Registry

	uid        int32
	sid        string
	ip         string
	createTime int64

	conn     *websocket.Conn
	dataChan chan *ServerMsg

	closing bool
}

func (h *Handler) String() string {
	return fmt.Sprintf(`{"uid":%d,"sid":%q,"ip":%q}`, h.uid, h.sid, h.ip)
}

// close tears down the connection and, except on server stop, drops the
// session from the registry. Idempotent; both loops and CloseAll may
// race to call it.
func (h *Handler) close(cause SessionError) {
	h.Lock()
	defer h.Unlock()
	if h.closing {
		return
	}

	h.closing = true

	h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = h.conn.WriteMessage(websocket.CloseMessage, []byte{})
	h.conn.Close()

	close(h.dataChan)

	if cause != ServerStop {
		glog.V(5).Infof("session closed, cause: %d, %s", cause, h)
		h.registry.Deregister(h)
	}
}

// push queues a server event for this connection without ever blocking
// the caller. Returns false when the connection is closing or its
// outbound buffer is full, which fan-out callers count as a broadcast
// failure.
func (h *Handler) push(event string, data interface{}) bool {
	h.Lock()
	defer h.Unlock()
	if h.closing {
		return false
	}

	select {
	case h.dataChan <- &ServerMsg{Event: event, Data: data}:
		return true
	default:
		return false
	}
}

func (h *Handler) pushError(e *Error) {
	h.push(EvtError, e.scrubbed())
}

func writeServerMsg(conn *websocket.Conn, msg *ServerMsg) error {
	out, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, out)
}

func (h *Handler) recvLoop() {
	defer func() { glog.V(5).Infof("recvLoop(): exited, session: %s", h) }()

	h.conn.SetReadLimit(readLimit)
	h.conn.SetReadDeadline(time.Now().Add(pongWait))
	h.conn.SetPongHandler(func(string) error {
		h.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// close() closes the conn, so a closing session surfaces here as a
	// read error on the next iteration.
	for {
		msgType, raw, err := h.conn.ReadMessage()
		if err != nil {
			glog.V(5).Infof("recvLoop(): read error: %v", err)
			h.close(ReadError)
			return
		}

		glog.V(5).Infof("recvLoop(): incoming client message: %s", raw)

		if msgType != websocket.TextMessage {
			h.pushError(newInvalidArgumentError("websocket only supports TextMessage"))
			h.close(BadRequest)
			return
		}

		req := ClientMsg{}
		if err := json.Unmarshal(raw, &req); err != nil {
			glog.Errorf("recvLoop(): message error: msg: %s, err: %v", raw, err)
			h.pushError(newInvalidArgumentError(fmt.Sprintf("unmarshal error: %v", err)))
			h.close(BadRequest)
			return
		}

		fn, ok := eventTable[req.Event]
		if !ok {
			glog.Errorf("recvLoop(): unsupported event %q, session: %s", req.Event, h)
			h.pushError(newInvalidArgumentError(fmt.Sprintf("unsupported event: %s", req.Event)))
			continue
		}
		fn(h, req.Data)
	}
}

func (h *Handler) sendLoop() {
	pingTicker := time.NewTicker(pingPeriod)
	defer func() {
		pingTicker.Stop()
		glog.V(5).Infof("sendLoop(): exited, session: %s", h)
	}()

	for {
		select {
		case msg, ok := <-h.dataChan:
			if !ok { // chan was closed by close()
				return
			}

			if err := writeServerMsg(h.conn, msg); err != nil {
				glog.Errorf("sendLoop(): error write message, session: %s, err: %v", h, err)
				h.close(WriteError)
				return
			}
		case <-pingTicker.C:
			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				glog.Errorf("sendLoop(): error write ping, session: %s, err: %v", h, err)
				h.close(PingError)
				return
			}
		}
	}
}

func (h *Handler) decode(data json.RawMessage, v interface{}) bool {
	if err := json.Unmarshal(data, v); err != nil {
		h.pushError(newInvalidArgumentError(fmt.Sprintf("bad payload: %v", err)))
		return false
	}
	return true
}

func (h *Handler) onSendMessage(data json.RawMessage) {
	var req SendReq
	if !h.decode(data, &req) {
		return
	}

	ack, apiErr := h.api.Send(context.Background(), h.uid, &req)
	if apiErr != nil {
		metrics.SendErrors.WithLabelValues(apiErr.reason()).Inc()
		h.push(EvtMessageFailed, &SendFailed{
			TempID: req.TempID,
			Error:  apiErr.scrubbed().Message,
		})
		return
	}
	h.push(EvtMessageDelivered, ack)
}

func (h *Handler) onJoinChat(data json.RawMessage) {
	var req PeerReq
	if !h.decode(data, &req) {
		return
	}
	if req.OtherUserID <= 0 {
		h.pushError(newInvalidArgumentError("otherUserId: required"))
		return
	}

	if apiErr := h.api.Join(context.Background(), h, req.OtherUserID); apiErr != nil {
		h.pushError(apiErr)
	}
}

func (h *Handler) onLeaveChat(data json.RawMessage) {
	var req PeerReq
	if !h.decode(data, &req) {
		return
	}
	if req.OtherUserID <= 0 {
		h.pushError(newInvalidArgumentError("otherUserId: required"))
		return
	}
	h.api.Leave(h, req.OtherUserID)
}

func (h *Handler) onTyping(data json.RawMessage) {
	var req TypingReq
	if !h.decode(data, &req) {
		return
	}
	if req.OtherUserID <= 0 {
		return // fire-and-forget affordance, silently dropped
	}
	h.api.Typing(h, req.OtherUserID, req.IsTyping)
}

func (h *Handler) onMarkRead(data json.RawMessage) {
	var req PeerReq
	if !h.decode(data, &req) {
		return
	}
	if req.OtherUserID <= 0 {
		h.pushError(newInvalidArgumentError("otherUserId: required"))
		return
	}

	n, apiErr := h.api.MarkRead(context.Background(), h.uid, req.OtherUserID)
	if apiErr != nil {
		h.pushError(apiErr)
		return
	}
	h.push(EvtMarkedRead, &MarkedRead{OtherUserID: req.OtherUserID, Count: n})
}

func (h *Handler) onGetUnreadCount(data json.RawMessage) {
	var req PeerReq
	if !h.decode(data, &req) {
		return
	}
	if req.OtherUserID <= 0 {
		h.pushError(newInvalidArgumentError("otherUserId: required"))
		return
	}

	n, apiErr := h.api.UnreadCount(context.Background(), h.uid, req.OtherUserID)
	if apiErr != nil {
		h.pushError(apiErr)
		return
	}
	h.push(EvtUnreadCount, &UnreadCount{OtherUserID: req.OtherUserID, Count: n})
}

func (h *Handler) onGetChatList(json.RawMessage) {
	resp, apiErr := h.api.ChatList(context.Background(), h.uid)
	if apiErr != nil {
		h.pushError(apiErr)
		return
	}
	h.push(EvtChatList, resp)
}

func (h *Handler) onGetMessages(data json.RawMessage) {
	var req HistoryReq
	if !h.decode(data, &req) {
		return
	}
	if req.OtherUserID <= 0 {
		h.pushError(newInvalidArgumentError("otherUserId: required"))
		return
	}

	resp, apiErr := h.api.History(context.Background(), h.uid, req.OtherUserID, req.Limit)
	if apiErr != nil {
		h.pushError(apiErr)
		return
	}
	h.push(EvtMessages, resp)
}

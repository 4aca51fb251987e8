package ws

import (
	"context"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/ktao/dmhub/bridge"
	"github.com/ktao/dmhub/convo"
	"github.com/ktao/dmhub/directory"
	"github.com/ktao/dmhub/metrics"
	"github.com/ktao/dmhub/store"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 500

	// Display name when the directory has no record for a counterpart.
	placeholderName = "User"
)

// ChatApi is the delivery engine and query service behind both the
// websocket events and the HTTP endpoints. It owns no connection state;
// presence and fan-out go through the injected registry.
type ChatApi struct {
	store    store.MessageStore
	dir      directory.Directory
	registry *Registry
	bridge   *bridge.Publisher // nil-safe, optional
}

func NewChatApi(st store.MessageStore, dir directory.Directory, registry *Registry, pub *bridge.Publisher) *ChatApi {
	return &ChatApi{
		store:    st,
		dir:      dir,
		registry: registry,
		bridge:   pub,
	}
}

// Send runs the full delivery sequence: validate, persist, decide
// sent/delivered from the receiver's presence, fan out to the
// conversation room, hint the receiver's sessions to refresh their chat
// list, and hand the event to the bridge. Only validation and
// persistence can fail the call; everything after the durable write is
// best-effort.
func (api *ChatApi) Send(ctx context.Context, senderID int32, req *SendReq) (*SendAck, *Error) {
	if req.ReceiverID <= 0 {
		return nil, newInvalidArgumentError("receiverId: required")
	}
	if req.ReceiverID == senderID {
		return nil, newInvalidArgumentError("receiverId: cannot message yourself")
	}
	if strings.TrimSpace(req.Body) == "" {
		return nil, newInvalidArgumentError("message: cannot be empty")
	}

	msg, err := api.store.Append(ctx, senderID, req.ReceiverID, req.Body, time.Time{})
	if err != nil {
		glog.Errorf("Send(): append error, sender: %d, err: %v", senderID, err)
		return nil, newInternalError(err.Error())
	}

	// Advisory presence check. The receiver may vanish before the
	// fan-out below; the stale `delivered` is resolved on its next
	// history fetch.
	if api.registry.IsOnline(req.ReceiverID) {
		if err := api.store.UpdateStatus(ctx, msg.ID, store.StatusDelivered); err != nil {
			// The row is durable with status `sent`; do not fail the send.
			glog.Errorf("Send(): update status error, msg: %d, err: %v", msg.ID, err)
		} else {
			msg.Status = store.StatusDelivered
		}
	}
	metrics.MessagesSent.WithLabelValues(string(msg.Status)).Inc()

	key := convo.KeyOf(senderID, req.ReceiverID)
	for _, h := range api.registry.Room(key) {
		if !h.push(EvtNewMessage, msg) {
			metrics.BroadcastFailures.Inc()
		}
	}

	// Receiver sessions that never joined the room still learn that the
	// chat list changed.
	for _, h := range api.registry.User(req.ReceiverID) {
		h.push(EvtChatListUpdated, nil)
	}

	api.bridge.Publish(msg)

	return &SendAck{
		TempID:    req.TempID,
		MessageID: msg.ID,
		Status:    msg.Status,
	}, nil
}

// MarkRead batch-marks every unread message from otherID to readerID.
// Idempotent; zero affected rows is a normal outcome.
func (api *ChatApi) MarkRead(ctx context.Context, readerID, otherID int32) (int64, *Error) {
	n, err := api.store.BatchMarkRead(ctx, readerID, otherID)
	if err != nil {
		glog.Errorf("MarkRead(): error, reader: %d, other: %d, err: %v", readerID, otherID, err)
		return 0, newInternalError(err.Error())
	}
	if n > 0 {
		metrics.MessagesRead.Add(float64(n))
	}
	return n, nil
}

// UnreadCount returns how many messages from otherID the user has not
// read yet.
func (api *ChatApi) UnreadCount(ctx context.Context, uid, otherID int32) (int64, *Error) {
	n, err := api.store.CountUnread(ctx, uid, otherID)
	if err != nil {
		glog.Errorf("UnreadCount(): error, uid: %d, other: %d, err: %v", uid, otherID, err)
		return 0, newInternalError(err.Error())
	}
	return n, nil
}

// Join subscribes the session to the conversation, marks the opened
// conversation read (opening a chat is how a recipient reads it) and
// tells the room the user is there.
func (api *ChatApi) Join(ctx context.Context, h *Handler, otherID int32) *Error {
	key := convo.KeyOf(h.uid, otherID)
	api.registry.Subscribe(h, key)
	glog.V(5).Infof("Join(): uid %d joined %s", h.uid, key)

	if _, apiErr := api.MarkRead(ctx, h.uid, otherID); apiErr != nil {
		return apiErr
	}

	for _, peer := range api.registry.Room(key) {
		if peer.sid == h.sid {
			continue
		}
		peer.push(EvtUserJoined, &UserJoined{UserID: h.uid})
	}
	return nil
}

func (api *ChatApi) Leave(h *Handler, otherID int32) {
	key := convo.KeyOf(h.uid, otherID)
	api.registry.Unsubscribe(h, key)
	glog.V(5).Infof("Leave(): uid %d left %s", h.uid, key)
}

// Typing relays a typing indicator to the room. Fire-and-forget: no
// persistence, no delivery guarantee.
func (api *ChatApi) Typing(h *Handler, otherID int32, isTyping bool) {
	key := convo.KeyOf(h.uid, otherID)
	for _, peer := range api.registry.Room(key) {
		if peer.sid == h.sid {
			continue
		}
		peer.push(EvtUserTyping, &UserTyping{UserID: h.uid, IsTyping: isTyping})
	}
}

// ChatList aggregates the user's conversations, newest first, decorated
// with directory display data. A directory miss degrades to a
// placeholder, never fails the query.
func (api *ChatApi) ChatList(ctx context.Context, uid int32) (*ChatListResp, *Error) {
	summaries, err := api.store.QueryConversationSummaries(ctx, uid)
	if err != nil {
		glog.Errorf("ChatList(): query error, uid: %d, err: %v", uid, err)
		return nil, newInternalError(err.Error())
	}

	chats := make([]*Chat, 0, len(summaries))
	for _, s := range summaries {
		chat := &Chat{
			ID:              s.CounterpartID,
			RecipientName:   placeholderName,
			LastMessage:     s.LastMessage,
			LastMessageTime: s.LastMessageTime,
			UnreadCount:     s.UnreadCount,
		}
		if u, err := api.dir.Lookup(ctx, s.CounterpartID); err == nil {
			chat.RecipientName = u.Name
			chat.RecipientAvatar = u.Avatar
		} else if err != directory.ErrNotFound {
			glog.Errorf("ChatList(): directory lookup error, uid: %d, err: %v", s.CounterpartID, err)
		}
		chats = append(chats, chat)
	}

	return &ChatListResp{Chats: chats, CurrentUserID: uid}, nil
}

// History returns the most recent window of the conversation in
// ascending order. Read-only; status moves only via MarkRead.
func (api *ChatApi) History(ctx context.Context, uid, otherID, limit int32) (*HistoryResp, *Error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	} else if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	msgs, err := api.store.QueryRange(ctx, uid, otherID, limit)
	if err != nil {
		glog.Errorf("History(): query error, uid: %d, other: %d, err: %v", uid, otherID, err)
		return nil, newInternalError(err.Error())
	}
	if msgs == nil {
		msgs = []*store.Message{}
	}
	return &HistoryResp{Messages: msgs, CurrentUserID: uid}, nil
}

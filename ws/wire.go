package ws

import (
	"encoding/json"
	"time"

	"github.com/ktao/dmhub/store"
)

// Client-originated event names.
const (
	EvtSendMessage    = "send_message"
	EvtJoinChat       = "join_chat"
	EvtLeaveChat      = "leave_chat"
	EvtTyping         = "typing"
	EvtMarkRead       = "mark_read"
	EvtGetChatList    = "get_chat_list"
	EvtGetMessages    = "get_messages"
	EvtGetUnreadCount = "get_unread_count"
)

// Server-originated event names.
const (
	EvtNewMessage       = "new_message"
	EvtMessageDelivered = "message_delivered"
	EvtMessageFailed    = "message_failed"
	EvtUserTyping       = "user_typing"
	EvtUserJoined       = "user_joined"
	EvtChatList         = "chat_list"
	EvtMessages         = "messages"
	EvtChatListUpdated  = "chat_list_updated"
	EvtError            = "error"
	EvtMarkedRead       = "marked_read"
	EvtUnreadCount      = "unread_count"
)

// ClientMsg is the inbound envelope. Event selects the handler from the
// dispatch table; Data is decoded by the handler itself.
type ClientMsg struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerMsg is the outbound envelope.
type ServerMsg struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// SendReq asks to deliver a message. TempID is an opaque client
// correlation token echoed back in the ack or the failure.
type SendReq struct {
	ReceiverID int32  `json:"receiverId"`
	Body       string `json:"message"`
	TempID     string `json:"tempId,omitempty"`
}

// SendAck confirms a persisted send to its sender.
type SendAck struct {
	TempID    string       `json:"tempId,omitempty"`
	MessageID int64        `json:"messageId"`
	Status    store.Status `json:"status"`
}

// SendFailed reports a send that never reached the durable log.
type SendFailed struct {
	TempID string `json:"tempId,omitempty"`
	Error  string `json:"error"`
}

// PeerReq names the conversation counterpart; used by join_chat,
// leave_chat and mark_read.
type PeerReq struct {
	OtherUserID int32 `json:"otherUserId"`
}

type TypingReq struct {
	OtherUserID int32 `json:"otherUserId"`
	IsTyping    bool  `json:"isTyping"`
}

type UserTyping struct {
	UserID   int32 `json:"userId"`
	IsTyping bool  `json:"isTyping"`
}

type UserJoined struct {
	UserID int32 `json:"userId"`
}

type HistoryReq struct {
	OtherUserID int32 `json:"otherUserId"`
	Limit       int32 `json:"limit,omitempty"`
}

type HistoryResp struct {
	Messages      []*store.Message `json:"messages"`
	CurrentUserID int32            `json:"currentUserId"`
}

// Chat is one chat-list entry, newest conversation first.
type Chat struct {
	ID              int32     `json:"id"`
	RecipientName   string    `json:"recipientName"`
	RecipientAvatar string    `json:"recipientAvatar,omitempty"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int32     `json:"unreadCount"`
}

type ChatListResp struct {
	Chats         []*Chat `json:"chats"`
	CurrentUserID int32   `json:"currentUserId"`
}

type MarkedRead struct {
	OtherUserID int32 `json:"otherUserId"`
	Count       int64 `json:"count"`
}

type UnreadCount struct {
	OtherUserID int32 `json:"otherUserId"`
	Count       int64 `json:"count"`
}

// Wire error codes, grpc-flavored.
const (
	CodeInvalidArgument = 3
	CodeNotFound        = 5
	CodeInternal        = 13
)

type Error struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

func newInvalidArgumentError(msg string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: msg}
}

func newInternalError(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// reason labels the error for the send-error metric.
func (e *Error) reason() string {
	if e.Code == CodeInternal {
		return "persistence"
	}
	return "invalid"
}

// scrubbed hides internal error detail from clients; the full text goes
// to the server log only.
func (e *Error) scrubbed() *Error {
	if e.Code == CodeInternal {
		return &Error{Code: CodeInternal, Message: "temporary storage error"}
	}
	return e
}

// Public is the client-safe form of the error, for callers outside the
// package.
func (e *Error) Public() *Error {
	return e.scrubbed()
}

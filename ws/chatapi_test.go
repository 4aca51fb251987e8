package ws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktao/dmhub/convo"
	"github.com/ktao/dmhub/directory"
	"github.com/ktao/dmhub/store"
	store_mock "github.com/ktao/dmhub/store/mock"
)

func newTestApi(dir directory.Directory) (*ChatApi, *Registry) {
	if dir == nil {
		dir = directory.NewStaticDirectory()
	}
	registry := NewRegistry()
	api := NewChatApi(store.NewMemoryStore(), dir, registry, nil)
	return api, registry
}

// drain pops every queued server event from a test handler.
func drain(h *Handler) []*ServerMsg {
	var out []*ServerMsg
	for {
		select {
		case v := <-h.dataChan:
			out = append(out, v)
		default:
			return out
		}
	}
}

func eventNames(msgs []*ServerMsg) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Event
	}
	return out
}

func TestSendDeliveredWhenReceiverOnline(t *testing.T) {
	api, registry := newTestApi(nil)
	ctx := context.Background()

	receiver := newTestHandler(2, "b1")
	registry.Register(receiver)
	registry.Subscribe(receiver, convo.KeyOf(1, 2))

	ack, apiErr := api.Send(ctx, 1, &SendReq{ReceiverID: 2, Body: "hi", TempID: "t-1"})
	require.Nil(t, apiErr)
	assert.Equal(t, store.StatusDelivered, ack.Status)
	assert.Equal(t, "t-1", ack.TempID)
	assert.True(t, ack.MessageID > 0)

	msgs := drain(receiver)
	require.Equal(t, []string{EvtNewMessage, EvtChatListUpdated}, eventNames(msgs))
	pushed := msgs[0].Data.(*store.Message)
	assert.Equal(t, "hi", pushed.Body)
	assert.Equal(t, store.StatusDelivered, pushed.Status)
}

func TestSendStatusSentWhenReceiverOffline(t *testing.T) {
	api, _ := newTestApi(nil)

	ack, apiErr := api.Send(context.Background(), 1, &SendReq{ReceiverID: 2, Body: "hi"})
	require.Nil(t, apiErr)
	assert.Equal(t, store.StatusSent, ack.Status)
}

func TestSendInvalidNothingPersisted(t *testing.T) {
	api, _ := newTestApi(nil)
	ctx := context.Background()

	_, apiErr := api.Send(ctx, 1, &SendReq{ReceiverID: 2, Body: "   "})
	require.NotNil(t, apiErr)
	assert.Equal(t, int32(CodeInvalidArgument), apiErr.Code)

	_, apiErr = api.Send(ctx, 1, &SendReq{ReceiverID: 1, Body: "self"})
	require.NotNil(t, apiErr)
	assert.Equal(t, int32(CodeInvalidArgument), apiErr.Code)

	_, apiErr = api.Send(ctx, 1, &SendReq{Body: "no receiver"})
	require.NotNil(t, apiErr)
	assert.Equal(t, int32(CodeInvalidArgument), apiErr.Code)

	resp, apiErr := api.History(ctx, 1, 2, 0)
	require.Nil(t, apiErr)
	assert.Empty(t, resp.Messages)
}

func TestSendPersistenceFailure(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	st := store_mock.NewMockMessageStore(mockCtrl)
	st.EXPECT().Append(gomock.Any(), int32(1), int32(2), "hi", gomock.Any()).
		Return(nil, errors.New("db gone")).Times(1)

	api := NewChatApi(st, directory.NewStaticDirectory(), NewRegistry(), nil)

	_, apiErr := api.Send(context.Background(), 1, &SendReq{ReceiverID: 2, Body: "hi"})
	require.NotNil(t, apiErr)
	assert.Equal(t, int32(CodeInternal), apiErr.Code)
	// Internal detail never reaches the wire.
	assert.NotContains(t, apiErr.scrubbed().Message, "db gone")
}

func TestSendStatusUpdateFailureKeepsRow(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	st := store_mock.NewMockMessageStore(mockCtrl)
	msg := &store.Message{ID: 5, SenderID: 1, ReceiverID: 2, Body: "hi", SentAt: time.Now(), Status: store.StatusSent}
	st.EXPECT().Append(gomock.Any(), int32(1), int32(2), "hi", gomock.Any()).Return(msg, nil).Times(1)
	st.EXPECT().UpdateStatus(gomock.Any(), int64(5), store.StatusDelivered).
		Return(errors.New("deadlock")).Times(1)

	registry := NewRegistry()
	receiver := newTestHandler(2, "b1")
	registry.Register(receiver)

	api := NewChatApi(st, directory.NewStaticDirectory(), registry, nil)

	ack, apiErr := api.Send(context.Background(), 1, &SendReq{ReceiverID: 2, Body: "hi"})
	require.Nil(t, apiErr)
	// Persisted status wins: the ack reports `sent`, not `delivered`.
	assert.Equal(t, store.StatusSent, ack.Status)
}

func TestSendOrderingPreserved(t *testing.T) {
	api, registry := newTestApi(nil)
	ctx := context.Background()

	receiver := newTestHandler(2, "b1")
	registry.Register(receiver)
	registry.Subscribe(receiver, convo.KeyOf(1, 2))

	_, apiErr := api.Send(ctx, 1, &SendReq{ReceiverID: 2, Body: "first"})
	require.Nil(t, apiErr)
	_, apiErr = api.Send(ctx, 1, &SendReq{ReceiverID: 2, Body: "second"})
	require.Nil(t, apiErr)

	var bodies []string
	for _, m := range drain(receiver) {
		if m.Event == EvtNewMessage {
			bodies = append(bodies, m.Data.(*store.Message).Body)
		}
	}
	assert.Equal(t, []string{"first", "second"}, bodies)

	resp, apiErr := api.History(ctx, 1, 2, 0)
	require.Nil(t, apiErr)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "first", resp.Messages[0].Body)
	assert.Equal(t, "second", resp.Messages[1].Body)
}

func TestMarkReadIdempotent(t *testing.T) {
	api, _ := newTestApi(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, apiErr := api.Send(ctx, 1, &SendReq{ReceiverID: 2, Body: "m"})
		require.Nil(t, apiErr)
	}

	n, apiErr := api.MarkRead(ctx, 2, 1)
	require.Nil(t, apiErr)
	assert.Equal(t, int64(3), n)

	n, apiErr = api.MarkRead(ctx, 2, 1)
	require.Nil(t, apiErr)
	assert.Equal(t, int64(0), n)
}

func TestUnreadCount(t *testing.T) {
	api, _ := newTestApi(nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, apiErr := api.Send(ctx, 1, &SendReq{ReceiverID: 2, Body: "m"})
		require.Nil(t, apiErr)
	}
	// Traffic the other way does not count against user 2.
	_, apiErr := api.Send(ctx, 2, &SendReq{ReceiverID: 1, Body: "reply"})
	require.Nil(t, apiErr)

	n, apiErr := api.UnreadCount(ctx, 2, 1)
	require.Nil(t, apiErr)
	assert.Equal(t, int64(2), n)

	_, apiErr = api.MarkRead(ctx, 2, 1)
	require.Nil(t, apiErr)

	n, apiErr = api.UnreadCount(ctx, 2, 1)
	require.Nil(t, apiErr)
	assert.Equal(t, int64(0), n)
}

func TestChatListAggregation(t *testing.T) {
	dir := directory.NewStaticDirectory(
		&directory.User{ID: 1, Name: "alice", Avatar: "a.png"},
		&directory.User{ID: 2, Name: "bob"},
	)
	api, _ := newTestApi(dir)
	ctx := context.Background()

	_, apiErr := api.Send(ctx, 1, &SendReq{ReceiverID: 2, Body: "ping"})
	require.Nil(t, apiErr)
	_, apiErr = api.Send(ctx, 2, &SendReq{ReceiverID: 1, Body: "pong"})
	require.Nil(t, apiErr)

	resp, apiErr := api.ChatList(ctx, 1)
	require.Nil(t, apiErr)
	require.Len(t, resp.Chats, 1)
	chat := resp.Chats[0]
	assert.Equal(t, int32(2), chat.ID)
	assert.Equal(t, "bob", chat.RecipientName)
	assert.Equal(t, "pong", chat.LastMessage)
	assert.Equal(t, int32(1), chat.UnreadCount)

	resp, apiErr = api.ChatList(ctx, 2)
	require.Nil(t, apiErr)
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, "alice", resp.Chats[0].RecipientName)
	assert.Equal(t, "a.png", resp.Chats[0].RecipientAvatar)
}

func TestChatListPlaceholderOnDirectoryMiss(t *testing.T) {
	api, _ := newTestApi(directory.NewStaticDirectory())
	ctx := context.Background()

	_, apiErr := api.Send(ctx, 1, &SendReq{ReceiverID: 2, Body: "hi"})
	require.Nil(t, apiErr)

	resp, apiErr := api.ChatList(ctx, 1)
	require.Nil(t, apiErr)
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, "User", resp.Chats[0].RecipientName)
	assert.Empty(t, resp.Chats[0].RecipientAvatar)
}

func TestJoinMarksReadAndNotifiesRoom(t *testing.T) {
	api, registry := newTestApi(nil)
	ctx := context.Background()

	alice := newTestHandler(1, "a1")
	bob := newTestHandler(2, "b1")
	registry.Register(alice)
	registry.Register(bob)

	_, apiErr := api.Send(ctx, 1, &SendReq{ReceiverID: 2, Body: "unread"})
	require.Nil(t, apiErr)

	require.Nil(t, api.Join(ctx, alice, 2))
	drain(alice)

	// Bob opens the chat: his unread from alice flips to read and alice
	// learns he is there.
	require.Nil(t, api.Join(ctx, bob, 1))

	resp, apiErr := api.ChatList(ctx, 2)
	require.Nil(t, apiErr)
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, int32(0), resp.Chats[0].UnreadCount)

	msgs := drain(alice)
	require.Len(t, msgs, 1)
	assert.Equal(t, EvtUserJoined, msgs[0].Event)
	assert.Equal(t, int32(2), msgs[0].Data.(*UserJoined).UserID)

	// The joiner itself gets no echo.
	assert.Empty(t, drain(bob))
}

func TestTypingNotEchoedToSender(t *testing.T) {
	api, registry := newTestApi(nil)

	alice := newTestHandler(1, "a1")
	bob := newTestHandler(2, "b1")
	registry.Register(alice)
	registry.Register(bob)
	registry.Subscribe(alice, convo.KeyOf(1, 2))
	registry.Subscribe(bob, convo.KeyOf(1, 2))

	api.Typing(alice, 2, true)

	assert.Empty(t, drain(alice))
	msgs := drain(bob)
	require.Len(t, msgs, 1)
	assert.Equal(t, EvtUserTyping, msgs[0].Event)
	data := msgs[0].Data.(*UserTyping)
	assert.Equal(t, int32(1), data.UserID)
	assert.True(t, data.IsTyping)
}

func TestDisconnectCleanup(t *testing.T) {
	api, registry := newTestApi(nil)
	ctx := context.Background()

	bob := newTestHandler(2, "b1")
	registry.Register(bob)

	ack, apiErr := api.Send(ctx, 1, &SendReq{ReceiverID: 2, Body: "while online"})
	require.Nil(t, apiErr)
	assert.Equal(t, store.StatusDelivered, ack.Status)

	registry.Deregister(bob)
	assert.False(t, registry.IsOnline(2))

	ack, apiErr = api.Send(ctx, 1, &SendReq{ReceiverID: 2, Body: "while offline"})
	require.Nil(t, apiErr)
	assert.Equal(t, store.StatusSent, ack.Status)
}

func TestHistoryWindow(t *testing.T) {
	api, _ := newTestApi(nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, apiErr := api.Send(ctx, 1, &SendReq{ReceiverID: 2, Body: string(rune('a' + i))})
		require.Nil(t, apiErr)
	}

	resp, apiErr := api.History(ctx, 2, 1, 2)
	require.Nil(t, apiErr)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "d", resp.Messages[0].Body)
	assert.Equal(t, "e", resp.Messages[1].Body)
}

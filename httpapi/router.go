// Package httpapi exposes the query endpoints for clients without a
// persistent connection: chat list, history and a plain send. The send
// runs the same delivery engine as the websocket event, so online
// recipients still get the real-time push.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"github.com/gorilla/mux"

	"github.com/ktao/dmhub/auth"
	"github.com/ktao/dmhub/ws"
)

type contextKey string

const uidContextKey contextKey = "uid"

type Server struct {
	authClient auth.Client
	api        *ws.ChatApi
}

func NewServer(authClient auth.Client, api *ws.ChatApi) *Server {
	return &Server{authClient: authClient, api: api}
}

// Router builds the /api subrouter with bearer authentication on every
// route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireAuth)
	api.HandleFunc("/chats", s.getChatList).Methods(http.MethodGet)
	api.HandleFunc("/messages/{otherUserId}", s.getMessages).Methods(http.MethodGet)
	api.HandleFunc("/send/{id}", s.sendMessage).Methods(http.MethodPost)

	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := s.authClient.Auth(r)
		if err != nil {
			glog.V(5).Infof("requireAuth(): %v", err)
			if errors.Is(err, auth.ErrNoCredential) {
				jsonError(w, http.StatusUnauthorized, "no token provided")
			} else {
				jsonError(w, http.StatusUnauthorized, "invalid token")
			}
			return
		}
		ctx := context.WithValue(r.Context(), uidContextKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func uidFromContext(ctx context.Context) int32 {
	uid, _ := ctx.Value(uidContextKey).(int32)
	return uid
}

func (s *Server) getChatList(w http.ResponseWriter, r *http.Request) {
	uid := uidFromContext(r.Context())

	resp, apiErr := s.api.ChatList(r.Context(), uid)
	if apiErr != nil {
		writeApiError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	uid := uidFromContext(r.Context())

	otherID, ok := pathID(w, r, "otherUserId")
	if !ok {
		return
	}

	var limit int32
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			jsonError(w, http.StatusBadRequest, "limit: positive integer expected")
			return
		}
		limit = int32(n)
	}

	resp, apiErr := s.api.History(r.Context(), uid, otherID, limit)
	if apiErr != nil {
		writeApiError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type sendBody struct {
	Body   string `json:"message"`
	TempID string `json:"tempId,omitempty"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	uid := uidFromContext(r.Context())

	receiverID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var body sendBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ack, apiErr := s.api.Send(r.Context(), uid, &ws.SendReq{
		ReceiverID: receiverID,
		Body:       body.Body,
		TempID:     body.TempID,
	})
	if apiErr != nil {
		writeApiError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusCreated, ack)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int32, bool) {
	raw := mux.Vars(r)[name]
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n <= 0 {
		jsonError(w, http.StatusBadRequest, name+": positive integer expected")
		return 0, false
	}
	return int32(n), true
}

func writeApiError(w http.ResponseWriter, apiErr *ws.Error) {
	scrubbed := apiErr.Public()
	switch apiErr.Code {
	case ws.CodeInvalidArgument:
		jsonError(w, http.StatusBadRequest, scrubbed.Message)
	case ws.CodeNotFound:
		jsonError(w, http.StatusNotFound, scrubbed.Message)
	default:
		jsonError(w, http.StatusInternalServerError, scrubbed.Message)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("writeJSON(): encode error: %v", err)
	}
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

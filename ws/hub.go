package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/pborman/uuid"

	"github.com/ktao/dmhub/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The node sits behind a reverse proxy that terminates the public
	// origin; origin enforcement happens there.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub accepts websocket connections: it authenticates the request,
// upgrades it, registers the session with the presence registry and
// starts the connection's goroutine pair.
type Hub struct {
	authClient auth.Client
	api        *ChatApi
	registry   *Registry
}

func NewHub(authClient auth.Client, api *ChatApi, registry *Registry) *Hub {
	return &Hub{
		authClient: authClient,
		api:        api,
		registry:   registry,
	}
}

// ServeHTTP handles websocket requests from clients. Authentication
// failures reject the request before any registry state exists.
func (hub *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	uid, err := hub.authClient.Auth(r)
	if err != nil {
		glog.Errorf("ServeHTTP(): authenticate error: %v", err)
		if errors.Is(err, auth.ErrNoCredential) {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
		} else {
			http.Error(w, "Authenticate error", http.StatusForbidden)
		}
		return
	}

	// If the upgrade fails, Upgrade replies to the client itself.
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Errorf("ServeHTTP(): upgrader.Upgrade error, uid: %d, err: %v", uid, err)
		return
	}

	handler := &Handler{
		api:        hub.api,
		registry:   hub.registry,
		uid:        uid,
		sid:        strings.ReplaceAll(uuid.New(), "-", ""),
		ip:         getRemoteIP(r),
		createTime: time.Now().Unix(),
		conn:       conn,
		dataChan:   make(chan *ServerMsg, 64),
	}

	conn.SetCloseHandler(func(code int, text string) error {
		glog.V(5).Infof("session closed by peer, session: %s, code: %d, text: %s", handler, code, text)
		hub.registry.Deregister(handler)
		return nil
	})

	hub.registry.Register(handler)
	glog.V(5).Infof("session online: %s", handler)

	go handler.recvLoop()
	go handler.sendLoop()
}

// Run blocks until ctx is cancelled, then closes every live session.
func (hub *Hub) Run(ctx context.Context, stopNotifyC chan<- struct{}) {
	<-ctx.Done()
	glog.Infof("close connections ...")
	hub.registry.CloseAll()
	glog.Infof("close connections done")
	stopNotifyC <- struct{}{}
}

func getRemoteIP(r *http.Request) string {
	ip := r.Header.Get("X-REAL-IP")
	if ip == "" {
		if ips := r.Header.Get("X-FORWARDED-FOR"); ips != "" {
			for _, x := range strings.Split(ips, ",") {
				if x != "" {
					ip = x
				}
			}
		}
	}
	if ip == "" {
		ip, _, _ = net.SplitHostPort(r.RemoteAddr)
	}

	return ip
}

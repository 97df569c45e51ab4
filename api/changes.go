package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fulldump/objectstore/observable"
	"github.com/fulldump/objectstore/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const changesWriteTimeout = 10 * time.Second

// streamChanges pushes every ChangeRecord of the store as a JSON text frame
// until the client goes away or the store is closed. Clients more than a
// buffer behind are disconnected.
func streamChanges(ctx context.Context, w http.ResponseWriter, r *http.Request) {

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("failed to upgrade the websocket", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	changes := make(chan store.ChangeRecord, 64)
	finished := make(chan struct{})
	dropped := make(chan struct{})
	overflow := make(chan struct{})
	overflowOnce := sync.Once{}

	subscription := getStore(ctx).ObserveAll(observable.Funcs[store.ChangeRecord]{
		OnNext: func(change store.ChangeRecord) {
			select {
			case changes <- change:
			case <-dropped:
			default:
				overflowOnce.Do(func() { close(overflow) })
			}
		},
		OnError: func(err error) {
			slog.Warn("changes stream failed", slog.String("error", err.Error()))
			close(finished)
		},
		OnComplete: func() {
			close(finished)
		},
	})
	defer subscription.Unsubscribe()

	// Reading is required to notice the client closing the connection.
	go func() {
		defer close(dropped)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case change := <-changes:
			ws.SetWriteDeadline(time.Now().Add(changesWriteTimeout))
			if err := ws.WriteJSON(change); err != nil {
				slog.Warn("failed to write websocket change", slog.String("error", err.Error()))
				return
			}
		case <-finished:
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "store closed"))
			return
		case <-overflow:
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "client too slow"))
			return
		case <-dropped:
			return
		}
	}
}

package viewerd

import (
	"encoding/json"
	"log"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/olahol/melody"

	"github.com/lcl45/openseadragon/events"
)

type websocketAction string

var (
	websocketActionStatus websocketAction = "status"
	websocketActionEvent  websocketAction = "event"
)

// broadtile is the websocket wire envelope. Connections get a status
// snapshot on connect, then a stream of named scheduler events.
type broadtile struct {
	Action websocketAction `json:"action"`
	Status *viewerStatus   `json:"status,omitempty"`
	Name   string          `json:"name,omitempty"`
	Event  any             `json:"event,omitempty"`
}

// wireEvent is a named feed payload, kept in the recent-events ring for
// the status report.
type wireEvent struct {
	Name  string    `json:"name"`
	Event any       `json:"event"`
	At    time.Time `json:"at"`
}

// initMelody sets up the websocket handler.
func (d *ViewerDaemon) initMelody() {
	d.melodyInstance = melody.New()

	// New connections get the current state before the event stream.
	d.melodyInstance.HandleConnect(func(s *melody.Session) {
		log.Println("[websocket] connected", s.Request.RemoteAddr)
		b, err := json.Marshal(broadtile{
			Action: websocketActionStatus,
			Status: d.status(),
		})
		if err != nil {
			slog.Error("Failed to marshal status", "error", err)
			return
		}
		_ = s.Write(b)
	})

	// Right now don't care about incoming messages from clients. Log and drop.
	d.melodyInstance.HandleMessage(loggingHandler)

	d.melodyInstance.HandleDisconnect(func(s *melody.Session) {
		log.Println("[websocket] disconnected", s.Request.RemoteAddr)
	})

	d.melodyInstance.HandleError(func(s *melody.Session, e error) {
		log.Println("[websocket] error", e, s.Request.RemoteAddr)
	})

	go d.relayFeeds()
}

// relayFeeds forwards this scheduler's feed events to websocket clients
// and the recent-events ring. Feed sends block on a full subscriber, so
// the channels are buffered generously; the scheduler only sends at
// frame boundaries.
func (d *ViewerDaemon) relayFeeds() {
	dispatched := make(chan events.TileDispatched, 64)
	loaded := make(chan events.TileLoaded, 64)
	failed := make(chan events.TileLoadFailed, 64)
	fully := make(chan events.FullyLoadedChanged, 8)
	bounds := make(chan events.BoundsChanged, 16)

	subs := []event.Subscription{
		events.TileDispatchedFeed.Subscribe(dispatched),
		events.TileLoadedFeed.Subscribe(loaded),
		events.TileLoadFailedFeed.Subscribe(failed),
		events.FullyLoadedChangedFeed.Subscribe(fully),
		events.BoundsChangedFeed.Subscribe(bounds),
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	owner := d.sched.Owner()
	for {
		select {
		case ev := <-dispatched:
			if ev.Owner == owner {
				d.broadcast("dispatched", ev)
			}
		case ev := <-loaded:
			if ev.Owner == owner {
				d.broadcast("loaded", ev)
			}
		case ev := <-failed:
			if ev.Owner == owner {
				d.broadcast("loadFailed", ev)
			}
		case ev := <-fully:
			if ev.Owner == owner {
				d.broadcast("fullyLoaded", ev)
			}
		case ev := <-bounds:
			d.broadcast("bounds", ev)
		case <-d.quit:
			return
		}
	}
}

func (d *ViewerDaemon) broadcast(name string, ev any) {
	d.recent.Add(wireEvent{Name: name, Event: ev, At: time.Now()})

	b, err := json.Marshal(broadtile{
		Action: websocketActionEvent,
		Name:   name,
		Event:  ev,
	})
	if err != nil {
		slog.Error("Failed to marshal feed event", "error", err)
		return
	}
	if err := d.melodyInstance.Broadcast(b); err != nil {
		slog.Warn("Failed to broadcast feed event", "error", err)
	}
}

// on request
func loggingHandler(s *melody.Session, msg []byte) {
	log.Println("[websocket] message", string(msg))
}

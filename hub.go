// Package server hosts the collaborative selection hub: one goroutine
// drains buffered client commands at a fixed tick rate, applies them to the
// selection engine, runs the maintenance sweep, and broadcasts per-viewer
// snapshots to every websocket subscriber.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"driftboard/server/internal/geom"
	"driftboard/server/internal/proto"
	"driftboard/server/internal/selection"
	"driftboard/server/logging"
)

// defaultViewport covers the whole canvas for subscribers that have not
// reported a viewport yet.
var defaultViewport = geom.Box{X: -1e7, Y: -1e7, Width: 2e7, Height: 2e7}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type participantState struct {
	proto.Participant
	sessionID     string
	lastHeartbeat time.Time
	lastRTT       time.Duration
	viewport      geom.Box
	hasViewport   bool
}

// HubConfig wires a hub to its board and engine settings. Zero values fall
// back to sane defaults.
type HubConfig struct {
	WhiteboardID string
	Engine       selection.Config
	Publisher    logging.Publisher
}

// Hub owns all mutable session state. The mutex serializes every mutation;
// the tick loop is the only writer of engine state, so command application
// order equals arrival order.
type Hub struct {
	mu           sync.Mutex
	whiteboardID string
	engine       *selection.Engine
	commands     *selection.CommandBuffer
	participants map[string]*participantState
	subscribers  map[string]*subscriber
	nextID       atomic.Uint64
	telemetry    *telemetryCounters
	publisher    logging.Publisher
}

func NewHub() *Hub {
	return NewHubWithConfig(HubConfig{})
}

func NewHubWithConfig(cfg HubConfig) *Hub {
	if cfg.WhiteboardID == "" {
		cfg.WhiteboardID = "default"
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	engineCfg := cfg.Engine
	if engineCfg.Publisher == nil {
		engineCfg.Publisher = publisher
	}
	telemetry := newTelemetryCounters()
	return &Hub{
		whiteboardID: cfg.WhiteboardID,
		engine:       selection.NewEngine(cfg.WhiteboardID, engineCfg),
		commands:     selection.NewCommandBuffer(commandBufferSize, telemetry),
		participants: make(map[string]*participantState),
		subscribers:  make(map[string]*subscriber),
		telemetry:    telemetry,
		publisher:    publisher,
	}
}

func (h *Hub) participantsLocked() []proto.Participant {
	out := make([]proto.Participant, 0, len(h.participants))
	for _, state := range h.participants {
		out = append(out, state.Participant)
	}
	return out
}

// Join registers a participant and assigns their identity. The websocket
// subscription happens separately once the client opens /ws.
func (h *Hub) Join() proto.JoinResponse {
	id := h.nextID.Add(1)
	userID := fmt.Sprintf("user-%d", id)
	now := time.Now()
	state := &participantState{
		Participant: proto.Participant{
			ID:          userID,
			DisplayName: fmt.Sprintf("Guest %d", id),
			Color:       colorPalette[int(id-1)%len(colorPalette)],
		},
		sessionID:     uuid.NewString(),
		lastHeartbeat: now,
	}

	h.mu.Lock()
	h.participants[userID] = state
	participants := h.participantsLocked()
	mode := h.engine.Mode()
	h.mu.Unlock()

	return proto.JoinResponse{
		Ver:             proto.Version,
		ID:              userID,
		SessionID:       state.sessionID,
		DisplayName:     state.DisplayName,
		Color:           state.Color,
		WhiteboardID:    h.whiteboardID,
		TickRate:        tickRate,
		HeartbeatMillis: heartbeatInterval.Milliseconds(),
		Preset:          string(mode),
		Participants:    participants,
	}
}

// Subscribe attaches a websocket connection to a joined participant. An
// existing connection for the same user is replaced.
func (h *Hub) Subscribe(userID string, conn *websocket.Conn) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.participants[userID]
	if !ok {
		return nil, false
	}

	state.lastHeartbeat = time.Now()

	if existing, ok := h.subscribers[userID]; ok {
		existing.conn.Close()
	}

	sub := &subscriber{conn: conn}
	h.subscribers[userID] = sub
	return sub, true
}

// Disconnect removes the participant together with their selections and
// locks. Reports whether the participant was known.
func (h *Hub) Disconnect(userID string) bool {
	h.mu.Lock()
	sub, subOK := h.subscribers[userID]
	if subOK {
		delete(h.subscribers, userID)
	}
	_, known := h.participants[userID]
	if known {
		delete(h.participants, userID)
		h.engine.RemoveParticipant(userID)
	}
	h.mu.Unlock()

	if subOK {
		sub.conn.Close()
	}
	return known
}

// SessionID returns the session assigned to the participant at join time.
func (h *Hub) SessionID(userID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	state, ok := h.participants[userID]
	if !ok {
		return "", false
	}
	return state.sessionID, true
}

// Participant returns the joined identity for userID.
func (h *Hub) Participant(userID string) (proto.Participant, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	state, ok := h.participants[userID]
	if !ok {
		return proto.Participant{}, false
	}
	return state.Participant, true
}

// Enqueue buffers a command for the next tick. Returns false when the
// buffer is full; the command is dropped and the overflow counter bumped.
func (h *Hub) Enqueue(cmd selection.Command) bool {
	if _, ok := h.Participant(cmd.ActorID); !ok {
		return false
	}
	return h.commands.Push(cmd)
}

// UpdateViewport records the subscriber's visible region for snapshot
// culling.
func (h *Hub) UpdateViewport(userID string, viewport geom.Box) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	state, ok := h.participants[userID]
	if !ok {
		return false
	}
	state.viewport = viewport
	state.hasViewport = true
	return true
}

// UpdateHeartbeat refreshes liveness for userID and returns the measured
// round-trip time when the client clock is plausible.
func (h *Hub) UpdateHeartbeat(userID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.participants[userID]
	if !ok {
		return 0, false
	}

	state.lastHeartbeat = receivedAt
	h.engine.Touch(userID, receivedAt)

	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			state.lastRTT = rtt
		}
	}

	return state.lastRTT, true
}

type ownershipAck struct {
	userID  string
	message proto.OwnershipResultMessage
}

// advance drains the command buffer, applies every command in arrival
// order, runs the maintenance sweep, and reaps participants whose
// heartbeats lapsed.
func (h *Hub) advance(now time.Time) ([]ownershipAck, []*subscriber) {
	h.mu.Lock()

	acks := make([]ownershipAck, 0)
	for _, cmd := range h.commands.Drain() {
		if _, ok := h.participants[cmd.ActorID]; !ok {
			continue
		}
		result := h.engine.Apply(cmd, now)
		if outcome := result.Ownership; outcome != nil {
			ack := proto.OwnershipResultMessage{
				Ver:       proto.Version,
				Type:      proto.TypeOwnershipResult,
				ElementID: outcome.ElementID,
				Granted:   outcome.Granted,
			}
			if outcome.Record != nil {
				ack.OwnerID = outcome.Record.OwnerID
				ack.ExpiresAt = outcome.Record.ExpiresAt.UnixMilli()
				ack.Reason = string(outcome.Record.Reason)
			}
			acks = append(acks, ownershipAck{userID: outcome.UserID, message: ack})
		}
	}

	h.engine.Sweep(now)

	toClose := make([]*subscriber, 0)
	for id, state := range h.participants {
		if now.Sub(state.lastHeartbeat) <= disconnectAfter {
			continue
		}
		if sub, ok := h.subscribers[id]; ok {
			toClose = append(toClose, sub)
			delete(h.subscribers, id)
		}
		delete(h.participants, id)
		h.engine.RemoveParticipant(id)
		log.Printf("disconnecting %s due to heartbeat timeout", id)
	}

	h.mu.Unlock()
	return acks, toClose
}

func (h *Hub) sendOwnershipAcks(acks []ownershipAck) {
	for _, ack := range acks {
		h.mu.Lock()
		sub, ok := h.subscribers[ack.userID]
		h.mu.Unlock()
		if !ok {
			continue
		}
		data, err := json.Marshal(ack.message)
		if err != nil {
			log.Printf("failed to marshal ownership result for %s: %v", ack.userID, err)
			continue
		}
		if err := h.writeToSubscriber(sub, data); err != nil {
			log.Printf("failed to send ownership result to %s: %v", ack.userID, err)
			h.Disconnect(ack.userID)
		}
	}
}

func (h *Hub) writeToSubscriber(sub *subscriber, data []byte) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return sub.conn.WriteMessage(websocket.TextMessage, data)
}

type outboundState struct {
	userID string
	sub    *subscriber
	data   []byte
}

// broadcastState sends each subscriber a snapshot culled to their own
// viewport.
func (h *Hub) broadcastState(now time.Time) {
	h.mu.Lock()
	pending := make([]outboundState, 0, len(h.subscribers))
	for id, sub := range h.subscribers {
		state, ok := h.participants[id]
		if !ok {
			continue
		}
		viewport := defaultViewport
		if state.hasViewport {
			viewport = state.viewport
		}
		snapshot := h.engine.Snapshot(id, viewport, now)
		msg := proto.StateMessage{
			Ver:        proto.Version,
			Type:       proto.TypeState,
			Selections: snapshot.Selections,
			Conflicts:  snapshot.Conflicts,
			Ownerships: snapshot.Ownerships,
			Tick:       h.engine.Tick(),
			ServerTime: now.UnixMilli(),
		}
		data, err := json.Marshal(msg)
		if err != nil {
			log.Printf("failed to marshal state for %s: %v", id, err)
			continue
		}
		pending = append(pending, outboundState{userID: id, sub: sub, data: data})
	}
	h.mu.Unlock()

	bytes := 0
	for _, out := range pending {
		if err := h.writeToSubscriber(out.sub, out.data); err != nil {
			log.Printf("failed to send update to %s: %v", out.userID, err)
			h.Disconnect(out.userID)
			continue
		}
		bytes += len(out.data)
	}
	h.telemetry.RecordBroadcast(bytes, len(pending))
}

// InitialState produces the join-time snapshot for one subscriber.
func (h *Hub) InitialState(userID string, now time.Time) proto.StateMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	viewport := defaultViewport
	if state, ok := h.participants[userID]; ok && state.hasViewport {
		viewport = state.viewport
	}
	snapshot := h.engine.Snapshot(userID, viewport, now)
	return proto.StateMessage{
		Ver:        proto.Version,
		Type:       proto.TypeState,
		Selections: snapshot.Selections,
		Conflicts:  snapshot.Conflicts,
		Ownerships: snapshot.Ownerships,
		Tick:       h.engine.Tick(),
		ServerTime: now.UnixMilli(),
	}
}

// RunLoop drives the fixed-rate tick until stop closes.
func (h *Hub) RunLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			started := time.Now()
			acks, toClose := h.advance(now)
			for _, sub := range toClose {
				sub.conn.Close()
			}
			h.sendOwnershipAcks(acks)
			h.broadcastState(now)
			h.telemetry.RecordTickDuration(time.Since(started))
		}
	}
}

// DiagnosticsSnapshot reports per-participant heartbeat state.
func (h *Hub) DiagnosticsSnapshot() []proto.DiagnosticsParticipant {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]proto.DiagnosticsParticipant, 0, len(h.participants))
	for _, state := range h.participants {
		out = append(out, proto.DiagnosticsParticipant{
			ID:            state.ID,
			LastHeartbeat: state.lastHeartbeat.UnixMilli(),
			RTTMillis:     state.lastRTT.Milliseconds(),
		})
	}
	return out
}

// EngineStats reports engine occupancy for diagnostics.
func (h *Hub) EngineStats(now time.Time) selection.EngineStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine.Stats(now)
}

// Telemetry exposes the counters for the diagnostics endpoint.
func (h *Hub) Telemetry() telemetrySnapshot {
	return h.telemetry.Snapshot()
}

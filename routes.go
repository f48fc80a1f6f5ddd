package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"driftboard/server/internal/proto"
	"driftboard/server/internal/selection"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewHandler builds the HTTP surface for one hub.
func NewHandler(hub *Hub) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/join", hub.handleJoin).Methods(http.MethodPost)
	router.HandleFunc("/ws", hub.handleWebsocket).Methods(http.MethodGet)
	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/diagnostics", hub.handleDiagnostics).Methods(http.MethodGet)
	return router
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

func (h *Hub) handleJoin(w http.ResponseWriter, r *http.Request) {
	join := h.Join()
	data, err := json.Marshal(join)
	if err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (h *Hub) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	payload := struct {
		Status       string                         `json:"status"`
		ServerTime   int64                          `json:"serverTime"`
		WhiteboardID string                         `json:"whiteboardId"`
		TickRate     int                            `json:"tickRate"`
		Heartbeat    int64                          `json:"heartbeatMillis"`
		Participants []proto.DiagnosticsParticipant `json:"participants"`
		Engine       selection.EngineStats          `json:"engine"`
		Telemetry    telemetrySnapshot              `json:"telemetry"`
	}{
		Status:       "ok",
		ServerTime:   now.UnixMilli(),
		WhiteboardID: h.whiteboardID,
		TickRate:     tickRate,
		Heartbeat:    heartbeatInterval.Milliseconds(),
		Participants: h.DiagnosticsSnapshot(),
		Engine:       h.EngineStats(now),
		Telemetry:    h.Telemetry(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (h *Hub) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("id")
	if userID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade failed for %s: %v", userID, err)
		return
	}

	sub, ok := h.Subscribe(userID, conn)
	if !ok {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown user")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}

	initial := h.InitialState(userID, time.Now())
	data, err := json.Marshal(initial)
	if err != nil {
		log.Printf("failed to marshal initial state for %s: %v", userID, err)
		h.Disconnect(userID)
		return
	}
	if err := h.writeToSubscriber(sub, data); err != nil {
		h.Disconnect(userID)
		return
	}

	h.readLoop(userID, sub)
}

func (h *Hub) readLoop(userID string, sub *subscriber) {
	conn := sub.conn
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.Disconnect(userID)
			return
		}

		var msg proto.ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Printf("discarding malformed message from %s: %v", userID, err)
			continue
		}

		switch msg.Type {
		case proto.TypeSelection, proto.TypeOwnership, proto.TypeResolve, proto.TypeElements:
			cmd, ok := h.commandFromMessage(userID, msg, time.Now())
			if !ok {
				log.Printf("ignoring unusable %s message from %s", msg.Type, userID)
				continue
			}
			if !h.Enqueue(cmd) {
				log.Printf("command buffer full, dropping %s from %s", msg.Type, userID)
			}
		case proto.TypeViewport:
			if msg.Viewport == nil || !h.UpdateViewport(userID, *msg.Viewport) {
				log.Printf("viewport ignored for %s", userID)
			}
		case proto.TypeHeartbeat:
			now := time.Now()
			rtt, ok := h.UpdateHeartbeat(userID, now, msg.SentAt)
			if !ok {
				continue
			}
			ack := proto.HeartbeatMessage{
				Ver:        proto.Version,
				Type:       proto.TypeHeartbeat,
				ServerTime: now.UnixMilli(),
				ClientTime: msg.SentAt,
				RTTMillis:  rtt.Milliseconds(),
			}
			data, err := json.Marshal(ack)
			if err != nil {
				log.Printf("failed to marshal heartbeat ack for %s: %v", userID, err)
				continue
			}
			if err := h.writeToSubscriber(sub, data); err != nil {
				h.Disconnect(userID)
				return
			}
		default:
			log.Printf("unknown message type %q from %s", msg.Type, userID)
		}
	}
}

// commandFromMessage translates a wire message into an engine command,
// filling identity fields the client never supplies.
func (h *Hub) commandFromMessage(userID string, msg proto.ClientMessage, now time.Time) (selection.Command, bool) {
	participant, ok := h.Participant(userID)
	if !ok {
		return selection.Command{}, false
	}

	cmd := selection.Command{ActorID: userID, IssuedAt: now}
	switch msg.Type {
	case proto.TypeSelection:
		timestamp := now
		if msg.Timestamp > 0 {
			timestamp = time.UnixMilli(msg.Timestamp)
		}
		sessionID, _ := h.SessionID(userID)
		cmd.Type = selection.CommandSelection
		cmd.Selection = &selection.SelectionCommand{
			UserID:        userID,
			UserName:      participant.DisplayName,
			UserColor:     participant.Color,
			WhiteboardID:  h.whiteboardID,
			SessionID:     sessionID,
			ElementIDs:    msg.ElementIDs,
			Bounds:        msg.Bounds,
			Timestamp:     timestamp,
			IsMultiSelect: msg.IsMultiSelect,
			Priority:      msg.Priority,
			IsActive:      msg.IsActive,
			LastSeen:      now,
		}
	case proto.TypeOwnership:
		if msg.ElementID == "" {
			return selection.Command{}, false
		}
		cmd.Type = selection.CommandOwnership
		cmd.Ownership = &selection.OwnershipCommand{
			ElementID: msg.ElementID,
			UserID:    userID,
			TTL:       time.Duration(msg.TTLMillis) * time.Millisecond,
			Reason:    selection.LockReason(msg.Reason),
			Locked:    msg.Locked,
			Priority:  msg.Priority,
			Release:   msg.Action == proto.ActionRelease,
			Renew:     msg.Action == proto.ActionRenew,
		}
	case proto.TypeResolve:
		if msg.ConflictID == "" {
			return selection.Command{}, false
		}
		cmd.Type = selection.CommandResolve
		cmd.Resolve = &selection.ResolveCommand{
			ConflictID: msg.ConflictID,
			Resolution: selection.Resolution(msg.Resolution),
		}
	case proto.TypeElements:
		upserts := make([]selection.ElementBounds, 0, len(msg.Elements))
		for _, element := range msg.Elements {
			if element.ID == "" {
				continue
			}
			upserts = append(upserts, selection.ElementBounds{ID: element.ID, Box: element.Bounds})
		}
		if len(upserts) == 0 && len(msg.Removed) == 0 {
			return selection.Command{}, false
		}
		cmd.Type = selection.CommandElements
		cmd.Elements = &selection.ElementsCommand{Upserts: upserts, Removed: msg.Removed}
	default:
		return selection.Command{}, false
	}
	return cmd, true
}

package handler

import (
	"encoding/json"
	"net/http"

	"groundtruth/internal/dto"
	"groundtruth/internal/logger"
	"groundtruth/internal/service/session"
	livehub "groundtruth/internal/service/websocket"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveHub tracks viewer connections per session.
type LiveHub interface {
	Register(sessionID string, conn *websocket.Conn, snapshot livehub.Snapshot)
	Unregister(sessionID string, conn *websocket.Conn)
}

// LiveMetricsHandler streams metric updates of one session to a viewer.
// The current metrics are sent once the viewer is subscribed.
func LiveMetricsHandler(svc *session.Service, hub LiveHub, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("session")
		if err := checkSessionID(sessionID); err != nil {
			writeError(w, logger, err)
			return
		}

		if _, err := svc.Metrics(sessionID); err != nil {
			writeError(w, logger, err)
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hub.Register(sessionID, connection, func() ([]byte, error) {
			metrics, err := svc.Metrics(sessionID)
			if err != nil {
				return nil, err
			}
			return json.Marshal(dto.LiveUpdate{SessionID: sessionID, Event: "snapshot", Metrics: metrics})
		})
		defer hub.Unregister(sessionID, connection)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer of %s disconnected normally", sessionID)
				} else {
					logger.Warning("Viewer of %s disconnected with error: %v", sessionID, err)
				}
				break
			}
		}
	}
}

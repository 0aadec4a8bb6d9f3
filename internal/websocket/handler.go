package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// Serve upgrades the connection and runs it as a client of eventID's room
// until it closes. Callers must authorize the request first.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, eventID int64) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("accept", "event_id", eventID, "error", err)
		return
	}
	defer conn.CloseNow()

	client := NewClient(h, conn, eventID)
	client.Run(r.Context())
}

package protocol

// EVENT (server -> observer). Cursor increases by one per event delivered on the connection.
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Cursor          uint64 `json:"cursor"`
	WorldID         string `json:"world_id"`
	ObservedAt      string `json:"observed_at"`
	Event           Event  `json:"event"`
}

// Package observerproto defines the wire types of the observer feed. The
// transport lives in internal/transport/observer; this package is just the
// shapes, so external tooling can import it without pulling in the server.
package observerproto

import "encoding/json"

// Version of the observer feed protocol. Subscribers must echo it in the
// SUBSCRIBE handshake.
const Version = 1

// Client -> Server. First message on the observer WS connection; re-sent
// periodically as a keepalive.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion int    `json:"protocol_version"`
}

// Server -> Client. Frame wraps every published event. Seq is per-hub and
// monotonic, so a subscriber can detect drops by watching for gaps.
type Frame struct {
	Seq  uint64          `json:"seq"`
	At   string          `json:"at"`
	Data json.RawMessage `json:"data"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion int        `json:"protocol_version"`
	Worlds          []string   `json:"worlds"`
	Index           IndexStats `json:"index"`
	Players         int        `json:"players"`
	CatalogDigest   string     `json:"catalog_digest"`
	OwnersMigrated  bool       `json:"owners_migrated"`
}

type IndexStats struct {
	Worlds  int `json:"worlds"`
	Aliases int `json:"aliases"`
	IDs     int `json:"ids"`
}

package signaling

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Routing domains selected by the top-level appType field. "cloak" and
// "cloaker" are two spellings of the same room protocol.
const (
	appTypeCloak     = "cloak"
	appTypeCloaker   = "cloaker"
	appTypeMessenger = "messenger"
)

// Message types.
const (
	typeJoin      = "join"
	typeSignal    = "signal"
	typeRegister  = "register"
	typeFindPeer  = "find_peer"
	typeOffer     = "offer"
	typeAnswer    = "answer"
	typeCandidate = "candidate"

	typeJoined     = "joined"
	typePeerJoined = "peer_joined"
	typePeerLeft   = "peer_left"
	typeError      = "error"
	typeRegistered = "registered"
	typePeerFound  = "peer_found"
)

const (
	fieldAppType      = "appType"
	fieldType         = "type"
	fieldRoom         = "room"
	fieldPassword     = "password"
	fieldAlias        = "alias"
	fieldPeerID       = "peerId"
	fieldTargetPeerID = "targetPeerId"
	fieldFromPeerID   = "fromPeerId"
)

// inbound is a parsed client frame. Fields are read lazily with gjson; the
// raw bytes are kept for verbatim relaying.
type inbound struct {
	raw []byte
	doc gjson.Result
}

// parseInbound accepts only well-formed JSON objects.
func parseInbound(data []byte) (inbound, bool) {
	if !gjson.ValidBytes(data) {
		return inbound{}, false
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return inbound{}, false
	}
	return inbound{raw: data, doc: doc}, true
}

// str returns a top-level string field, or "" when absent or not a string.
func (m inbound) str(field string) string {
	v := m.doc.Get(field)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

// withSender returns the frame with fromPeerId set to sender, or removed when
// sender is empty. Every other byte of the frame is kept as received.
func (m inbound) withSender(sender string) ([]byte, error) {
	if sender == "" {
		if !m.doc.Get(fieldFromPeerID).Exists() {
			return m.raw, nil
		}
		return sjson.DeleteBytes(m.raw, fieldFromPeerID)
	}
	return sjson.SetBytes(m.raw, fieldFromPeerID, sender)
}

type peerInfo struct {
	ID    string `json:"id"`
	Alias string `json:"alias"`
}

type joinedMessage struct {
	Type   string     `json:"type"`
	Room   string     `json:"room"`
	YourID string     `json:"yourId"`
	Peers  []peerInfo `json:"peers"`
}

type peerJoinedMessage struct {
	Type   string `json:"type"`
	PeerID string `json:"peerId"`
	Alias  string `json:"alias"`
}

type peerLeftMessage struct {
	Type   string `json:"type"`
	PeerID string `json:"peerId"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type registeredMessage struct {
	Type   string `json:"type"`
	PeerID string `json:"peerId"`
}

// peerFoundMessage omits peerId when the matched requester never registered.
type peerFoundMessage struct {
	Type   string `json:"type"`
	PeerID string `json:"peerId,omitempty"`
}

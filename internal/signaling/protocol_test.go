package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	for raw, want := range map[string]bool{
		`{"appType":"cloak"}`: true,
		`{}`:                  true,
		`[]`:                  false,
		`null`:                false,
		`12`:                  false,
		`{"a":`:               false,
		``:                    false,
	} {
		_, ok := parseInbound([]byte(raw))
		require.Equal(t, want, ok, "parseInbound(%q)", raw)
	}
}

func TestInboundStr_OnlyStrings(t *testing.T) {
	msg, ok := parseInbound([]byte(`{"room":"r1","alias":7,"password":null,"nested":{"room":"x"}}`))
	require.True(t, ok)
	require.Equal(t, "r1", msg.str("room"))
	for _, field := range []string{"alias", "password", "missing"} {
		require.Empty(t, msg.str(field), field)
	}
}

func TestWithSender_KeepsFrameBytes(t *testing.T) {
	for _, tc := range []struct {
		name   string
		in     string
		sender string
		want   string
	}{
		{
			name:   "appends sender",
			in:     `{"type":"offer","targetPeerId":"b","sdp":"v=0\r\na=<x>&y","appType":"messenger","n":1.50}`,
			sender: "a",
			want:   `{"type":"offer","targetPeerId":"b","sdp":"v=0\r\na=<x>&y","appType":"messenger","n":1.50,"fromPeerId":"a"}`,
		},
		{
			name:   "overwrites forged sender in place",
			in:     `{"type":"offer","fromPeerId":"forged","sdp":{"v":0},"list":[1,"two"]}`,
			sender: "alice",
			want:   `{"type":"offer","fromPeerId":"alice","sdp":{"v":0},"list":[1,"two"]}`,
		},
		{
			name:   "removes forged sender",
			in:     `{"type":"offer","fromPeerId":"forged","x":1}`,
			sender: "",
			want:   `{"type":"offer","x":1}`,
		},
		{
			name:   "no sender to remove",
			in:     `{"z":"<&>","a":2.0}`,
			sender: "",
			want:   `{"z":"<&>","a":2.0}`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			msg, ok := parseInbound([]byte(tc.in))
			require.True(t, ok)

			out, err := msg.withSender(tc.sender)
			require.NoError(t, err)
			require.Equal(t, tc.want, string(out))
		})
	}
}

func TestJoinedMessage_EmptyPeersIsList(t *testing.T) {
	b, err := json.Marshal(joinedMessage{Type: typeJoined, Room: "r", YourID: "a", Peers: []peerInfo{}})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"joined","room":"r","yourId":"a","peers":[]}`, string(b))
	require.Contains(t, string(b), `"peers":[]`)
}

func TestClientMessage(t *testing.T) {
	require.Equal(t, "Password required", clientMessage(ErrPasswordRequired))
	require.Equal(t, "Wrong password", clientMessage(ErrWrongPassword))
}

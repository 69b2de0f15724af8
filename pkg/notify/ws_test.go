package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientMessage_DecodesJoinLeavePing(t *testing.T) {
	var join clientMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"joinGroup","groupName":"job-1"}`), &join))
	require.Equal(t, "joinGroup", join.Type)
	require.Equal(t, "job-1", join.GroupName)

	var leave clientMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"leaveGroup","groupName":"job-1"}`), &leave))
	require.Equal(t, "leaveGroup", leave.Type)

	var ping clientMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"ping"}`), &ping))
	require.Equal(t, "ping", ping.Type)
	require.Empty(t, ping.GroupName)
}

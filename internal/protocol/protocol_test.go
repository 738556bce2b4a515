package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(t *testing.T, data string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &m))
	return m
}

func TestEncodeFlattensPayload(t *testing.T) {
	data, err := Encode(NamespaceNotes, Point{X: 12.5, Y: 40, State: PointState{Pointer: "pointer", Active: true}})
	require.NoError(t, err)

	m := fields(t, data)
	assert.Equal(t, "reveal-notes", m["namespace"])
	assert.Equal(t, "point", m["type"])
	assert.Equal(t, 12.5, m["x"])
	assert.Equal(t, map[string]any{"pointer": "pointer", "active": true}, m["state"])
	assert.Len(t, m, 5)
}

func TestEncodeFieldSets(t *testing.T) {
	cases := []struct {
		msg  Message
		keys []string
	}{
		{Connect{URL: "http://x/deck.html", State: json.RawMessage(`{"indexh":0}`)}, []string{"namespace", "type", "url", "state"}},
		{Connected{}, []string{"namespace", "type"}},
		{Call{MethodName: "getState", Arguments: []json.RawMessage{}, CallID: NewCallID("1")}, []string{"namespace", "type", "methodName", "arguments", "callId"}},
		{Return{Result: json.RawMessage(`42`), CallID: NewCallID("1")}, []string{"namespace", "type", "result", "callId"}},
		{State{Notes: "n", Whitespace: WhitespaceNormal}, []string{"namespace", "type", "notes", "markdown", "whitespace", "state"}},
	}
	for _, tc := range cases {
		data, err := Encode(NamespaceNotes, tc.msg)
		require.NoError(t, err)
		m := fields(t, data)
		assert.Len(t, m, len(tc.keys), "type %s", tc.msg.MessageType())
		for _, k := range tc.keys {
			assert.Contains(t, m, k, "type %s", tc.msg.MessageType())
		}
	}
}

func TestDecodeRejectsForeignNamespace(t *testing.T) {
	_, err := Decode(`{"namespace":"other","type":"connect"}`, NamespaceNotes)
	assert.ErrorIs(t, err, ErrForeignNamespace)

	_, err = Decode(`{"type":"connected"}`, NamespaceNotes, NamespaceReveal)
	assert.ErrorIs(t, err, ErrForeignNamespace)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, data := range []string{
		`not json`,
		`[1,2]`,
		`{"namespace":"reveal-notes","type":"call","arguments":[]}`,
		`{"namespace":"reveal-notes","type":"point","x":"left","state":{"pointer":"pointer"}}`,
		`{"namespace":"reveal-notes","type":"point","x":1,"y":2,"state":{}}`,
		`{"namespace":"reveal-notes","type":"call","methodName":"x","callId":true}`,
	} {
		_, err := Decode(data, NamespaceNotes)
		assert.ErrorIs(t, err, ErrMalformed, data)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode(`{"namespace":"reveal","eventName":"slidechanged"}`, NamespaceReveal)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeCall(t *testing.T) {
	env, err := Decode(`{"namespace":"reveal-notes","type":"call","methodName":"slide","arguments":[1,0],"callId":"abc"}`, NamespaceNotes)
	require.NoError(t, err)

	call, ok := env.Message.(Call)
	require.True(t, ok)
	assert.Equal(t, "slide", call.MethodName)
	assert.Len(t, call.Arguments, 2)
	assert.Equal(t, "abc", call.CallID.String())
}

func TestCallIDEchoesNumbers(t *testing.T) {
	env, err := Decode(`{"namespace":"reveal-notes","type":"call","methodName":"getState","callId":17}`, NamespaceNotes)
	require.NoError(t, err)
	call := env.Message.(Call)
	assert.Equal(t, "17", call.CallID.String())

	data, err := Encode(NamespaceNotes, Return{CallID: call.CallID})
	require.NoError(t, err)
	m := fields(t, data)
	assert.Equal(t, float64(17), m["callId"])
	assert.Nil(t, m["result"])
}

func TestDecodePointRoundTrip(t *testing.T) {
	in := Point{X: 3, Y: 4, State: PointState{Pointer: "spotlight", Active: false}}
	data, err := Encode(NamespaceReveal, in)
	require.NoError(t, err)

	env, err := Decode(data, NamespaceReveal)
	require.NoError(t, err)
	assert.Equal(t, NamespaceReveal, env.Namespace)
	assert.Equal(t, in, env.Message)
}

package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(CmdBuild, &BuildRequest{Recipe: "/src/recipe.yml", Targets: []string{"centos8"}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "\n")

	env, payload, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Version, env.Version)
	assert.Equal(t, CmdBuild, env.Command)

	req, err := DecodePayload[BuildRequest](payload)
	require.NoError(t, err)
	assert.Equal(t, "/src/recipe.yml", req.Recipe)
	assert.Equal(t, []string{"centos8"}, req.Targets)
}

func TestEncodeNilPayload(t *testing.T) {
	data, err := Encode(CmdStatus, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"command":"status"}`, string(data))

	_, payload, err := Decode(data)
	require.NoError(t, err)
	res, err := DecodePayload[StatusResult](payload)
	require.NoError(t, err)
	assert.Equal(t, StatusResult{}, *res)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not json", "build", ErrMalformedMessage},
		{"missing command", `{"version":1}`, ErrMalformedMessage},
		{"wrong version", `{"version":7,"command":"status"}`, ErrUnsupportedVersion},
		{"missing version", `{"command":"status"}`, ErrUnsupportedVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodePayloadMismatch(t *testing.T) {
	_, err := DecodePayload[BuildRequest](json.RawMessage(`{"recipe":42}`))
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestEncodeUnsupportedPayload(t *testing.T) {
	_, err := Encode(CmdOK, func() {})
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

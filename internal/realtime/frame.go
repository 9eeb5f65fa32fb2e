package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var errMissingType = errors.New("frame has no type")

// decodeFrame parses a server frame. Frames that are not JSON objects or
// carry no "type" are rejected.
func decodeFrame(data []byte) (envelope, error) {
	var env envelope

	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return env, errors.New("frame is not a JSON object")
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decode frame: %w", err)
	}
	if env.Type == "" {
		return env, errMissingType
	}
	if bytes.Equal(env.Data, []byte("null")) {
		env.Data = nil
	}
	return env, nil
}

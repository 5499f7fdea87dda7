// Package wire encodes and decodes the ChatRequest envelope exchanged over
// the Transport duplex channel.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/restsend/chatkit/model"
)

// Encode serializes a ChatRequest to its wire form: camelCase field names,
// empty/default fields omitted.
func Encode(req model.ChatRequest) ([]byte, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}
	return b, nil
}

// Decode parses a wire frame into a ChatRequest. Unknown type/content-type
// values are preserved verbatim rather than rejected — classification into
// ParseChatRequestType's closed set happens downstream in the dispatcher,
// keeping the codec itself forward-compatible with new server message kinds.
func Decode(data []byte) (model.ChatRequest, error) {
	var req model.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return model.ChatRequest{}, fmt.Errorf("decode chat request: %w", err)
	}
	return req, nil
}

package wire

import (
	"testing"

	"github.com/restsend/chatkit/model"
)

func TestEncodeTextFrame(t *testing.T) {
	req := model.NewText("greeting", "hello")
	req.ChatID = "mock_chat_id"
	req.ID = "mock_req_id"

	got, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := `{"type":"chat","id":"mock_req_id","topicId":"greeting","chatId":"mock_chat_id","content":{"type":"text","text":"hello"}}`
	if string(got) != want {
		t.Fatalf("Encode mismatch:\n got: %s\nwant: %s", got, want)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	req := model.NewText("greeting", "hello")
	req.ChatID = "mock_chat_id"
	req.ID = "mock_req_id"

	encoded, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.ChatID != req.ChatID || decoded.TopicID != req.TopicID {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, req)
	}
	if decoded.Content == nil || decoded.Content.Text != "hello" {
		t.Fatalf("round trip content mismatch: %+v", decoded.Content)
	}
}

func TestDecodeUnknownTypeTolerated(t *testing.T) {
	raw := []byte(`{"type":"future.thing","id":"x"}`)
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode unknown type should not error: %v", err)
	}
	if decoded.Type != "future.thing" {
		t.Fatalf("expected raw type preserved, got %q", decoded.Type)
	}
	if model.ParseChatRequestType(decoded.Type) != model.ChatRequestTypeUnknown {
		t.Fatalf("expected classification to Unknown, got %v", model.ParseChatRequestType(decoded.Type))
	}
}

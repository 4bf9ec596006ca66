package execd

import (
	"testing"
)

func TestJSONCodecName(t *testing.T) {
	if got := (jsonCodec{}).Name(); got != "json" {
		t.Fatalf("codec must advertise the json content type, got %q", got)
	}
}

func TestJSONCodecEmptyPayload(t *testing.T) {
	var req ListRequest
	if err := (jsonCodec{}).Unmarshal(nil, &req); err != nil {
		t.Fatalf("empty payloads must decode cleanly: %v", err)
	}
}

func TestProcessEventUnion(t *testing.T) {
	codec := jsonCodec{}

	raw, err := codec.Marshal(&StartResponse{Event: &ProcessEvent{
		End: &ProcessEndEvent{ExitCode: 1, Error: &ExecError{Name: "ExitError", Value: "exit status 1"}},
	}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded StartResponse
	if err := codec.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Event == nil || decoded.Event.End == nil {
		t.Fatal("expected an end event")
	}
	if decoded.Event.Start != nil || decoded.Event.Data != nil {
		t.Fatal("union leaked unset variants")
	}
	if decoded.Event.End.Error.Name != "ExitError" {
		t.Fatalf("unexpected error name %q", decoded.Event.End.Error.Name)
	}
}

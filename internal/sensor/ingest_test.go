package sensor

import (
	"encoding/json"
	"testing"
)

func TestIngestorHandleMapsSlugToLocation(t *testing.T) {
	dispatcher := &mockDispatcher{}
	i := NewIngestor(nil, dispatcher, nil)

	payload, _ := json.Marshal(Reading{Temperature: 26, Motion: true})
	if err := i.handle("hearth/sensor/living-room", payload); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if dispatcher.count() != 1 {
		t.Fatalf("expected 1 dispatch, got %d", dispatcher.count())
	}

	// The slugged topic segment must come back as the spaced location
	// rule conditions use, or pushed readings never match those rules.
	snap := dispatcher.last()
	if snap.Temp["living room"] != 26 {
		t.Errorf("snapshot keyed %v, want location \"living room\"", snap.Temp)
	}
	if !snap.Motion["living room"] {
		t.Error("expected motion keyed by the spaced location")
	}
}

func TestIngestorHandleRejectsBadInput(t *testing.T) {
	dispatcher := &mockDispatcher{}
	i := NewIngestor(nil, dispatcher, nil)

	if err := i.handle("hearth/command/ac-01", []byte(`{}`)); err == nil {
		t.Error("expected error for a non-sensor topic")
	}
	if err := i.handle("hearth/sensor/study", []byte(`not json`)); err == nil {
		t.Error("expected error for a malformed payload")
	}
	if dispatcher.count() != 0 {
		t.Errorf("bad input must not dispatch, got %d", dispatcher.count())
	}
}

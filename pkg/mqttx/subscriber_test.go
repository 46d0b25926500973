package mqttx

import (
	"testing"
)

// fakeMessage implements just enough of mqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestJSONHandlerDecodes(t *testing.T) {
	type sample struct {
		Kind  string  `json:"kind"`
		Value float64 `json:"value"`
	}
	var got []sample
	h := JSONHandler("test", func(s sample) { got = append(got, s) })

	h(nil, fakeMessage{topic: "field/f1/sensors/soil", payload: []byte(`{"kind":"soil","value":41.5}`)})
	if len(got) != 1 || got[0].Kind != "soil" || got[0].Value != 41.5 {
		t.Fatalf("decode failed: %+v", got)
	}
}

func TestJSONHandlerDropsMalformed(t *testing.T) {
	calls := 0
	h := JSONHandler("test", func(struct{}) { calls++ })

	h(nil, fakeMessage{topic: "t", payload: []byte(`{not json`)})
	if calls != 0 {
		t.Fatal("malformed payload must not reach the callback")
	}
	h(nil, fakeMessage{topic: "t", payload: []byte(`{}`)})
	if calls != 1 {
		t.Fatal("valid payload must reach the callback")
	}
}

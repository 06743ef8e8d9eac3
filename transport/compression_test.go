package transport

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

type capturingTransport struct {
	published []byte
	handler   Handler
}

func (t *capturingTransport) Connect(ctx context.Context) error    { return nil }
func (t *capturingTransport) Disconnect(ctx context.Context) error { return nil }
func (t *capturingTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	t.published = payload
	return nil
}
func (t *capturingTransport) Subscribe(ctx context.Context, channel string, handler Handler) error {
	t.handler = handler
	return nil
}
func (t *capturingTransport) Unsubscribe(ctx context.Context, channel string) error { return nil }

func TestCompressionBelowThresholdStaysPlain(t *testing.T) {
	base := &capturingTransport{}
	tr := Build(base, WithCompression(1024))

	tr.Publish(context.Background(), "ch1", []byte("short"))

	if base.published[0] != markerPlain {
		t.Errorf("expected plain marker for payload under threshold")
	}
	if !bytes.Equal(base.published[1:], []byte("short")) {
		t.Errorf("expected payload to pass through unchanged")
	}
}

func TestCompressionAboveThresholdCompresses(t *testing.T) {
	base := &capturingTransport{}
	tr := Build(base, WithCompression(10))

	payload := []byte(strings.Repeat("a", 1000))
	tr.Publish(context.Background(), "ch1", payload)

	if base.published[0] != markerGzip {
		t.Errorf("expected gzip marker for a large, compressible payload")
	}
	if len(base.published) >= len(payload) {
		t.Errorf("expected compressed form to be smaller than original")
	}
}

func TestCompressionRoundTripThroughSubscribe(t *testing.T) {
	base := &capturingTransport{}
	tr := Build(base, WithCompression(10))

	var got []byte
	tr.Subscribe(context.Background(), "ch1", func(ctx context.Context, channel string, payload []byte) {
		got = payload
	})

	payload := []byte(strings.Repeat("roundtrip", 200))
	tr.Publish(context.Background(), "ch1", payload)
	base.handler(context.Background(), "ch1", base.published)

	if !bytes.Equal(got, payload) {
		t.Errorf("expected decoded payload to match original")
	}
}

func TestCompressionSkippedWhenItWouldNotShrink(t *testing.T) {
	base := &capturingTransport{}
	tr := Build(base, WithCompression(1))

	payload := []byte("x")
	tr.Publish(context.Background(), "ch1", payload)

	if base.published[0] != markerPlain {
		t.Errorf("expected plain marker when compression would not shrink the payload")
	}
}

func TestDecodeRejectsUnknownMarker(t *testing.T) {
	_, err := decode([]byte{7, 1, 2, 3})
	if err == nil {
		t.Error("expected an error for an unrecognized marker byte")
	}
}

func TestDecodeRejectsEmptyPayload(t *testing.T) {
	_, err := decode(nil)
	if err == nil {
		t.Error("expected an error for an empty payload")
	}
}

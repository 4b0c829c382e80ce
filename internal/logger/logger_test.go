package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestContextFields_FlowThroughSlogBridge(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Project: "riverside"}, &buf)
	log := NewSlog(&zl)

	ctx := WithRunID(context.Background(), "run123")
	ctx = WithLayer(ctx, "Parcels")
	ctx = WithOperation(ctx, "buffer")
	log.InfoContext(ctx, "step done", "features", 3)

	out := buf.String()
	for _, want := range []string{
		`"run_id":"run123"`,
		`"layer":"Parcels"`,
		`"operation":"buffer"`,
		`"project":"riverside"`,
		`"msg":"step done"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line missing %s: %s", want, out)
		}
	}
}

func TestContextFields_AbsentValuesAddNothing(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)
	log := NewSlog(&zl)

	log.InfoContext(context.Background(), "plain")

	out := buf.String()
	for _, field := range []string{"run_id", "layer", "operation"} {
		if strings.Contains(out, field) {
			t.Fatalf("unexpected %s field in %s", field, out)
		}
	}
}

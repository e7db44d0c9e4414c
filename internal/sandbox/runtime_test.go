package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newRuntime(t *testing.T, bridge Bridge) *Runtime {
	t.Helper()
	rt, err := New(DefaultConfig(), bridge, nil)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestCompileAndCall(t *testing.T) {
	rt := newRuntime(t, nil)

	tests := []struct {
		name string
		src  string
		args interface{}
		want interface{}
	}{
		{
			name: "arithmetic",
			src:  "function(args) { return args.n * 2 }",
			args: map[string]interface{}{"n": 21},
			want: int64(42),
		},
		{
			name: "raw json args",
			src:  "function(args) { return args.name.toUpperCase() }",
			args: json.RawMessage(`{"name":"abc"}`),
			want: "ABC",
		},
		{
			name: "no result",
			src:  "function() { console.log('called') }",
			want: nil,
		},
		{
			name: "arrow function",
			src:  "(a) => a === null",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := rt.Compile(tt.name, tt.src)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if fn.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", fn.Name(), tt.name)
			}

			got, err := fn.Call(context.Background(), tt.args)
			if err != nil {
				t.Fatalf("Call() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Call() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestCompileRejectsNonFunctions(t *testing.T) {
	rt := newRuntime(t, nil)

	if _, err := rt.Compile("number", "42"); !errors.Is(err, ErrNotCallable) {
		t.Errorf("Compile(42) error = %v, want ErrNotCallable", err)
	}
	if _, err := rt.Compile("broken", "function( {"); err == nil {
		t.Error("Compile() accepted a syntax error")
	}
}

func TestDangerousGlobalsRemoved(t *testing.T) {
	rt := newRuntime(t, nil)

	for _, script := range []string{
		"function() { return require('fs') }",
		"function() { return process.exit(1) }",
	} {
		fn, err := rt.Compile("danger", script)
		if err != nil {
			t.Fatalf("Compile() error = %v", err)
		}
		if _, err := fn.Call(context.Background(), nil); err == nil {
			t.Errorf("script %q should fail", script)
		}
	}
}

func TestCallTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	rt, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	defer rt.Close()

	fn, err := rt.Compile("spin", "function() { while (true) {} }")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	start := time.Now()
	_, err = fn.Call(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("Call() error = %v, want timeout", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout took too long")
	}

	ok, err := rt.Compile("ok", "function() { return 1 }")
	if err != nil {
		t.Fatalf("Compile() after timeout error = %v", err)
	}
	if _, err := ok.Call(context.Background(), nil); err != nil {
		t.Errorf("runtime unusable after timeout: %v", err)
	}
}

func TestHostSend(t *testing.T) {
	var gotName string
	var gotPayload interface{}
	rt := newRuntime(t, BridgeFunc(func(name string, payload interface{}) error {
		gotName = name
		gotPayload = payload
		return nil
	}))

	fn, err := rt.Compile("notify", "function(args) { return host.send('Ping', {n: args}) }")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	got, err := fn.Call(context.Background(), 3)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != true {
		t.Errorf("Call() = %v, want true", got)
	}
	if gotName != "Ping" {
		t.Errorf("bridge name = %q", gotName)
	}
	payload, ok := gotPayload.(map[string]interface{})
	if !ok || payload["n"] != int64(3) {
		t.Errorf("bridge payload = %#v", gotPayload)
	}
}

func TestHostSendError(t *testing.T) {
	rt := newRuntime(t, BridgeFunc(func(string, interface{}) error {
		return errors.New("not connected")
	}))

	fn, err := rt.Compile("notify", "function() { host.send('x') }")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if _, err := fn.Call(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "not connected") {
		t.Errorf("Call() error = %v, want bridge error", err)
	}
}

func TestClosedRuntime(t *testing.T) {
	rt, err := New(DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	fn, err := rt.Compile("f", "function() { return 1 }")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	rt.Close()

	if _, err := fn.Call(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Call() after Close error = %v, want ErrClosed", err)
	}
}

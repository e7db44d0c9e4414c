package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Runtime wraps a goja VM with security controls. A VM is not safe for
// concurrent use, so every entry point holds mu.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	bridge Bridge
	logger *zap.Logger
	mu     sync.Mutex
}

// New creates a new sandboxed runtime
func New(config Config, bridge Bridge, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	r := &Runtime{
		vm:     goja.New(),
		config: config,
		bridge: bridge,
		logger: logger.Named("sandbox"),
	}

	if config.MaxCallStack > 0 {
		r.vm.SetMaxCallStackSize(config.MaxCallStack)
	}

	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	return r, nil
}

// Function is a compiled custom interface.
type Function struct {
	name string
	fn   goja.Callable
	rt   *Runtime
}

// Name returns the interface name.
func (f *Function) Name() string {
	return f.name
}

// Compile evaluates src, which must produce a function.
func (r *Runtime) Compile(name, src string) (*Function, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return nil, ErrClosed
	}

	prog, err := goja.Compile(name, "("+strings.TrimSpace(src)+")", true)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}

	val, err := r.run(context.Background(), func() (goja.Value, error) {
		return r.vm.RunProgram(prog)
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", name, err)
	}

	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotCallable)
	}
	return &Function{name: name, fn: fn, rt: r}, nil
}

// Call runs the function with args. json.RawMessage arguments are decoded
// first so scripts see plain objects.
func (f *Function) Call(ctx context.Context, args interface{}) (interface{}, error) {
	r := f.rt
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return nil, ErrClosed
	}

	if raw, ok := args.(json.RawMessage); ok {
		var decoded interface{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return nil, fmt.Errorf("decode args for %s: %w", f.name, err)
			}
		}
		args = decoded
	}

	val, err := r.run(ctx, func() (goja.Value, error) {
		return f.fn(goja.Undefined(), r.vm.ToValue(args))
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", f.name, err)
	}
	return exportValue(val), nil
}

// run executes fn with the call timeout and ctx cancellation armed.
// Requires r.mu.
func (r *Runtime) run(ctx context.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	done := make(chan struct{})
	exited := make(chan struct{})
	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()

	go func() {
		defer close(exited)
		select {
		case <-timer.C:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	val, err := fn()
	close(done)
	<-exited
	r.vm.ClearInterrupt()
	return val, err
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	if err := r.vm.Set("setTimeout", noop); err != nil {
		return err
	}
	if err := r.vm.Set("setInterval", noop); err != nil {
		return err
	}

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "info", "warn", "error"} {
			if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
				return err
			}
		}
		if err := r.vm.Set("console", console); err != nil {
			return err
		}
	}

	host := r.vm.NewObject()
	if err := host.Set("send", r.hostSend); err != nil {
		return err
	}
	if err := host.Set("log", r.makeConsoleFunc("debug")); err != nil {
		return err
	}
	return r.vm.Set("host", host)
}

func (r *Runtime) hostSend(call goja.FunctionCall) goja.Value {
	if r.bridge == nil {
		panic(r.vm.NewGoError(fmt.Errorf("host bridge unavailable")))
	}
	name := call.Argument(0).String()
	payload := exportValue(call.Argument(1))
	if err := r.bridge.Send(name, payload); err != nil {
		panic(r.vm.NewGoError(err))
	}
	return r.vm.ToValue(true)
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		switch level {
		case "warn":
			r.logger.Warn(msg)
		case "error":
			r.logger.Error(msg)
		case "debug":
			r.logger.Debug(msg)
		default:
			r.logger.Info(msg)
		}
		return goja.Undefined()
	}
}

func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// Close releases the VM
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm = nil
	return nil
}

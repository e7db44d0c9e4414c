package adapter

import (
	"context"
	"encoding/json"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/trackbridge/internal/cards"
	"github.com/GriffinCanCode/trackbridge/internal/domain/group"
	"github.com/GriffinCanCode/trackbridge/internal/sandbox"
	"github.com/GriffinCanCode/trackbridge/internal/shared/types"
	"github.com/GriffinCanCode/trackbridge/internal/surface"
)

// compileInterfaces loads the configured ext scripts and the initialize
// hook. Scripts that fail to compile are logged and skipped.
// Requires a.mu.
func (a *Adapter) compileInterfaces() {
	if len(a.cfg.Interfaces) == 0 && a.cfg.Initialize == "" {
		return
	}

	rt, err := sandbox.New(a.sandboxCfg, sandbox.BridgeFunc(a.bus.Send), a.logger)
	if err != nil {
		a.logger.Error("Failed to create script runtime", zap.Error(err))
		return
	}
	a.runtime = rt

	for _, name := range a.cfg.InterfaceNames() {
		fn, err := rt.Compile(name, a.cfg.Interfaces[name])
		if err != nil {
			a.logger.Warn("Custom interface skipped", zap.String("name", name), zap.Error(err))
			continue
		}
		a.ext[name] = fn
	}

	if a.cfg.Initialize != "" {
		fn, err := rt.Compile("initialize", a.cfg.Initialize)
		if err != nil {
			a.logger.Warn("Initialize script skipped", zap.Error(err))
			return
		}
		a.initScript = fn
	}
}

// extOperations exposes the compiled scripts. Requires a.mu.
func (a *Adapter) extOperations() []surface.Operation {
	ops := make([]surface.Operation, 0, len(a.ext))
	for name, fn := range a.ext {
		fn := fn
		ops = append(ops, surface.Operation{
			Name: name,
			Handler: func(args interface{}) interface{} {
				result, err := fn.Call(context.Background(), args)
				if err != nil {
					a.logger.Warn("Custom interface failed", zap.String("name", fn.Name()), zap.Error(err))
					return nil
				}
				return result
			},
		})
	}
	return ops
}

func (a *Adapter) registerHandlers() {
	a.bus.HandleEvent(types.EventSetUserInfo, a.setUserInfo)
	a.bus.HandleEvent(types.EventAccountLogin, a.accountLogin)
	a.bus.HandleEvent(types.EventAccountLogout, a.accountLogout)

	a.bus.HandleRequest(surface.ExtNamespace, a.processExternal)
	for _, ns := range a.surface.Namespaces() {
		a.bus.HandleRequest(ns, a.requestAction(ns))
	}
}

// requestAction forwards a host request {id, args} to the namespace
// target.
func (a *Adapter) requestAction(ns string) func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	return func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		var req types.CmdRequest
		if err := sonic.Unmarshal(payload, &req); err != nil {
			a.logger.Warn("Malformed request", zap.String("namespace", ns), zap.Error(err))
			return nil, err
		}
		return a.surface.Dispatch(ns, req.ID, req.Args)
	}
}

func (a *Adapter) processExternal(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var req types.CmdRequest
	if err := sonic.Unmarshal(payload, &req); err != nil {
		a.logger.Info("processExternal", zap.ByteString("args", payload))
		return nil, nil
	}

	a.mu.Lock()
	fn, ok := a.ext[req.ID]
	a.mu.Unlock()

	if !ok {
		a.logger.Info("processExternal", zap.String("id", req.ID), zap.ByteString("args", req.Args))
		return nil, nil
	}
	return fn.Call(ctx, req.Args)
}

// onConnected runs the initialize hook once the channel is live.
func (a *Adapter) onConnected() {
	a.logger.Debug("Consumer init")

	a.mu.Lock()
	fn := a.initScript
	a.mu.Unlock()

	if fn == nil {
		return
	}
	if _, err := fn.Call(context.Background(), PortName); err != nil {
		a.logger.Warn("Initialize script failed", zap.Error(err))
	}
}

func (a *Adapter) setUserInfo(payload json.RawMessage) {
	a.logger.Debug("setUserInfo", zap.ByteString("data", payload))
}

func (a *Adapter) accountLogin(payload json.RawMessage) {
	if a.registry == nil {
		a.logger.Debug("accountLogin without group registry")
		return
	}

	var account types.Account
	if err := sonic.Unmarshal(payload, &account); err != nil {
		a.logger.Warn("Malformed accountLogin", zap.Error(err))
		return
	}
	a.registry.Notify(types.MsgAccountLoginStatus, group.LoginStatus{Account: &account})
}

func (a *Adapter) accountLogout(json.RawMessage) {
	if a.registry == nil {
		return
	}
	a.registry.Notify(types.MsgAccountDeleteStatus, nil)
}

func dataRef(args interface{}) string {
	switch v := args.(type) {
	case types.DataUpdate:
		return v.Ref
	case *types.DataUpdate:
		if v != nil {
			return v.Ref
		}
	case cards.Card:
		return v.Ref
	case *cards.Card:
		if v != nil {
			return v.Ref
		}
	case map[string]interface{}:
		ref, _ := v["ref"].(string)
		return ref
	case json.RawMessage:
		var upd types.DataUpdate
		if err := sonic.Unmarshal(v, &upd); err == nil {
			return upd.Ref
		}
	}
	return ""
}

func valueID(args interface{}) string {
	switch v := args.(type) {
	case string:
		return v
	case map[string]interface{}:
		id, _ := v["id"].(string)
		return id
	case json.RawMessage:
		var id string
		if err := sonic.Unmarshal(v, &id); err == nil {
			return id
		}
		var req struct {
			ID string `json:"id"`
		}
		if err := sonic.Unmarshal(v, &req); err == nil {
			return req.ID
		}
	}
	return ""
}

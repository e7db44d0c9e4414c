/*
Package sandbox runs host-supplied custom interfaces inside isolated goja
JavaScript runtimes.

Each custom interface is a script that evaluates to a function. The
adapter exposes it under the ext namespace; calling it runs the function
with the decoded request arguments and returns its exported result.

# Restrictions

  - require, process, module and exports are removed
  - setTimeout and setInterval are no-ops
  - every call is interrupted after Config.Timeout or when its context ends
  - console output is forwarded to the structured logger

# Host access

Scripts reach the host only through the `host` global:

	host.send(name, payload)   // relay a message to the host page
	host.log(message)          // debug log

Usage:

	rt, err := sandbox.New(sandbox.DefaultConfig(), bridge, logger)
	fn, err := rt.Compile("double", "function(args) { return args.n * 2 }")
	out, err := fn.Call(ctx, map[string]interface{}{"n": 2})
*/
package sandbox

// Package triggers connects chains to the outside world.
//
// A chain is a pure function from context to context; this package supplies
// the entry points that build the initial context from an external event,
// run the chain, and render the result for the medium that asked:
//
//   - HTTP: Handler and Mount adapt a chain to chi routes with a JSON
//     success/error envelope
//   - Cron: Schedule runs a chain on a robfig/cron schedule and logs the
//     outcome
//   - CLI: Command wraps a chain as a cobra command that prints the final
//     context as JSON
//   - Messages: Bus is an in-process publish/subscribe broker that runs a
//     chain per delivered message
//
// Every adapter accepts the chain through the Runner interface, so anything
// with a name and a Run method works, not just *chainz.Chain.
package triggers

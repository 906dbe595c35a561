// Package orchestrator drives a single operation end to end: it serializes a
// type-erased input, resolves auth, identity and endpoint, signs and sends
// the request over a Connection, retries per the RetryStrategy and
// deserializes a type-erased output or error.
//
// Every collaborator is read from a configbag.Bag. Required components must
// be present before Invoke is called; Validate reports the missing ones and
// the Must* accessors panic with a descriptive message.
//
// Interceptors observe and modify each stage through optional hook
// interfaces (ReadBeforeExecution, ModifyBeforeSigning, ...). An interceptor
// implements only the hooks it needs.
package orchestrator

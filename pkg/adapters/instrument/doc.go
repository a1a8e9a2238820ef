// Package instrument provides instrument service implementations.
//
// The factory creates the instrument capability bundle based on provider
// configuration. Currently supports:
//   - sim: a deterministic in-process simulator
//
// Future providers:
//   - gRPC bridge to acquisition control software
package instrument

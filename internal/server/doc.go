// Package server exposes the splitter service over HTTP.
//
// The surface is plain-text and compatible with the wire behavior existing
// clients expect: job ids, status names, Success/Failed bodies, and the
// exact 400 messages. The /healthz and /models endpoints are JSON additions
// for operators.
package server

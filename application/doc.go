/*
Package application is a library for building the TRIP Verifier's
long-lived server process.

application implements the transport- and configuration-layer
components shared by the Verifier's request handling: TLS/Unix-socket
listening, request dispatch, hot-reloadable TOML configuration, and
structured logging. The protocol-level message types it dispatches
live in package protocol; the verification logic itself lives in
package verifier.

Config

This module implements loading and saving a running Verifier's
configuration, abstracting over the on-disk encoding (currently TOML
only, via config_encoding.go).

ServerBase

This module provides the network layer used by the Verifier binary: it
accepts relying-party connections over TCP+TLS or a Unix socket,
decodes protocol.Request envelopes, and dispatches them to a handler
under the appropriate lock discipline.
*/
package application

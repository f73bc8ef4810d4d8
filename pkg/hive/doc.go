// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package hive provides the core domain model for connecting a chat client
// to a set of MCP servers and exposing their tools as one addressable set.
//
// The package root contains the shared value types and domain errors that
// cross subpackage boundaries:
//
//	pkg/hive/
//	├── types.go              // ServerDescriptor, Session, Tool, AuthContext
//	├── errors.go             // Domain errors (checked with errors.Is)
//	├── auth/                 // Authentication strategy selection + OAuth PKCE
//	├── session/              // Transport dialing + MCP initialize handshake
//	├── aggregator/           // Qualified tool catalog with enable/disable state
//	└── orchestrator/         // Descriptor gathering, probing, connect/teardown
//
// Data flows in one direction: descriptors are gathered from their sources,
// filtered by reachability, dialed one at a time into sessions, and the
// resulting tool catalogs are merged under server-qualified names. Each
// Session exclusively owns its transport; the orchestrator owns the session
// map and releases everything through a single teardown scope.
package hive

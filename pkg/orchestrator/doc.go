// Package orchestrator wires the catalog → render filters → processors →
// renderer pipeline behind a single entry point shared by the HTTP host and
// the CLI.
package orchestrator

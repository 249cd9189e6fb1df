// Package types defines the Store and Collection interfaces, the agent,
// mission and song records, and the standard errors for the dossier store.
//
// Records are self-contained JSON values keyed by their own ID. The store
// enforces key uniqueness only; handle uniqueness, mission ownership and
// the points total are kept by the callers in internal/agents.
package types

// Package transfer holds end-to-end settlement scenarios: classification,
// tax arithmetic, the admission guards and the configurable ceilings, all
// driven through the in-memory test environment.
package transfer

// Package registry holds end-to-end scenarios for the administrative
// registries: exemption, denial, classification marks and the ownership
// handover, all driven through the in-memory test environment.
package registry

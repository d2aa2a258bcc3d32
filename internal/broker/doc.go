// Package broker owns service-name to stream-address allocation.
//
// Ownership boundary:
// - identity allocation (strictly increasing, starting at Config.FirstIdentity)
// - the service registry (name -> latest allocated address)
// - the default stream sink used as fallback destination for worker output
// - optional HTTP admin surface (health, registry snapshot, prometheus metrics)
package broker

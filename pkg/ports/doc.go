// Package ports defines the interfaces between the convergence runtime
// and its infrastructure: engine launching, state encoding/decoding,
// parameter updates, record persistence and working-directory locking.
//
// Concrete implementations live under pkg/adapters.
package ports

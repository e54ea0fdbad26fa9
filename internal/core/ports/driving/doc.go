// Package driving defines the interfaces external actors use to drive the
// engine (primary/inbound ports). The CLI adapter and any future transport
// depend on these, never on the service structs directly.
package driving

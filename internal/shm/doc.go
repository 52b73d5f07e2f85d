// Package shm implements the shared-memory region manager.
//
// Regions are named, fixed-size byte buffers carved out of a single
// bounded arena. Sandboxed apps exchange large payloads (images, audio,
// sensor blocks) through regions instead of copying them through a
// message channel.
//
// Lifecycle:
//   - Create reserves arena bytes, zero-fills them and returns a handle
//     with an initial reference count of one.
//   - Open resolves a region by name, checks the caller's permission and
//     takes another reference.
//   - Close drops a reference; the last close tears the region down and
//     returns its bytes to the arena.
//   - Destroy (owner only) tears the region down immediately; handles
//     held by other apps become invalid, not dangling.
//
// Access control is discretionary: the owner always has full access, a
// per-app ACL entry is authoritative when present, and the region's
// default permission applies to everyone else.
//
// Handles carry a generation counter so a handle retained across a
// destroy cannot silently address a newer region that reused the slot.
package shm

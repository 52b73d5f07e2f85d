// Package sharedmem exposes the region manager as a tool provider.
//
// Apps share large buffers (images, audio, sensor blocks) through named,
// permissioned regions instead of copying them through a message channel.
//
// Tools:
//   - shm.create / shm.open / shm.close / shm.destroy — lifecycle
//   - shm.info / shm.stats — metadata and usage counters
//   - shm.set_permission — owner-managed per-app grants
//   - shm.lock / shm.unlock — advisory exclusive access
//   - shm.read / shm.write — byte-range copy in and out (base64 payloads)
//
// Every tool resolves the calling app's identity from the execution
// context; calls without an app id are rejected.
package sharedmem

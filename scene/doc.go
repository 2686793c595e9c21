// Package scene holds the shared mutable model of what is currently true
// about the room: tracked objects and the human's presence, pose, and
// identity.
//
// The model is mutated once per processed frame and read by the rules
// engine and the query resolver. It is deliberately not goroutine-safe;
// the owning loop serializes all access behind a single coarse mutex
// (one lock scope per Update, per resolved query, per evaluation).
//
// Architecture:
//   - Memory: the aggregate (label→ObjectRecord map + HumanState + flags)
//   - Store: persistence boundary (object map and focus flag only; human
//     state and identity are never persisted)
//   - Normalize: the synonym table shared with the query resolver
//
// Staleness is read, not erased, on update: a label missing from a frame
// keeps its record untouched until the owning loop calls Expire on its
// sweep cadence.
package scene

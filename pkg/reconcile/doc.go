// Package reconcile implements the per-frame diffing of a device-reported
// entity set against a locally held index.
//
// Every detection subsystem receives, once per frame, the complete set of
// identities the device currently tracks. The Reconciler turns that snapshot
// into add/update/remove effects against its local index:
//
//   - entities whose identity vanished from the snapshot are torn down,
//     removed from the index, and reported via the remove observer
//   - unseen identities get a fresh entity, inserted and reported via the
//     add observer
//   - surviving entities are refreshed in place, with no event
//
// # Ordering
//
// Within one Apply call, all removals complete before any addition. A device
// that briefly reuses an identity therefore always produces a remove followed
// by a fresh add, never a silent reuse of the old entity.
//
// # Lifecycle
//
// Clear force-removes every entity (each firing its own remove event). The
// owning subsystem calls it on session end so consumers never observe
// entities surviving past the session.
package reconcile

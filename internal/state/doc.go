// Package state owns the observed-state snapshot: the engine's durable record
// of which extension images are merged on the host.
//
// The overlay tool only exposes the present, so the snapshot is the engine's
// only memory across runs:
//
//   - Load returns the persisted snapshot, or bootstraps it once by probing
//     the live system and persisting the result.
//   - Save replaces the snapshot atomically (temp file + rename).
//   - Probe re-derives the snapshot from the live system; the engine calls it
//     after every apply instead of patching the old snapshot.
//
// A Lock serialises whole reconciliations so two invocations fail fast
// instead of interleaving their writes.
package state

// Package planner computes the merge/unmerge plan that converges the observed
// extensions onto the desired ones.
//
// Diff is pure: identities are resolved by the caller, and the result depends
// only on the inputs and their order.
//
// Key rules:
//   - Matching is by sysext ID only; identities without one never match
//   - Same version observed: nothing to do
//   - Different version observed: merge the new image and unmerge the old one
//   - A remove for a key wins over an add for the same key
//   - Removing something that is not merged is a warning, not an error
package planner

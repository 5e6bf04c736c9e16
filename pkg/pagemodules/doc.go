// Package pagemodules provides the module composition and ordering engine for
// pages and posts: an ordered, nested collection of typed modules attached to
// one content entity.
//
// It exposes a single Service interface that loads a content entity's module
// tree, applies structural edits (insert, remove, move, attribute edits), and
// persists them through a pluggable Repository. Implementations of the
// repository (memory, Postgres) and of snapshot stores used to hand confirmed
// trees to a renderer (memory, filesystem, S3) are provided under subpackages.
//
// Ordering Contract
//
// Within a sibling group (same content and same parent) the Order values of a
// confirmed tree form a contiguous zero-based sequence. Every order-changing
// edit is computed as one in-memory mutation, applied optimistically, and then
// persisted as a batch of independent writes. When any write of the batch
// fails the optimistic tree is discarded and the tree is reloaded from
// storage; the caller receives a *ReorderError carrying the reloaded tree.
//
// Payloads
//
// ModuleData values and PageModule custom attributes are open JSON values.
// They are validated at write time against the owning ModuleType's schema
// (see ModuleSchema); a type with an empty schema accepts any value.
package pagemodules

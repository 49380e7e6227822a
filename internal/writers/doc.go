// Package writers turns graph snapshots, events and batch results into
// serialized outputs.
//
// Design:
//   - Writers own all presentation knowledge (node table, JSON/JSONL/FASTA).
//   - The graph and dispatch packages stay domain-only.
//   - JSON/JSONL go through pkg/api (v1) for a stable wire format.
package writers

// Command lumosdb is the out-of-core CLI shell around Lumos-DB's core
// engines (SPEC_FULL.md §1): a spf13/cobra command tree mirroring teacher's
// cmd/mycelicmemory + cmd/ultrathink structure, driving the Query Router,
// the Sync Manager's scheduled background loop, and the thin REST surface.
package main

func main() {
	Execute()
}

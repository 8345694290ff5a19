// Package feed generates the facility feed: a set of compressed JSON files,
// one per source chunk, plus a manifest naming them.
//
// A Generator pulls chunks from a source.Reader on one goroutine and hands
// each non-empty chunk to its own unit of work, which transforms, encodes,
// compresses and uploads it. A weighted semaphore caps the number of units in
// flight. The loop acquires a slot before it starts a unit, so extraction
// pauses while every slot is busy and memory stays bounded by
// MaxConcurrentUploads chunks.
//
// Units never cancel each other. Once the source is exhausted the generator
// waits for every unit and only then decides the run:
//
//   - any failed chunk fails the run and no manifest is written; feed files
//     uploaded by the other chunks stay in place
//   - a source without records succeeds without writing anything
//   - otherwise metadata.json is written listing the files in lexical order
//
// The presence of metadata.json is the success marker consumers rely on.
//
// # Naming
//
// Every artifact of a run shares the generation timestamp taken when Execute
// starts:
//
//	facility_feed_<timestamp>_<chunk>.json.gz
//	metadata.json
//
// Chunk numbers start at 1 and count only scheduled chunks, so they are dense
// whatever order units finish in.
package feed

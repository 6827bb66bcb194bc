package store

// Artifact key layout. Each stage exclusively owns the prefix it writes:
//
//	validation/{batchId}/validation-results.json
//	metadata/{batchId}/chunks.json
//	chunks/{batchId}/{chunkId}.json
//	results/{batchId}/{chunkId}.json
//	errors/{batchId}/{chunkId}.json
//	chunk-results/{batchId}/{chunkId}.json
//	final-results/{batchId}/aggregated-results.json

func ValidationResultKey(batchID string) string {
	return "validation/" + batchID + "/validation-results.json"
}

func ChunkManifestKey(batchID string) string {
	return "metadata/" + batchID + "/chunks.json"
}

// ChunkInputKey is the raw record array a chunk processor loads.
func ChunkInputKey(batchID, chunkID string) string {
	return "chunks/" + batchID + "/" + chunkID + ".json"
}

// ResultKey is the transformed output artifact of one chunk, always
// written even on partial failure.
func ResultKey(batchID, chunkID string) string {
	return "results/" + batchID + "/" + chunkID + ".json"
}

func ResultPrefix(batchID string) string {
	return "results/" + batchID + "/"
}

// ErrorKey is the per-record error artifact of one chunk, written only
// when at least one record failed; its absence is a valid state.
func ErrorKey(batchID, chunkID string) string {
	return "errors/" + batchID + "/" + chunkID + ".json"
}

func ErrorPrefix(batchID string) string {
	return "errors/" + batchID + "/"
}

func ChunkResultKey(batchID, chunkID string) string {
	return "chunk-results/" + batchID + "/" + chunkID + ".json"
}

func ChunkResultPrefix(batchID string) string {
	return "chunk-results/" + batchID + "/"
}

func FinalResultKey(batchID string) string {
	return "final-results/" + batchID + "/aggregated-results.json"
}

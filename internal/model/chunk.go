package model

// Chunk is a bounded text window cut from a log file for embedding and
// retrieval. Chunks are immutable once created and owned by their file.
type Chunk struct {
	ID          string `json:"id"`
	FileID      string `json:"file_id"`
	ChunkIndex  int    `json:"chunk_index"`
	Content     string `json:"content"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Ctime       int64  `json:"ctime"`
}

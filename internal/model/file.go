package model

const (
	FileStateUploaded = 1
	FileStateParsed   = 2
	FileStateIndexed  = 3
	FileStateDeleted  = 4
)

type LogFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	StoreKey    string `json:"store_key"`
	Format      string `json:"format"`
	EntryCount  int    `json:"entry_count"`
	ChunkCount  int    `json:"chunk_count"`
	State       int    `json:"state"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}

package store

// DigestEntry summarises a single store entry with its key and version
// only.
type DigestEntry struct {
	Key string `json:"key" codec:"key"`

	// CreatedAt is the version of the entry, in Unix milliseconds.
	CreatedAt int64 `json:"created_at" codec:"created_at"`
}

// Digest is a compact summary of the keys in a store and their versions,
// used to detect divergence between two stores without exchanging values.
//
// A digest is a snapshot at the moment of construction. It is rebuilt on
// every pull cycle rather than maintained incrementally.
type Digest []DigestEntry

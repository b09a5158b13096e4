package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/docqa/core"
)

// Key prefixes for different data types
const (
	documentPrefix     = "docrec"
	documentUserPrefix = "docusr"
	documentIDSeq      = "docrecseq"
	chunkPrefix        = "chkrec"
	chunkDocPrefix     = "chkdoc"
)

// makeDocumentKey generates a key for a document record by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, id))
}

// makeDocumentUserKey generates a composite key for the per-user recency index.
// Format: prefix:userId:0x00:timestamp:id
func makeDocumentUserKey(userId string, createdAt time.Time, id core.ID) []byte {
	buf := makePartialDocumentUserKey(userId)
	tail := make([]byte, 16) // 8 bytes for timestamp + 8 bytes for ID
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(tail, uint64(createdAt.UnixMicro()))
	binary.BigEndian.PutUint64(tail[8:], uint64(id))
	return append(buf, tail...)
}

// makePartialDocumentUserKey generates the prefix shared by all index entries
// of one user. The 0x00 separator keeps "alice" from matching "alice2".
func makePartialDocumentUserKey(userId string) []byte {
	prefix := documentUserPrefix + ":"
	buf := make([]byte, 0, len(prefix)+len(userId)+1)
	buf = append(buf, prefix...)
	buf = append(buf, userId...)
	buf = append(buf, 0x00)
	return buf
}

// makeChunkKey generates a key for a chunk record by ID.
func makeChunkKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", chunkPrefix, id))
}

// makeChunkDocKey generates a composite key for the per-document chunk index.
// Format: prefix:documentID:index
func makeChunkDocKey(documentId core.ID, index int) []byte {
	prefix := chunkDocPrefix + ":"
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentId))
	binary.BigEndian.PutUint64(buf[offset+8:], uint64(index))
	return buf
}

// makePartialChunkDocKey generates a partial key covering every chunk index
// entry of one document.
func makePartialChunkDocKey(documentId core.ID) []byte {
	prefix := chunkDocPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentId))
	return buf
}

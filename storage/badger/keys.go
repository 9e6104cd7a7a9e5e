package badger

import "fmt"

// Key prefixes for different data types
const (
	passageRecordPrefix   = "pasrec"
	passageDocumentPrefix = "pasdoc"
	vectorRecordPrefix    = "vecrec"
)

// makePassageKey generates a key for a passage record by ID.
func makePassageKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", passageRecordPrefix, id))
}

// makeVectorKey generates a key for a vector record by passage ID.
func makeVectorKey(passageID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", vectorRecordPrefix, passageID))
}

// makeDocumentKey generates a composite key for the document index.
// Format: prefix:documentID:passageID
func makeDocumentKey(documentID, passageID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", passageDocumentPrefix, documentID, passageID))
}

// makePartialDocumentKey generates a partial key for scanning all index
// entries of a single document.
// Format: prefix:documentID:
func makePartialDocumentKey(documentID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", passageDocumentPrefix, documentID))
}

// makeRecordPrefix generates the scan prefix for a record keyspace.
func makeRecordPrefix(prefix string) []byte {
	return []byte(prefix + ":")
}

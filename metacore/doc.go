// Package metacore holds the operations metatool performs against a single
// MetaCore node: listing files, node info, upload, download and audit.
//
// Each operation is an explicit parameter struct implementing Operation. An
// operation never chooses a node; it is executed against the Client it is
// handed, and the dispatch package decides which nodes to try.
//
// Authenticated operations send two headers: "sender-address" (the
// credential's address) and "signature" (the credential's signature over the
// referenced content hash).
package metacore

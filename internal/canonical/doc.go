// Package canonical provides RFC 8785 canonical JSON and content-addressed
// identifiers for decisions.
//
// Canonical output is the only serialization used for hashing and for
// golden snapshots: keys are ordered by UTF-16 code units, strings are NFC
// normalized, HTML characters are not escaped, and floats are rejected.
// Null object members are dropped so optional fields do not change hashes.
package canonical

// Package ntripauth implements the HTTP Basic credential encoding used by
// every non-anonymous request (spec §4.2).
package ntripauth

import "encoding/base64"

// EncodeCredential encodes "user:password" as the value that follows
// "Authorization: Basic " — a pure function of its inputs (spec §8
// invariant 2: two invocations with the same arguments produce identical
// bytes, and decoding the result yields "user:password" back).
func EncodeCredential(user, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
}

// EncodeCredentialInto writes the encoded credential into dst, a
// caller-supplied buffer of known capacity, without ever writing past its
// end. It returns the total number of bytes the encoding *would* have
// produced, so a caller using a fixed-size header buffer (as the original
// C client does) can detect truncation even though the encoder itself
// never overflows the destination — spec §4.2: "the encoder stops
// producing output silently but still reports the total bytes it would
// have produced".
func EncodeCredentialInto(dst []byte, user, password string) (wouldProduce int) {
	encoded := EncodeCredential(user, password)
	copy(dst, encoded)
	return len(encoded)
}

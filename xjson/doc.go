/*
Package xjson converts typed values to and from JSON trees while keeping the
types plain JSON cannot carry.


Extended Values

A binary blob is encoded as a marker object:

   {"@kv_type":"binary","data":"AQL/"}

The payload is standard base64 (RFC 4648) with padding. Decoding a marker
object whose type is unknown fails with ErrUnrecognizedExtendedType; a known
type with a missing or ill-typed payload fails with ErrMalformedExtendedValue.


Escaping

An object key made of one or more '@' followed by "kv_type" (the whole key,
nothing before or after) is written with one extra leading '@', at every
nesting level. Decoding strips exactly one '@' from such keys, so user data
that happens to look like a marker survives a round trip.


Simple JSON

ModeSimple disables all of the above. Encoding fails with
ErrExtendedTypePresent when a blob is reachable, and decoding is the identity
onto plain JSON.
*/
package xjson

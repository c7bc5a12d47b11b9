/*
Package secret provides a library to safely store typed key/value pairs, with
string tags attached to each key, into an encrypted file on disk.


Values

Values are xjson.Value trees: null, booleans, numbers, strings, binary blobs,
maps and lists. Each record is stored as canonical JSON:

   {"type":"xjson","value":<extended JSON>,"tags":{<name>:<value>}}

Get can decode in simple JSON mode, in which case a value holding binary data
is refused with xjson.ErrExtendedTypePresent.


Encryption

The data are encrypted using AES-256 and the GCM (Galois/Counter Mode) mode.
The encryption key is derived from the store passphrase using the PBKDF2
algorithm and expanded with HKDF into an encryption key and a key used to
name records with HMAC-SHA256.


Engines

The default engine is a bbolt database. Its meta bucket holds the app name,
the schema version, the KDF salt and an encrypted token used to detect a wrong
passphrase. Its records bucket maps HMAC(key) to the sealed key and record, so
key names are never stored in clear. bbolt provides the transactions and the
file lock that serialize access between processes.

The file engine uses the following binary format:

   2 bytes for the revision stored as an unsigned int on 16bits encoded in
   little endian

   32 bytes for the salt used by key derivation algorithm (PBKDF2)

   All other bytes are used to store the encrypted data. The first 12 bytes
   are used to store the nonce required by the AES-GCM cipher.

Before the encryption, the key/record pairs are encoded using the following
format:

   {base64(key):base64(record)}

The file engine rewrites the whole file on every change and does not lock it
against other processes.


Security

All the security relies on the passphrase. It is therefore highly recommended
to use a strong passphrase, preferably generated with a strong generator.
*/
package secret

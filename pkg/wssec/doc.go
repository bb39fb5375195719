// Package wssec implements the WS-Security processing for the
// Digikoppeling WUS profiles: selective signing of body and addressing
// headers, body-content encryption, and the inverse verification and
// decryption on receipt.
//
// Protect applies the profile's steps in order (Timestamp, Sign,
// Encrypt); Unprotect applies the inverse in receive order (Decrypt,
// VerifyTimestamp, VerifySignature). Both operate on a copy of the
// classified envelope, so a failure never yields a partially rewritten
// tree.
//
// Signing follows the WSS 1.1 X.509 token profile: each signed part
// gets a wsu:Id, is digested under exclusive canonicalization, and is
// referenced from a ds:SignedInfo signed with RSA-SHA256. The signing
// certificate travels as a wsse:BinarySecurityToken. Encryption covers
// the body content only (XML-Encryption Content mode) with AES-128-GCM
// under an RSA-OAEP wrapped content key, so addressing headers remain
// legible to intermediaries.
//
// Encrypted body content must be namespace self-contained: prefixes
// used inside the body have to be declared at or below the body's
// child elements, or the canonical form will not survive the
// decrypt/verify round trip.
package wssec

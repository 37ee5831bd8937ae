/*
Package sigverify implements the ed25519 signature verification precompile.

The precompile is a program without accounts. Its instruction data is a
packet listing (public key, signature, message) triples through an offset
table:

	count u8 | padding u8 | count * offsets | payload

Each offsets entry is seven little endian u16 values: signature offset,
signature instruction index, public key offset, public key instruction
index, message offset, message size and message instruction index. An
instruction index of CurrentInstruction refers to the packet itself,
otherwise to another instruction of the same transaction.

When any signature does not verify the whole transaction fails. Other
programs rely on that: finding a packet entry in a preceding instruction
proves the signature is valid.
*/
package sigverify

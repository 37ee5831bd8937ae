/*
Package escrow implements an escrow program releasing funds on a quorum of
signatures.

An escrow locks native lamports or tokens of a single mint in an account
derived from the buyer, the seller, the presence of a moderator and a
caller chosen unique identifier. Funds leave the escrow only through a
Release instruction that lists the payment targets. The parties sign the
release message off chain:

	unique_id | recipient_1 | amount_1 (u64 LE) | ... | recipient_n | amount_n

and the signatures are verified by an ed25519 precompile instruction placed
immediately before Release in the same transaction.

Before the unlock time, a release requires signatures of at least
RequiredSignatures distinct parties. Once the unlock time passed, the seller
signature alone is enough. Either way the signatures must cover the exact
payment targets, so a signature collected for one release cannot authorize
another one.

On release the escrow is marked completed and emptied before any transfer
takes place. The escrow account is then closed and its rent returned to the
buyer.
*/
package escrow

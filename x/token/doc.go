/*
Package token implements fungible tokens on top of ledger accounts.

A mint account defines a token: its supply, decimals and the authority that
may issue new units. Token accounts hold a balance of a single mint on behalf
of an owner. The owner may be a program derived address, in which case the
program moves the tokens by invoking Transfer with signer seeds.
*/
package token

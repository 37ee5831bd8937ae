/*
Package custody defines the interfaces used throughout the ledger and its
programs: storage, accounts, instructions, transactions and programs.
It also contains helpers to work with context and time.

Every program works on accounts. An account holds a lamport balance, the
identifier of the program that owns it and opaque data that only the owner may
change. Programs receive the accounts an instruction lists and may call other
programs, signing for the addresses derived from their own identifier.

We pass context through context.Context between the ledger and programs. There
should exist two functions for every XYZ of type T that we want to support in
Context:

	WithXYZ(Context, T) Context
	GetXYZ(Context) (val T, ok bool)

WithXYZ may panic if the value was previously set to avoid lower-level modules
overwriting the value (eg. chain id).
*/
package custody

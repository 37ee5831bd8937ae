/*
Package system implements the program that owns every account no other
program claimed. It creates accounts on behalf of other programs and moves
lamports between accounts it owns.

Genesis accounts and the rent configuration are loaded by the Initializer.
*/
package system

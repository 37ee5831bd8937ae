/*
Package pool implements pooled escrows.

Instead of one account per escrow, buyers move funds into a shared pool of
the asset and a record account keeps the terms of each deal. Records are
released with the same quorum and timelock rules as escrows, the pool paying
out the recipients.

A pool is created once per asset by its authority, who can also pause it.
Paused pools accept neither new records nor releases.
*/
package pool

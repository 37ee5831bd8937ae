package app

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
)

// MaxInvokeDepth limits how deep cross program invocations may nest. The top
// level instruction counts as the first level.
const MaxInvokeDepth = 4

// executor holds the state shared by all invocations of one top level
// instruction.
type executor struct {
	router *Router
	stack  []custody.Address
}

// frame is a single program invocation. It implements custody.Invocation.
type frame struct {
	exec     *executor
	program  custody.Address
	data     []byte
	accounts []*custody.AccountInfo
	// pre is the state of the accounts the program is accountable for.
	pre snapshot
}

var _ custody.Invocation = (*frame)(nil)

func (f *frame) ProgramID() custody.Address { return f.program }

func (f *frame) Data() []byte { return f.data }

func (f *frame) Accounts() []*custody.AccountInfo { return f.accounts }

// privileges returns the account state shared under given address together
// with the combined privileges this frame holds for it.
func (f *frame) privileges(a custody.Address) (acc *custody.Account, signer, writable, found bool) {
	for _, info := range f.accounts {
		if info.Key != a {
			continue
		}
		acc = info.Account
		found = true
		signer = signer || info.IsSigner
		writable = writable || info.IsWritable
	}
	return acc, signer, writable, found
}

// Invoke implements custody.Invocation.
func (f *frame) Invoke(ctx custody.Context, ix custody.Instruction, signerSeeds ...[][]byte) error {
	signed := make(map[custody.Address]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := solana.CreateProgramAddress(seeds, f.program)
		if err != nil {
			return errors.Wrapf(errors.ErrInput, "signer seeds: %s", err)
		}
		signed[addr] = true
	}

	accounts := make([]*custody.AccountInfo, len(ix.Accounts))
	for i, m := range ix.Accounts {
		acc, signer, writable, ok := f.privileges(m.Address)
		if !ok {
			return errors.Wrapf(errors.ErrUnauthorized, "account %s is not available to %s", m.Address, f.program)
		}
		if m.IsWritable && !writable {
			return errors.Wrapf(errors.ErrUnauthorized, "account %s is read only", m.Address)
		}
		if m.IsSigner && !signer && !signed[m.Address] {
			return errors.Wrapf(errors.ErrUnauthorized, "account %s did not sign", m.Address)
		}
		accounts[i] = &custody.AccountInfo{
			Account:    acc,
			Key:        m.Address,
			IsSigner:   m.IsSigner,
			IsWritable: m.IsWritable,
		}
	}

	if err := f.pre.verify(f.program, f.accounts); err != nil {
		return err
	}
	callee := &frame{
		exec:     f.exec,
		program:  ix.ProgramID,
		data:     ix.Data,
		accounts: accounts,
	}
	if err := f.exec.call(ctx, callee); err != nil {
		return err
	}
	// Changes done by the callee were checked against its own rules.
	f.pre = takeSnapshot(f.accounts)
	return nil
}

// call runs the program of the frame and validates the account changes it
// made.
func (e *executor) call(ctx custody.Context, f *frame) error {
	p, ok := e.router.Program(f.program)
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "program %s", f.program)
	}
	for _, id := range e.stack {
		if id == f.program {
			return errors.Wrapf(errors.ErrUnauthorized, "reentrant call of %s", f.program)
		}
	}
	if len(e.stack) >= MaxInvokeDepth {
		return errors.Wrapf(errors.ErrState, "invoke depth %d exceeded", MaxInvokeDepth)
	}
	e.stack = append(e.stack, f.program)
	defer func() { e.stack = e.stack[:len(e.stack)-1] }()

	f.pre = takeSnapshot(f.accounts)
	ctx = custody.WithLogInfo(ctx, "program", f.program.String())
	if err := p.Process(ctx, f); err != nil {
		return err
	}
	return f.pre.verify(f.program, f.accounts)
}

// snapshot is a copy of account states taken at a program boundary.
type snapshot map[custody.Address]*custody.Account

func takeSnapshot(accounts []*custody.AccountInfo) snapshot {
	s := make(snapshot, len(accounts))
	for _, info := range accounts {
		if _, ok := s[info.Key]; !ok {
			s[info.Key] = info.Account.Clone()
		}
	}
	return s
}

// verify ensures that the program changed only what it is allowed to.
// Read only accounts must not change at all. Only the owner of an account
// may modify its data, reassign it or withdraw its lamports.
func (s snapshot) verify(program custody.Address, accounts []*custody.AccountInfo) error {
	writable := make(map[custody.Address]bool, len(accounts))
	for _, info := range accounts {
		writable[info.Key] = writable[info.Key] || info.IsWritable
	}

	for _, info := range accounts {
		before, ok := s[info.Key]
		if !ok {
			return errors.Wrapf(errors.ErrHuman, "no snapshot of %s", info.Key)
		}
		after := info.Account
		if after.Equal(before) {
			continue
		}
		if !writable[info.Key] {
			return errors.Wrapf(errors.ErrUnauthorized, "read only account %s modified", info.Key)
		}
		if before.Owner == program {
			continue
		}
		if after.Owner != before.Owner {
			return errors.Wrapf(errors.ErrUnauthorized, "owner of %s changed by %s", info.Key, program)
		}
		if !bytes.Equal(after.Data, before.Data) {
			return errors.Wrapf(errors.ErrUnauthorized, "data of %s modified by %s", info.Key, program)
		}
		if after.Lamports < before.Lamports {
			return errors.Wrapf(errors.ErrUnauthorized, "lamports of %s withdrawn by %s", info.Key, program)
		}
	}
	return nil
}

// lamports returns the sum of all balances in the snapshot.
func (s snapshot) lamports() (uint64, error) {
	var total uint64
	for _, acc := range s {
		if total > ^uint64(0)-acc.Lamports {
			return 0, errors.Wrap(errors.ErrOverflow, "total lamports")
		}
		total += acc.Lamports
	}
	return total, nil
}

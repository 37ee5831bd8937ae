package system

import (
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
)

// RegisterRoutes registers the system program.
func RegisterRoutes(r custody.Registry) {
	r.Register(custody.SystemProgramID, Program{})
}

// Program implements the system program.
type Program struct{}

var _ custody.Program = Program{}

func (p Program) Process(ctx custody.Context, inv custody.Invocation) error {
	tag, raw, err := custody.SplitInstruction(inv.Data())
	if err != nil {
		return err
	}
	switch tag {
	case TagCreateAccount:
		var msg CreateAccountMsg
		if err := custody.UnmarshalMsg(raw, &msg); err != nil {
			return errors.Wrap(err, "create account")
		}
		return p.createAccount(ctx, inv, &msg)
	case TagTransfer:
		var msg TransferMsg
		if err := custody.UnmarshalMsg(raw, &msg); err != nil {
			return errors.Wrap(err, "transfer")
		}
		return p.transfer(ctx, inv, &msg)
	default:
		return errors.Wrapf(errors.ErrMsg, "unknown instruction %d", tag)
	}
}

func (Program) createAccount(ctx custody.Context, inv custody.Invocation, msg *CreateAccountMsg) error {
	accounts, err := custody.RequireAccounts(inv, 2)
	if err != nil {
		return err
	}
	from, to := accounts[0], accounts[1]
	if err := fundingAccount(from); err != nil {
		return err
	}
	if err := custody.RequireSigner(to, "new account"); err != nil {
		return err
	}
	if to.Key == from.Key {
		return errors.Wrap(errors.ErrInput, "account cannot fund itself")
	}
	if !to.IsEmpty() || to.Owner != custody.SystemProgramID {
		return errors.Wrapf(errors.ErrDuplicate, "account %s already in use", to.Key)
	}
	if rent, ok := custody.GetRent(ctx); ok {
		if min := rent.MinimumBalance(int(msg.Space)); msg.Lamports < min {
			return errors.Wrapf(errors.ErrAmount, "%d lamports below rent exemption of %d", msg.Lamports, min)
		}
	}

	if err := from.Debit(msg.Lamports); err != nil {
		return err
	}
	if err := to.Credit(msg.Lamports); err != nil {
		return err
	}
	to.Data = make([]byte, msg.Space)
	to.Owner = msg.Owner

	custody.GetLogger(ctx).Debug("account created",
		"address", to.Key, "owner", msg.Owner, "space", msg.Space)
	return nil
}

func (Program) transfer(ctx custody.Context, inv custody.Invocation, msg *TransferMsg) error {
	accounts, err := custody.RequireAccounts(inv, 2)
	if err != nil {
		return err
	}
	from, to := accounts[0], accounts[1]
	if err := fundingAccount(from); err != nil {
		return err
	}
	if from.Key == to.Key {
		return nil
	}
	if err := from.Debit(msg.Lamports); err != nil {
		return err
	}
	return to.Credit(msg.Lamports)
}

// fundingAccount checks that lamports may be taken out of the account.
func fundingAccount(info *custody.AccountInfo) error {
	if err := custody.RequireSigner(info, "funding account"); err != nil {
		return err
	}
	if err := custody.RequireOwner(info, custody.SystemProgramID, "funding account"); err != nil {
		return err
	}
	if len(info.Data) != 0 {
		return errors.Wrapf(errors.ErrInput, "funding account %s carries data", info.Key)
	}
	return nil
}

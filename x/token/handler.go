package token

import (
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
)

// RegisterRoutes registers the token program.
func RegisterRoutes(r custody.Registry) {
	r.Register(custody.TokenProgramID, Program{})
}

// Program implements the token program.
type Program struct{}

var _ custody.Program = Program{}

func (p Program) Process(ctx custody.Context, inv custody.Invocation) error {
	tag, raw, err := custody.SplitInstruction(inv.Data())
	if err != nil {
		return err
	}
	switch tag {
	case TagInitializeMint:
		var msg InitializeMintMsg
		if err := custody.UnmarshalMsg(raw, &msg); err != nil {
			return errors.Wrap(err, "initialize mint")
		}
		return p.initializeMint(ctx, inv, &msg)
	case TagInitializeAccount:
		var msg InitializeAccountMsg
		if err := custody.UnmarshalMsg(raw, &msg); err != nil {
			return errors.Wrap(err, "initialize account")
		}
		return p.initializeAccount(ctx, inv)
	case TagMintTo:
		var msg MintToMsg
		if err := custody.UnmarshalMsg(raw, &msg); err != nil {
			return errors.Wrap(err, "mint to")
		}
		return p.mintTo(ctx, inv, &msg)
	case TagTransfer:
		var msg TransferMsg
		if err := custody.UnmarshalMsg(raw, &msg); err != nil {
			return errors.Wrap(err, "transfer")
		}
		return p.transfer(ctx, inv, &msg)
	case TagCloseAccount:
		var msg CloseAccountMsg
		if err := custody.UnmarshalMsg(raw, &msg); err != nil {
			return errors.Wrap(err, "close account")
		}
		return p.closeAccount(ctx, inv)
	default:
		return errors.Wrapf(errors.ErrMsg, "unknown instruction %d", tag)
	}
}

func (Program) initializeMint(ctx custody.Context, inv custody.Invocation, msg *InitializeMintMsg) error {
	accounts, err := custody.RequireAccounts(inv, 1)
	if err != nil {
		return err
	}
	info := accounts[0]
	mint, err := LoadMint(info)
	if err != nil {
		return err
	}
	if mint.Initialized {
		return errors.Wrapf(ErrAlreadyInitialized, "mint %s", info.Key)
	}
	if err := rentExempt(ctx, info); err != nil {
		return err
	}

	mint.Authority = msg.Authority
	mint.Decimals = msg.Decimals
	mint.Initialized = true
	return save(info, mint)
}

func (Program) initializeAccount(ctx custody.Context, inv custody.Invocation) error {
	accounts, err := custody.RequireAccounts(inv, 3)
	if err != nil {
		return err
	}
	info, mintInfo, owner := accounts[0], accounts[1], accounts[2]
	acc, err := LoadAccount(info)
	if err != nil {
		return err
	}
	if acc.IsInitialized() {
		return errors.Wrapf(ErrAlreadyInitialized, "token account %s", info.Key)
	}
	mint, err := LoadMint(mintInfo)
	if err != nil {
		return err
	}
	if !mint.Initialized {
		return errors.Wrapf(ErrUninitialized, "mint %s", mintInfo.Key)
	}
	if err := rentExempt(ctx, info); err != nil {
		return err
	}

	acc.Mint = mintInfo.Key
	acc.Owner = owner.Key
	acc.State = StateInitialized
	return save(info, acc)
}

func (Program) mintTo(ctx custody.Context, inv custody.Invocation, msg *MintToMsg) error {
	accounts, err := custody.RequireAccounts(inv, 3)
	if err != nil {
		return err
	}
	mintInfo, destInfo, authority := accounts[0], accounts[1], accounts[2]
	mint, err := LoadMint(mintInfo)
	if err != nil {
		return err
	}
	if !mint.Initialized {
		return errors.Wrapf(ErrUninitialized, "mint %s", mintInfo.Key)
	}
	if authority.Key != mint.Authority {
		return errors.Wrapf(errors.ErrUnauthorized, "%s is not the mint authority", authority.Key)
	}
	if err := custody.RequireSigner(authority, "mint authority"); err != nil {
		return err
	}
	dest, err := LoadInitializedAccount(destInfo)
	if err != nil {
		return err
	}
	if dest.Mint != mintInfo.Key {
		return errors.Wrapf(ErrMintMismatch, "account %s holds %s", destInfo.Key, dest.Mint)
	}
	if mint.Supply > ^uint64(0)-msg.Amount {
		return errors.Wrap(errors.ErrOverflow, "supply")
	}

	mint.Supply += msg.Amount
	dest.Amount += msg.Amount
	if err := save(mintInfo, mint); err != nil {
		return err
	}
	return save(destInfo, dest)
}

func (Program) transfer(ctx custody.Context, inv custody.Invocation, msg *TransferMsg) error {
	accounts, err := custody.RequireAccounts(inv, 3)
	if err != nil {
		return err
	}
	srcInfo, destInfo, owner := accounts[0], accounts[1], accounts[2]
	src, err := LoadInitializedAccount(srcInfo)
	if err != nil {
		return err
	}
	dest, err := LoadInitializedAccount(destInfo)
	if err != nil {
		return err
	}
	if src.Mint != dest.Mint {
		return errors.Wrapf(ErrMintMismatch, "transfer of %s into %s account", src.Mint, dest.Mint)
	}
	if owner.Key != src.Owner {
		return errors.Wrapf(ErrOwnerMismatch, "%s does not own %s", owner.Key, srcInfo.Key)
	}
	if err := custody.RequireSigner(owner, "owner"); err != nil {
		return err
	}
	if src.Amount < msg.Amount {
		return errors.Wrapf(ErrInsufficientFunds, "balance %d, requested %d", src.Amount, msg.Amount)
	}
	if srcInfo.Key == destInfo.Key {
		return nil
	}
	if dest.Amount > ^uint64(0)-msg.Amount {
		return errors.Wrap(errors.ErrOverflow, "destination balance")
	}

	src.Amount -= msg.Amount
	dest.Amount += msg.Amount
	if err := save(srcInfo, src); err != nil {
		return err
	}
	if err := save(destInfo, dest); err != nil {
		return err
	}
	custody.GetLogger(ctx).Debug("tokens transferred",
		"mint", src.Mint, "from", srcInfo.Key, "to", destInfo.Key, "amount", msg.Amount)
	return nil
}

func (Program) closeAccount(ctx custody.Context, inv custody.Invocation) error {
	accounts, err := custody.RequireAccounts(inv, 3)
	if err != nil {
		return err
	}
	info, dest, owner := accounts[0], accounts[1], accounts[2]
	acc, err := LoadInitializedAccount(info)
	if err != nil {
		return err
	}
	if owner.Key != acc.Owner {
		return errors.Wrapf(ErrOwnerMismatch, "%s does not own %s", owner.Key, info.Key)
	}
	if err := custody.RequireSigner(owner, "owner"); err != nil {
		return err
	}
	if acc.Amount != 0 {
		return errors.Wrapf(ErrNonZeroBalance, "%d tokens left", acc.Amount)
	}
	if info.Key == dest.Key {
		return errors.Wrap(errors.ErrInput, "cannot close into itself")
	}

	if err := dest.Credit(info.Lamports); err != nil {
		return err
	}
	info.Lamports = 0
	info.Data = nil
	info.Owner = custody.SystemProgramID
	return nil
}

// rentExempt fails if the account does not hold enough lamports to stay
// alive.
func rentExempt(ctx custody.Context, info *custody.AccountInfo) error {
	rent, ok := custody.GetRent(ctx)
	if !ok {
		return nil
	}
	if min := rent.MinimumBalance(len(info.Data)); info.Lamports < min {
		return errors.Wrapf(errors.ErrAmount, "account %s holds %d lamports, rent exemption requires %d", info.Key, info.Lamports, min)
	}
	return nil
}

package pool

import (
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
	"github.com/iov-one/custody/x/escrow"
	"github.com/iov-one/custody/x/system"
	"github.com/iov-one/custody/x/token"
)

// RegisterRoutes registers the pool program.
func RegisterRoutes(r custody.Registry) {
	r.Register(ProgramID, Program{})
}

// Program dispatches pool instructions to their handlers.
type Program struct{}

var _ custody.Program = Program{}

func (Program) Process(ctx custody.Context, inv custody.Invocation) error {
	tag, raw, err := custody.SplitInstruction(inv.Data())
	if err != nil {
		return err
	}
	switch tag {
	case TagInitializePool:
		return InitializePoolHandler{}.Deliver(ctx, inv, raw)
	case TagInitializeRecord:
		return InitializeRecordHandler{}.Deliver(ctx, inv, raw)
	case TagReleaseRecord:
		return ReleaseRecordHandler{}.Deliver(ctx, inv, raw)
	case TagSetPoolActive:
		return SetPoolActiveHandler{}.Deliver(ctx, inv, raw)
	default:
		return errors.Wrapf(errors.ErrMsg, "unknown instruction %d", tag)
	}
}

func rent(ctx custody.Context) custody.Rent {
	if r, ok := custody.GetRent(ctx); ok {
		return r
	}
	return custody.DefaultRent
}

// InitializePoolHandler creates pools.
type InitializePoolHandler struct{}

func (h InitializePoolHandler) Deliver(ctx custody.Context, inv custody.Invocation, raw []byte) error {
	pool, accounts, err := h.validate(ctx, inv, raw)
	if err != nil {
		return err
	}
	authority, poolInfo := accounts[0], accounts[1]

	r := rent(ctx)
	create := system.NewCreateAccountInstruction(authority.Key, poolInfo.Key, r.MinimumBalance(PoolLen), PoolLen, ProgramID)
	if err := inv.Invoke(ctx, create, pool.SignerSeeds()); err != nil {
		return errors.Wrap(err, "create pool account")
	}
	if err := save(poolInfo, pool); err != nil {
		return err
	}

	if pool.Asset.IsToken() {
		mint, vault := accounts[2], accounts[3]
		_, bump, err := FindPoolTokenAddress(poolInfo.Key)
		if err != nil {
			return err
		}
		create := system.NewCreateAccountInstruction(authority.Key, vault.Key,
			r.MinimumBalance(token.AccountLen), token.AccountLen, custody.TokenProgramID)
		if err := inv.Invoke(ctx, create, append(poolTokenSeeds(poolInfo.Key), []byte{bump})); err != nil {
			return errors.Wrap(err, "create pool token account")
		}
		init := token.NewInitializeAccountInstruction(vault.Key, mint.Key, poolInfo.Key)
		if err := inv.Invoke(ctx, init); err != nil {
			return errors.Wrap(err, "initialize pool token account")
		}
	}

	custody.GetLogger(ctx).Info("pool initialized",
		"pool", poolInfo.Key, "asset", pool.Asset, "authority", pool.Authority)
	return nil
}

func (InitializePoolHandler) validate(ctx custody.Context, inv custody.Invocation, raw []byte) (*Pool, []*custody.AccountInfo, error) {
	var msg InitializePoolMsg
	if err := custody.UnmarshalMsg(raw, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "initialize pool")
	}
	n := 2
	if msg.Asset.IsToken() {
		n = 4
	}
	accounts, err := custody.RequireAccounts(inv, n)
	if err != nil {
		return nil, nil, err
	}
	authority, poolInfo := accounts[0], accounts[1]
	if err := custody.RequireSigner(authority, "authority"); err != nil {
		return nil, nil, err
	}
	addr, bump, err := FindPoolAddress(msg.Asset)
	if err != nil {
		return nil, nil, err
	}
	if poolInfo.Key != addr {
		return nil, nil, errors.Wrapf(ErrInvalidAccount, "want pool %s, got %s", addr, poolInfo.Key)
	}

	if msg.Asset.IsToken() {
		mintInfo, vault := accounts[2], accounts[3]
		if mintInfo.Key != msg.Asset.Mint {
			return nil, nil, errors.Wrapf(escrow.ErrTokenMintMismatch, "mint account %s", mintInfo.Key)
		}
		mint, err := token.LoadMint(mintInfo)
		if err != nil {
			return nil, nil, err
		}
		if !mint.Initialized {
			return nil, nil, errors.Wrapf(token.ErrUninitialized, "mint %s", mintInfo.Key)
		}
		want, _, err := FindPoolTokenAddress(addr)
		if err != nil {
			return nil, nil, err
		}
		if vault.Key != want {
			return nil, nil, errors.Wrapf(ErrInvalidAccount, "want pool token account %s, got %s", want, vault.Key)
		}
	}

	pool := &Pool{
		Authority: authority.Key,
		Asset:     msg.Asset,
		Active:    true,
		Bump:      bump,
	}
	return pool, accounts, nil
}

// InitializeRecordHandler creates records.
type InitializeRecordHandler struct{}

type recordAccounts struct {
	buyer       *custody.AccountInfo
	pool        *custody.AccountInfo
	record      *custody.AccountInfo
	buyerTokens *custody.AccountInfo
	vault       *custody.AccountInfo
}

func (h InitializeRecordHandler) Deliver(ctx custody.Context, inv custody.Invocation, raw []byte) error {
	pool, record, acc, err := h.validate(ctx, inv, raw)
	if err != nil {
		return err
	}

	create := system.NewCreateAccountInstruction(acc.buyer.Key, acc.record.Key,
		rent(ctx).MinimumBalance(RecordLen), RecordLen, ProgramID)
	if err := inv.Invoke(ctx, create, record.SignerSeeds()); err != nil {
		return errors.Wrap(err, "create record account")
	}
	if err := save(acc.record, record); err != nil {
		return err
	}

	var fund custody.Instruction
	if pool.Asset.IsToken() {
		fund = token.NewTransferInstruction(acc.buyerTokens.Key, acc.vault.Key, acc.buyer.Key, record.Amount)
	} else {
		fund = system.NewTransferInstruction(acc.buyer.Key, acc.pool.Key, record.Amount)
	}
	if err := inv.Invoke(ctx, fund); err != nil {
		return errors.Wrap(err, "fund pool")
	}

	pool.Total += record.Amount
	pool.Transactions++
	if err := save(acc.pool, pool); err != nil {
		return err
	}
	custody.GetLogger(ctx).Info("record initialized",
		"record", acc.record.Key,
		"pool", acc.pool.Key,
		"buyer", record.Buyer,
		"seller", record.Seller,
		"amount", record.Amount)
	return nil
}

func (InitializeRecordHandler) validate(ctx custody.Context, inv custody.Invocation, raw []byte) (*Pool, *Record, *recordAccounts, error) {
	var msg InitializeRecordMsg
	if err := custody.UnmarshalMsg(raw, &msg); err != nil {
		return nil, nil, nil, errors.Wrap(err, "initialize record")
	}
	accounts, err := custody.RequireAccounts(inv, 4)
	if err != nil {
		return nil, nil, nil, err
	}
	seller := accounts[1]
	acc := &recordAccounts{buyer: accounts[0], pool: accounts[2], record: accounts[3]}
	if err := custody.RequireSigner(acc.buyer, "buyer"); err != nil {
		return nil, nil, nil, err
	}
	pool, err := LoadPool(acc.pool)
	if err != nil {
		return nil, nil, nil, err
	}
	if !pool.Active {
		return nil, nil, nil, errors.Wrapf(ErrPoolInactive, "pool %s", acc.pool.Key)
	}

	var unlock custody.UnixTime
	now := custody.BlockTime(ctx)
	if msg.UnlockHours > 0 {
		if unlock, err = now.AddHours(msg.UnlockHours); err != nil {
			return nil, nil, nil, err
		}
	}
	record := &Record{
		Pool:   acc.pool.Key,
		Status: StatusPending,
		Terms: escrow.Terms{
			Buyer:              acc.buyer.Key,
			Seller:             seller.Key,
			Moderator:          msg.Moderator,
			RequiredSignatures: msg.RequiredSignatures,
			UnlockTime:         unlock,
			UniqueID:           msg.UniqueID,
			Amount:             msg.Amount,
		},
		CreatedAt: now,
	}
	if err := record.Terms.Validate(false); err != nil {
		return nil, nil, nil, err
	}
	addr, bump, err := FindRecordAddress(record.Buyer, record.Seller, record.HasModerator(), record.UniqueID)
	if err != nil {
		return nil, nil, nil, err
	}
	if acc.record.Key != addr {
		return nil, nil, nil, errors.Wrapf(ErrInvalidAccount, "want record %s, got %s", addr, acc.record.Key)
	}
	record.Bump = bump

	if pool.Total > ^uint64(0)-msg.Amount {
		return nil, nil, nil, errors.Wrapf(escrow.ErrAmountOverflow, "pool total %d + %d", pool.Total, msg.Amount)
	}
	if pool.Transactions == ^uint64(0) {
		return nil, nil, nil, errors.Wrap(escrow.ErrAmountOverflow, "pool transactions")
	}

	if pool.Asset.IsToken() {
		if accounts, err = custody.RequireAccounts(inv, 6); err != nil {
			return nil, nil, nil, err
		}
		acc.buyerTokens, acc.vault = accounts[4], accounts[5]
		source, err := token.LoadInitializedAccount(acc.buyerTokens)
		if err != nil {
			return nil, nil, nil, err
		}
		if source.Mint != pool.Asset.Mint {
			return nil, nil, nil, errors.Wrapf(escrow.ErrTokenMintMismatch, "buyer token account holds %s", source.Mint)
		}
		if err := checkVault(acc.pool.Key, acc.vault); err != nil {
			return nil, nil, nil, err
		}
	}
	return pool, record, acc, nil
}

func checkVault(pool custody.Address, vault *custody.AccountInfo) error {
	want, _, err := FindPoolTokenAddress(pool)
	if err != nil {
		return err
	}
	if vault.Key != want {
		return errors.Wrapf(ErrInvalidAccount, "want pool token account %s, got %s", want, vault.Key)
	}
	return nil
}

// ReleaseRecordHandler pays out records from the pool.
type ReleaseRecordHandler struct{}

type releaseAccounts struct {
	pool        *custody.AccountInfo
	record      *custody.AccountInfo
	buyer       *custody.AccountInfo
	vault       *custody.AccountInfo
	buyerTokens *custody.AccountInfo
	recipients  []*custody.AccountInfo
}

// Deliver completes the record and reduces the pool total before any funds
// leave the pool.
func (h ReleaseRecordHandler) Deliver(ctx custody.Context, inv custody.Invocation, raw []byte) error {
	msg, pool, record, total, acc, err := h.validate(ctx, inv, raw)
	if err != nil {
		return err
	}

	amount := record.Amount
	record.Amount = 0
	record.Status = StatusCompleted
	record.CompletedAt = custody.BlockTime(ctx)
	if err := save(acc.record, record); err != nil {
		return err
	}
	pool.Total -= amount
	if err := save(acc.pool, pool); err != nil {
		return err
	}

	remainder := amount - total
	if pool.Asset.IsToken() {
		seeds := pool.SignerSeeds()
		for i, t := range msg.Targets {
			ix := token.NewTransferInstruction(acc.vault.Key, acc.recipients[i].Key, acc.pool.Key, t.Amount)
			if err := inv.Invoke(ctx, ix, seeds); err != nil {
				return errors.Wrapf(err, "target %d", i)
			}
		}
		if remainder > 0 {
			ix := token.NewTransferInstruction(acc.vault.Key, acc.buyerTokens.Key, acc.pool.Key, remainder)
			if err := inv.Invoke(ctx, ix, seeds); err != nil {
				return errors.Wrap(err, "remainder")
			}
		}
	} else {
		for i, t := range msg.Targets {
			if err := move(acc.pool, acc.recipients[i], t.Amount); err != nil {
				return errors.Wrapf(err, "target %d", i)
			}
		}
		if err := move(acc.pool, acc.buyer, remainder); err != nil {
			return errors.Wrap(err, "remainder")
		}
	}

	custody.GetLogger(ctx).Info("record released",
		"record", acc.record.Key,
		"pool", acc.pool.Key,
		"amount", amount,
		"targets", len(msg.Targets))
	return nil
}

func move(from, to *custody.AccountInfo, amount uint64) error {
	if err := from.Debit(amount); err != nil {
		return errors.Wrap(ErrInsufficientPoolBalance, err.Error())
	}
	return to.Credit(amount)
}

func (ReleaseRecordHandler) validate(ctx custody.Context, inv custody.Invocation, raw []byte) (*escrow.ReleaseMsg, *Pool, *Record, uint64, *releaseAccounts, error) {
	var msg escrow.ReleaseMsg
	if err := custody.UnmarshalMsg(raw, &msg); err != nil {
		return nil, nil, nil, 0, nil, errors.Wrap(err, "release record")
	}
	accounts, err := custody.RequireAccounts(inv, 4)
	if err != nil {
		return nil, nil, nil, 0, nil, err
	}
	initiator := accounts[0]
	acc := &releaseAccounts{pool: accounts[1], record: accounts[2], buyer: accounts[3]}

	record, err := LoadRecord(acc.record)
	if err != nil {
		return nil, nil, nil, 0, nil, err
	}
	if record.Status != StatusPending {
		return nil, nil, nil, 0, nil, errors.Wrapf(ErrInvalidRecordStatus, "record is %s", record.Status)
	}
	if record.Pool != acc.pool.Key {
		return nil, nil, nil, 0, nil, errors.Wrapf(ErrInvalidAccount, "record belongs to pool %s", record.Pool)
	}
	pool, err := LoadPool(acc.pool)
	if err != nil {
		return nil, nil, nil, 0, nil, err
	}
	if !pool.Active {
		return nil, nil, nil, 0, nil, errors.Wrapf(ErrPoolInactive, "pool %s", acc.pool.Key)
	}
	if pool.Total < record.Amount {
		return nil, nil, nil, 0, nil, errors.Wrapf(ErrInsufficientPoolBalance, "pool holds %d, record %d", pool.Total, record.Amount)
	}
	if err := custody.RequireSigner(initiator, "initiator"); err != nil {
		return nil, nil, nil, 0, nil, err
	}
	if !record.IsParty(initiator.Key) {
		return nil, nil, nil, 0, nil, errors.Wrapf(escrow.ErrInvalidSigner, "initiator %s", initiator.Key)
	}
	if acc.buyer.Key != record.Buyer {
		return nil, nil, nil, 0, nil, errors.Wrapf(ErrInvalidAccount, "buyer account %s", acc.buyer.Key)
	}

	base := 4
	if pool.Asset.IsToken() {
		base = 6
	}
	if accounts, err = custody.RequireAccounts(inv, base+len(msg.Targets)); err != nil {
		return nil, nil, nil, 0, nil, err
	}
	acc.recipients = accounts[base : base+len(msg.Targets)]

	conf, err := loadConfiguration(ctx)
	if err != nil {
		return nil, nil, nil, 0, nil, err
	}
	total, err := escrow.ValidatePayments(msg.Targets, record.Amount, conf.ExactTotal)
	if err != nil {
		return nil, nil, nil, 0, nil, err
	}
	message, err := ReleaseMessage(acc.record.Key, record.UniqueID, msg.Targets)
	if err != nil {
		return nil, nil, nil, 0, nil, err
	}
	signers, err := escrow.VerifySignatures(ctx, message, msg.Signatures)
	if err != nil {
		return nil, nil, nil, 0, nil, err
	}
	if err := escrow.Authorize(record, signers, custody.BlockTime(ctx)); err != nil {
		return nil, nil, nil, 0, nil, err
	}

	if pool.Asset.IsToken() {
		acc.vault, acc.buyerTokens = accounts[4], accounts[5]
		if err := checkVault(acc.pool.Key, acc.vault); err != nil {
			return nil, nil, nil, 0, nil, err
		}
		if err := checkTokenAccount(acc.buyerTokens, pool.Asset.Mint, "buyer token account"); err != nil {
			return nil, nil, nil, 0, nil, err
		}
		for _, r := range acc.recipients {
			if err := checkTokenAccount(r, pool.Asset.Mint, "recipient token account"); err != nil {
				return nil, nil, nil, 0, nil, err
			}
		}
	}
	for i, t := range msg.Targets {
		r := acc.recipients[i]
		if r.Key != t.Recipient {
			return nil, nil, nil, 0, nil, errors.Wrapf(escrow.ErrInvalidRecipient, "target %d account %s, want %s", i, r.Key, t.Recipient)
		}
		if r.Key == acc.pool.Key || r.Key == acc.record.Key || (acc.vault != nil && r.Key == acc.vault.Key) {
			return nil, nil, nil, 0, nil, errors.Wrapf(escrow.ErrInvalidRecipient, "target %d pays a pool account", i)
		}
	}
	return &msg, pool, record, total, acc, nil
}

func checkTokenAccount(info *custody.AccountInfo, mint custody.Address, name string) error {
	a, err := token.LoadInitializedAccount(info)
	if err != nil {
		return errors.Wrap(err, name)
	}
	if a.Mint != mint {
		return errors.Wrapf(escrow.ErrTokenMintMismatch, "%s %s holds %s", name, info.Key, a.Mint)
	}
	return nil
}

// SetPoolActiveHandler lets the authority pause and resume a pool.
type SetPoolActiveHandler struct{}

func (SetPoolActiveHandler) Deliver(ctx custody.Context, inv custody.Invocation, raw []byte) error {
	var msg SetPoolActiveMsg
	if err := custody.UnmarshalMsg(raw, &msg); err != nil {
		return errors.Wrap(err, "set pool active")
	}
	accounts, err := custody.RequireAccounts(inv, 2)
	if err != nil {
		return err
	}
	authority, poolInfo := accounts[0], accounts[1]
	pool, err := LoadPool(poolInfo)
	if err != nil {
		return err
	}
	if err := custody.RequireSigner(authority, "authority"); err != nil {
		return err
	}
	if authority.Key != pool.Authority {
		return errors.Wrapf(errors.ErrUnauthorized, "%s is not the pool authority", authority.Key)
	}
	pool.Active = msg.Active
	if err := save(poolInfo, pool); err != nil {
		return err
	}
	custody.GetLogger(ctx).Info("pool state changed", "pool", poolInfo.Key, "active", msg.Active)
	return nil
}

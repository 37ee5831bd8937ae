package escrow

import (
	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
	"github.com/iov-one/custody/x/system"
	"github.com/iov-one/custody/x/token"
)

// RegisterRoutes registers the escrow program.
func RegisterRoutes(r custody.Registry) {
	r.Register(ProgramID, Program{})
}

// Program dispatches escrow instructions to their handlers.
type Program struct{}

var _ custody.Program = Program{}

func (Program) Process(ctx custody.Context, inv custody.Invocation) error {
	tag, raw, err := custody.SplitInstruction(inv.Data())
	if err != nil {
		return err
	}
	switch tag {
	case TagInitialize:
		return InitializeHandler{}.Deliver(ctx, inv, raw)
	case TagDeposit:
		return DepositHandler{}.Deliver(ctx, inv, raw)
	case TagRelease:
		return ReleaseHandler{}.Deliver(ctx, inv, raw)
	default:
		return errors.Wrapf(errors.ErrMsg, "unknown instruction %d", tag)
	}
}

// InitializeHandler creates escrow accounts.
type InitializeHandler struct{}

type initializeAccounts struct {
	buyer  *custody.AccountInfo
	escrow *custody.AccountInfo
	seller *custody.AccountInfo
	mint   *custody.AccountInfo
	vault  *custody.AccountInfo
}

// Deliver allocates the escrow account at its derived address, paid by the
// buyer. Token escrows get a token account owned by the escrow.
func (h InitializeHandler) Deliver(ctx custody.Context, inv custody.Invocation, raw []byte) error {
	escrow, acc, err := h.validate(ctx, inv, raw)
	if err != nil {
		return err
	}

	rent, ok := custody.GetRent(ctx)
	if !ok {
		rent = custody.DefaultRent
	}
	create := system.NewCreateAccountInstruction(acc.buyer.Key, acc.escrow.Key,
		rent.MinimumBalance(AccountLen), AccountLen, ProgramID)
	if err := inv.Invoke(ctx, create, escrow.SignerSeeds()); err != nil {
		return errors.Wrap(err, "create escrow account")
	}
	if err := SaveEscrow(acc.escrow, escrow); err != nil {
		return err
	}

	if escrow.Asset.IsToken() {
		_, bump, err := FindTokenAccountAddress(acc.escrow.Key)
		if err != nil {
			return err
		}
		create := system.NewCreateAccountInstruction(acc.buyer.Key, acc.vault.Key,
			rent.MinimumBalance(token.AccountLen), token.AccountLen, custody.TokenProgramID)
		seeds := append(tokenAccountSeeds(acc.escrow.Key), []byte{bump})
		if err := inv.Invoke(ctx, create, seeds); err != nil {
			return errors.Wrap(err, "create escrow token account")
		}
		init := token.NewInitializeAccountInstruction(acc.vault.Key, acc.mint.Key, acc.escrow.Key)
		if err := inv.Invoke(ctx, init); err != nil {
			return errors.Wrap(err, "initialize escrow token account")
		}
	}

	custody.GetLogger(ctx).Info("escrow initialized",
		"escrow", acc.escrow.Key,
		"buyer", escrow.Buyer,
		"seller", escrow.Seller,
		"asset", escrow.Asset,
		"required", escrow.RequiredSignatures,
		"unlock", escrow.UnlockTime)
	return nil
}

func (InitializeHandler) validate(ctx custody.Context, inv custody.Invocation, raw []byte) (*Escrow, *initializeAccounts, error) {
	var msg InitializeMsg
	if err := custody.UnmarshalMsg(raw, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "initialize")
	}
	conf, err := loadConfiguration(ctx)
	if err != nil {
		return nil, nil, err
	}

	n := 3
	if msg.Asset.IsToken() {
		n = 5
	}
	accounts, err := custody.RequireAccounts(inv, n)
	if err != nil {
		return nil, nil, err
	}
	acc := &initializeAccounts{buyer: accounts[0], escrow: accounts[1], seller: accounts[2]}
	if err := custody.RequireSigner(acc.buyer, "buyer"); err != nil {
		return nil, nil, err
	}

	var unlock custody.UnixTime
	if msg.UnlockHours > 0 {
		if unlock, err = custody.BlockTime(ctx).AddHours(msg.UnlockHours); err != nil {
			return nil, nil, err
		}
	}
	escrow := &Escrow{
		State: StateActive,
		Terms: Terms{
			Buyer:              acc.buyer.Key,
			Seller:             acc.seller.Key,
			Moderator:          msg.Moderator,
			RequiredSignatures: msg.RequiredSignatures,
			UnlockTime:         unlock,
			UniqueID:           msg.UniqueID,
		},
		Asset: msg.Asset,
	}
	if err := escrow.Terms.Validate(conf.AllowTimelockOnly); err != nil {
		return nil, nil, err
	}

	addr, bump, err := FindAddress(escrow.Buyer, escrow.Seller, escrow.HasModerator(), escrow.UniqueID)
	if err != nil {
		return nil, nil, err
	}
	if acc.escrow.Key != addr {
		return nil, nil, errors.Wrapf(ErrInvalidAccount, "want escrow %s, got %s", addr, acc.escrow.Key)
	}
	escrow.Bump = bump

	if msg.Asset.IsToken() {
		acc.mint, acc.vault = accounts[3], accounts[4]
		if acc.mint.Key != msg.Asset.Mint {
			return nil, nil, errors.Wrapf(ErrTokenMintMismatch, "mint account %s", acc.mint.Key)
		}
		mint, err := token.LoadMint(acc.mint)
		if err != nil {
			return nil, nil, err
		}
		if !mint.Initialized {
			return nil, nil, errors.Wrapf(token.ErrUninitialized, "mint %s", acc.mint.Key)
		}
		vault, _, err := FindTokenAccountAddress(addr)
		if err != nil {
			return nil, nil, err
		}
		if acc.vault.Key != vault {
			return nil, nil, errors.Wrapf(ErrInvalidAccount, "want escrow token account %s, got %s", vault, acc.vault.Key)
		}
	}
	return escrow, acc, nil
}

// DepositHandler adds funds to escrows.
type DepositHandler struct{}

// Deliver moves the funds from the depositor and increases the escrowed
// amount.
func (h DepositHandler) Deliver(ctx custody.Context, inv custody.Invocation, raw []byte) error {
	msg, escrow, accounts, err := h.validate(ctx, inv, raw)
	if err != nil {
		return err
	}
	depositor, escrowInfo := accounts[0], accounts[1]

	if escrow.Asset.IsToken() {
		ix := token.NewTransferInstruction(accounts[2].Key, accounts[3].Key, depositor.Key, msg.Amount)
		if err := inv.Invoke(ctx, ix); err != nil {
			return errors.Wrap(err, "token deposit")
		}
	} else {
		ix := system.NewTransferInstruction(depositor.Key, escrowInfo.Key, msg.Amount)
		if err := inv.Invoke(ctx, ix); err != nil {
			return errors.Wrap(err, "deposit")
		}
	}

	escrow.Amount += msg.Amount
	if err := SaveEscrow(escrowInfo, escrow); err != nil {
		return err
	}
	custody.GetLogger(ctx).Info("escrow deposit",
		"escrow", escrowInfo.Key,
		"depositor", depositor.Key,
		"amount", msg.Amount,
		"total", escrow.Amount)
	return nil
}

func (DepositHandler) validate(ctx custody.Context, inv custody.Invocation, raw []byte) (*DepositMsg, *Escrow, []*custody.AccountInfo, error) {
	var msg DepositMsg
	if err := custody.UnmarshalMsg(raw, &msg); err != nil {
		return nil, nil, nil, errors.Wrap(err, "deposit")
	}
	accounts, err := custody.RequireAccounts(inv, 2)
	if err != nil {
		return nil, nil, nil, err
	}
	depositor, escrowInfo := accounts[0], accounts[1]
	escrow, err := loadActive(escrowInfo)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := custody.RequireSigner(depositor, "depositor"); err != nil {
		return nil, nil, nil, err
	}
	if !escrow.IsParty(depositor.Key) {
		return nil, nil, nil, errors.Wrapf(ErrInvalidSigner, "depositor %s", depositor.Key)
	}
	if escrow.Amount > ^uint64(0)-msg.Amount {
		return nil, nil, nil, errors.Wrapf(ErrAmountOverflow, "%d + %d", escrow.Amount, msg.Amount)
	}

	if escrow.Asset.IsToken() {
		if accounts, err = custody.RequireAccounts(inv, 4); err != nil {
			return nil, nil, nil, err
		}
		source, err := token.LoadInitializedAccount(accounts[2])
		if err != nil {
			return nil, nil, nil, err
		}
		if source.Mint != escrow.Asset.Mint {
			return nil, nil, nil, errors.Wrapf(ErrTokenMintMismatch, "source holds %s", source.Mint)
		}
		vault, _, err := FindTokenAccountAddress(escrowInfo.Key)
		if err != nil {
			return nil, nil, nil, err
		}
		if accounts[3].Key != vault {
			return nil, nil, nil, errors.Wrapf(ErrInvalidAccount, "want escrow token account %s, got %s", vault, accounts[3].Key)
		}
	}
	return &msg, escrow, accounts, nil
}

// ReleaseHandler pays out escrows.
type ReleaseHandler struct{}

type releaseAccountSet struct {
	escrow      *custody.AccountInfo
	buyer       *custody.AccountInfo
	vault       *custody.AccountInfo
	buyerTokens *custody.AccountInfo
	recipients  []*custody.AccountInfo
}

// Deliver verifies the release authorization, marks the escrow completed and
// only then transfers the funds and closes the accounts.
func (h ReleaseHandler) Deliver(ctx custody.Context, inv custody.Invocation, raw []byte) error {
	msg, escrow, acc, err := h.validate(ctx, inv, raw)
	if err != nil {
		return err
	}

	amount := escrow.Amount
	escrow.Amount = 0
	escrow.State = StateCompleted
	if err := SaveEscrow(acc.escrow, escrow); err != nil {
		return err
	}

	if escrow.Asset.IsToken() {
		err = payTokens(ctx, inv, escrow, acc, msg.Targets)
	} else {
		err = payLamports(acc, msg.Targets)
	}
	if err != nil {
		return err
	}

	// Close the escrow account, all remaining lamports return to the buyer.
	if err := acc.buyer.Credit(acc.escrow.Lamports); err != nil {
		return err
	}
	acc.escrow.Lamports = 0
	acc.escrow.Data = nil
	acc.escrow.Owner = custody.SystemProgramID

	custody.GetLogger(ctx).Info("escrow released",
		"escrow", acc.escrow.Key,
		"asset", escrow.Asset,
		"amount", amount,
		"targets", len(msg.Targets))
	return nil
}

func payLamports(acc *releaseAccountSet, targets []PaymentTarget) error {
	for i, t := range targets {
		if err := acc.escrow.Debit(t.Amount); err != nil {
			return errors.Wrapf(ErrInsufficientFunds, "target %d: %s", i, err)
		}
		if err := acc.recipients[i].Credit(t.Amount); err != nil {
			return err
		}
	}
	return nil
}

func payTokens(ctx custody.Context, inv custody.Invocation, escrow *Escrow, acc *releaseAccountSet, targets []PaymentTarget) error {
	seeds := escrow.SignerSeeds()
	for i, t := range targets {
		ix := token.NewTransferInstruction(acc.vault.Key, acc.recipients[i].Key, acc.escrow.Key, t.Amount)
		if err := inv.Invoke(ctx, ix, seeds); err != nil {
			return errors.Wrapf(err, "target %d", i)
		}
	}

	vault, err := token.LoadInitializedAccount(acc.vault)
	if err != nil {
		return err
	}
	if vault.Amount > 0 {
		ix := token.NewTransferInstruction(acc.vault.Key, acc.buyerTokens.Key, acc.escrow.Key, vault.Amount)
		if err := inv.Invoke(ctx, ix, seeds); err != nil {
			return errors.Wrap(err, "remainder")
		}
	}
	ix := token.NewCloseAccountInstruction(acc.vault.Key, acc.buyer.Key, acc.escrow.Key)
	if err := inv.Invoke(ctx, ix, seeds); err != nil {
		return errors.Wrap(err, "close escrow token account")
	}
	return nil
}

func (ReleaseHandler) validate(ctx custody.Context, inv custody.Invocation, raw []byte) (*ReleaseMsg, *Escrow, *releaseAccountSet, error) {
	var msg ReleaseMsg
	if err := custody.UnmarshalMsg(raw, &msg); err != nil {
		return nil, nil, nil, errors.Wrap(err, "release")
	}
	accounts, err := custody.RequireAccounts(inv, 2)
	if err != nil {
		return nil, nil, nil, err
	}
	initiator, escrowInfo := accounts[0], accounts[1]
	escrow, err := loadActive(escrowInfo)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := custody.RequireSigner(initiator, "initiator"); err != nil {
		return nil, nil, nil, err
	}
	if !escrow.IsParty(initiator.Key) {
		return nil, nil, nil, errors.Wrapf(ErrInvalidSigner, "initiator %s", initiator.Key)
	}

	base := releaseAccounts(escrow.Asset)
	if accounts, err = custody.RequireAccounts(inv, base+len(msg.Targets)); err != nil {
		return nil, nil, nil, err
	}
	acc := &releaseAccountSet{
		escrow:     escrowInfo,
		buyer:      accounts[2],
		recipients: accounts[base : base+len(msg.Targets)],
	}
	if acc.buyer.Key != escrow.Buyer {
		return nil, nil, nil, errors.Wrapf(ErrInvalidAccount, "buyer account %s", acc.buyer.Key)
	}

	conf, err := loadConfiguration(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := ValidatePayments(msg.Targets, escrow.Amount, conf.ExactTotal); err != nil {
		return nil, nil, nil, err
	}
	message, err := ReleaseMessage(escrow.UniqueID, msg.Targets)
	if err != nil {
		return nil, nil, nil, err
	}
	signers, err := VerifySignatures(ctx, message, msg.Signatures)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := Authorize(escrow, signers, custody.BlockTime(ctx)); err != nil {
		return nil, nil, nil, err
	}

	if escrow.Asset.IsToken() {
		acc.vault, acc.buyerTokens = accounts[3], accounts[4]
		if err := checkTokenAccounts(escrow, acc); err != nil {
			return nil, nil, nil, err
		}
	}
	for i, t := range msg.Targets {
		r := acc.recipients[i]
		if r.Key != t.Recipient {
			return nil, nil, nil, errors.Wrapf(ErrInvalidRecipient, "target %d account %s, want %s", i, r.Key, t.Recipient)
		}
		if r.Key == escrowInfo.Key || (acc.vault != nil && r.Key == acc.vault.Key) {
			return nil, nil, nil, errors.Wrapf(ErrInvalidRecipient, "target %d pays the escrow", i)
		}
	}
	return &msg, escrow, acc, nil
}

func checkTokenAccounts(escrow *Escrow, acc *releaseAccountSet) error {
	vault, _, err := FindTokenAccountAddress(acc.escrow.Key)
	if err != nil {
		return err
	}
	if acc.vault.Key != vault {
		return errors.Wrapf(ErrInvalidAccount, "want escrow token account %s, got %s", vault, acc.vault.Key)
	}
	buyerTokens, err := token.LoadInitializedAccount(acc.buyerTokens)
	if err != nil {
		return errors.Wrap(err, "buyer token account")
	}
	if buyerTokens.Mint != escrow.Asset.Mint {
		return errors.Wrapf(ErrTokenMintMismatch, "buyer token account holds %s", buyerTokens.Mint)
	}
	if buyerTokens.Owner != escrow.Buyer {
		return errors.Wrapf(ErrInvalidAccount, "buyer token account owned by %s", buyerTokens.Owner)
	}
	for i, r := range acc.recipients {
		t, err := token.LoadInitializedAccount(r)
		if err != nil {
			return errors.Wrapf(err, "target %d", i)
		}
		if t.Mint != escrow.Asset.Mint {
			return errors.Wrapf(ErrTokenMintMismatch, "target %d holds %s", i, t.Mint)
		}
	}
	return nil
}

// loadActive loads the escrow and ensures it accepts deposits and releases.
func loadActive(info *custody.AccountInfo) (*Escrow, error) {
	escrow, err := LoadEscrow(info)
	if err != nil {
		return nil, err
	}
	switch escrow.State {
	case StateActive:
	case StateCompleted:
		return nil, errors.Wrapf(ErrAlreadyCompleted, "escrow %s", info.Key)
	default:
		return nil, errors.Wrapf(ErrNotInitialized, "escrow %s is %s", info.Key, escrow.State)
	}
	addr, err := solana.CreateProgramAddress(escrow.SignerSeeds(), ProgramID)
	if err != nil || addr != info.Key {
		return nil, errors.Wrapf(ErrInvalidAccount, "escrow %s is not derived from its terms", info.Key)
	}
	return escrow, nil
}

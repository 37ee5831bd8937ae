package pool

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
	"github.com/iov-one/custody/x/escrow"
)

// ProgramID is the identifier of the pool program.
var ProgramID = custody.ProgramAddress("pool")

// PoolLen is the data size of a pool account.
const PoolLen = 8 + // discriminator
	32 + // authority
	33 + // asset
	1 + // active
	8 + // total
	8 + // transactions
	1 // bump

// RecordLen is the data size of a record account.
const RecordLen = 8 + // discriminator
	32 + // pool
	1 + // status
	32 + // buyer
	32 + // seller
	33 + // moderator
	8 + // amount
	8 + // unlock time
	1 + // required signatures
	escrow.UniqueIDLen +
	8 + // created at
	8 + // completed at
	1 // bump

var (
	poolDiscriminator   = custody.AccountDiscriminator("FundPool")
	recordDiscriminator = custody.AccountDiscriminator("EscrowRecord")
)

// Pool holds the funds of all records of one asset.
type Pool struct {
	Authority custody.Address
	Asset     escrow.Asset
	Active    bool
	// Total is the amount owed to pending records.
	Total        uint64
	Transactions uint64
	Bump         uint8
}

func (p *Pool) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(poolDiscriminator[:], false); err != nil {
		return err
	}
	if err := custody.WriteAddress(enc, p.Authority); err != nil {
		return err
	}
	if err := p.Asset.MarshalWithEncoder(enc); err != nil {
		return err
	}
	if err := enc.WriteBool(p.Active); err != nil {
		return err
	}
	if err := enc.WriteUint64(p.Total, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint64(p.Transactions, bin.LE); err != nil {
		return err
	}
	return enc.WriteUint8(p.Bump)
}

func (p *Pool) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if err := readDiscriminator(dec, poolDiscriminator); err != nil {
		return err
	}
	if p.Authority, err = custody.ReadAddress(dec); err != nil {
		return err
	}
	if err := p.Asset.UnmarshalWithDecoder(dec); err != nil {
		return err
	}
	if p.Active, err = dec.ReadBool(); err != nil {
		return err
	}
	if p.Total, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if p.Transactions, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	p.Bump, err = dec.ReadUint8()
	return err
}

// SignerSeeds returns the seeds the program signs for the pool account
// with.
func (p *Pool) SignerSeeds() [][]byte {
	return append(poolSeeds(p.Asset), []byte{p.Bump})
}

// Status of a record.
type Status uint8

const (
	StatusPending Status = iota
	StatusCompleted
	StatusCancelled
	StatusDisputed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusDisputed:
		return "disputed"
	default:
		return "unknown"
	}
}

// Record is a single pooled escrow.
type Record struct {
	Pool   custody.Address
	Status Status
	escrow.Terms
	CreatedAt custody.UnixTime
	// CompletedAt is zero until the record is released.
	CompletedAt custody.UnixTime
	Bump        uint8
}

var _ escrow.Agreement = (*Record)(nil)

func (r *Record) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(recordDiscriminator[:], false); err != nil {
		return err
	}
	if err := custody.WriteAddress(enc, r.Pool); err != nil {
		return err
	}
	if err := enc.WriteUint8(uint8(r.Status)); err != nil {
		return err
	}
	if err := custody.WriteAddress(enc, r.Buyer); err != nil {
		return err
	}
	if err := custody.WriteAddress(enc, r.Seller); err != nil {
		return err
	}
	if err := custody.WriteFixedOptionalAddress(enc, r.Moderator); err != nil {
		return err
	}
	if err := enc.WriteUint64(r.Amount, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteInt64(int64(r.UnlockTime), bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint8(r.RequiredSignatures); err != nil {
		return err
	}
	if err := enc.WriteBytes(r.UniqueID[:], false); err != nil {
		return err
	}
	if err := enc.WriteInt64(int64(r.CreatedAt), bin.LE); err != nil {
		return err
	}
	if err := enc.WriteInt64(int64(r.CompletedAt), bin.LE); err != nil {
		return err
	}
	return enc.WriteUint8(r.Bump)
}

func (r *Record) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if err := readDiscriminator(dec, recordDiscriminator); err != nil {
		return err
	}
	if r.Pool, err = custody.ReadAddress(dec); err != nil {
		return err
	}
	status, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	r.Status = Status(status)
	if r.Buyer, err = custody.ReadAddress(dec); err != nil {
		return err
	}
	if r.Seller, err = custody.ReadAddress(dec); err != nil {
		return err
	}
	if r.Moderator, err = custody.ReadFixedOptionalAddress(dec); err != nil {
		return err
	}
	if r.Amount, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	unlock, err := dec.ReadInt64(bin.LE)
	if err != nil {
		return err
	}
	r.UnlockTime = custody.UnixTime(unlock)
	if r.RequiredSignatures, err = dec.ReadUint8(); err != nil {
		return err
	}
	uid, err := dec.ReadNBytes(escrow.UniqueIDLen)
	if err != nil {
		return err
	}
	copy(r.UniqueID[:], uid)
	created, err := dec.ReadInt64(bin.LE)
	if err != nil {
		return err
	}
	r.CreatedAt = custody.UnixTime(created)
	completed, err := dec.ReadInt64(bin.LE)
	if err != nil {
		return err
	}
	r.CompletedAt = custody.UnixTime(completed)
	r.Bump, err = dec.ReadUint8()
	return err
}

// SignerSeeds returns the seeds the program signs for the record account
// with.
func (r *Record) SignerSeeds() [][]byte {
	return append(RecordSeeds(r.Buyer, r.Seller, r.HasModerator(), r.UniqueID), []byte{r.Bump})
}

func readDiscriminator(dec *bin.Decoder, want [8]byte) error {
	d, err := dec.ReadNBytes(len(want))
	if err != nil {
		return err
	}
	if !bytes.Equal(d, want[:]) {
		return errors.Wrap(ErrInvalidAccount, "discriminator mismatch")
	}
	return nil
}

// LoadPool decodes the pool held by the account.
func LoadPool(info *custody.AccountInfo) (*Pool, error) {
	var p Pool
	if err := load(info, PoolLen, &p); err != nil {
		return nil, errors.Wrapf(err, "pool %s", info.Key)
	}
	addr, err := solana.CreateProgramAddress(p.SignerSeeds(), ProgramID)
	if err != nil || addr != info.Key {
		return nil, errors.Wrapf(ErrInvalidAccount, "pool %s is not derived from its asset", info.Key)
	}
	return &p, nil
}

// LoadRecord decodes the record held by the account.
func LoadRecord(info *custody.AccountInfo) (*Record, error) {
	var r Record
	if err := load(info, RecordLen, &r); err != nil {
		return nil, errors.Wrapf(err, "record %s", info.Key)
	}
	addr, err := solana.CreateProgramAddress(r.SignerSeeds(), ProgramID)
	if err != nil || addr != info.Key {
		return nil, errors.Wrapf(ErrInvalidAccount, "record %s is not derived from its terms", info.Key)
	}
	return &r, nil
}

func load(info *custody.AccountInfo, size int, u custody.Unmarshaler) error {
	if info.Owner != ProgramID {
		if info.IsEmpty() {
			return escrow.ErrNotInitialized
		}
		return errors.Wrapf(ErrInvalidAccount, "owned by %s", info.Owner)
	}
	if len(info.Data) != size {
		return errors.Wrapf(ErrInvalidAccount, "data size %d", len(info.Data))
	}
	if err := u.UnmarshalWithDecoder(bin.NewBorshDecoder(info.Data)); err != nil {
		if ErrInvalidAccount.Is(err) {
			return err
		}
		return errors.Wrap(ErrInvalidAccount, err.Error())
	}
	return nil
}

// save writes the value into the account data.
func save(info *custody.AccountInfo, m custody.Marshaler) error {
	raw, err := custody.Marshal(m)
	if err != nil {
		return err
	}
	if len(raw) != len(info.Data) {
		return errors.Wrapf(errors.ErrHuman, "%d bytes in account of %d", len(raw), len(info.Data))
	}
	copy(info.Data, raw)
	return nil
}

var (
	poolSeedPrefix      = []byte("pool")
	nativePoolSeed      = []byte("native")
	poolTokenSeedPrefix = []byte("pool_token")
	recordSeedPrefix    = []byte("record")
)

func poolSeeds(asset escrow.Asset) [][]byte {
	if asset.IsToken() {
		return [][]byte{poolSeedPrefix, asset.Mint[:]}
	}
	return [][]byte{poolSeedPrefix, nativePoolSeed}
}

// FindPoolAddress returns the address of the pool of given asset together
// with its bump seed.
func FindPoolAddress(asset escrow.Asset) (custody.Address, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(poolSeeds(asset), ProgramID)
	if err != nil {
		return custody.Address{}, 0, errors.Wrap(errors.ErrInput, err.Error())
	}
	return addr, bump, nil
}

func poolTokenSeeds(pool custody.Address) [][]byte {
	return [][]byte{poolTokenSeedPrefix, pool[:]}
}

// FindPoolTokenAddress returns the token account holding the tokens of a
// token pool.
func FindPoolTokenAddress(pool custody.Address) (custody.Address, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(poolTokenSeeds(pool), ProgramID)
	if err != nil {
		return custody.Address{}, 0, errors.Wrap(errors.ErrInput, err.Error())
	}
	return addr, bump, nil
}

// RecordSeeds returns the seeds a record address is derived from.
func RecordSeeds(buyer, seller custody.Address, hasModerator bool, uniqueID [escrow.UniqueIDLen]byte) [][]byte {
	flag := []byte{0}
	if hasModerator {
		flag[0] = 1
	}
	return [][]byte{recordSeedPrefix, buyer[:], seller[:], flag, uniqueID[:]}
}

// FindRecordAddress returns the address of the record defined by given
// parameters together with its bump seed.
func FindRecordAddress(buyer, seller custody.Address, hasModerator bool, uniqueID [escrow.UniqueIDLen]byte) (custody.Address, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(RecordSeeds(buyer, seller, hasModerator, uniqueID), ProgramID)
	if err != nil {
		return custody.Address{}, 0, errors.Wrap(errors.ErrInput, err.Error())
	}
	return addr, bump, nil
}

/*
Package registry keeps track of deployed program versions.

A single registry account, derived from a fixed seed, lists contracts by
name. Every contract has versions with a release status, a known bug level
and the program implementing it. One version of each contract can be marked
as recommended for clients to use. Only the authority that created the
registry can change it.
*/
package registry

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
)

// ProgramID is the identifier of the registry program.
var ProgramID = custody.ProgramAddress("registry")

// MaxNameLen limits contract and version names.
const MaxNameLen = 32

// RegistryLen is the data size of the registry account. Contracts are
// serialized into the space left after the fixed fields.
const RegistryLen = 8 + // discriminator
	32 + // authority
	4 + // contracts length
	1024 + // contracts
	1 // bump

var (
	discriminator = custody.AccountDiscriminator("ContractManager")
	seed          = []byte("contract_manager")
)

// Status is the release stage of a version.
type Status uint8

const (
	StatusBeta Status = iota
	StatusReleaseCandidate
	StatusProduction
	StatusDeprecated
)

func (s Status) Validate() error {
	if s > StatusDeprecated {
		return errors.Wrapf(errors.ErrInput, "unknown status %d", s)
	}
	return nil
}

func (s Status) String() string {
	switch s {
	case StatusBeta:
		return "beta"
	case StatusReleaseCandidate:
		return "release candidate"
	case StatusProduction:
		return "production"
	case StatusDeprecated:
		return "deprecated"
	}
	return "unknown"
}

// BugLevel is the severity of the worst known bug of a version.
type BugLevel uint8

const (
	BugNone BugLevel = iota
	BugLow
	BugMedium
	BugHigh
	BugCritical
)

func (b BugLevel) Validate() error {
	if b > BugCritical {
		return errors.Wrapf(errors.ErrInput, "unknown bug level %d", b)
	}
	return nil
}

func (b BugLevel) String() string {
	switch b {
	case BugNone:
		return "none"
	case BugLow:
		return "low"
	case BugMedium:
		return "medium"
	case BugHigh:
		return "high"
	case BugCritical:
		return "critical"
	}
	return "unknown"
}

// Version is a single deployment of a contract.
type Version struct {
	Name      string
	Status    Status
	BugLevel  BugLevel
	ProgramID custody.Address
	DateAdded custody.UnixTime
}

// Contract groups the versions published under one name.
type Contract struct {
	Name     string
	Versions []Version
	// Recommended is the name of the version clients should use, if any.
	Recommended *string
}

// Version returns the version of given name or nil.
func (c *Contract) Version(name string) *Version {
	for i := range c.Versions {
		if c.Versions[i].Name == name {
			return &c.Versions[i]
		}
	}
	return nil
}

// Registry is the state of the registry account.
type Registry struct {
	Authority custody.Address
	Contracts []Contract
	Bump      uint8
}

// Contract returns the contract of given name or nil.
func (r *Registry) Contract(name string) *Contract {
	for i := range r.Contracts {
		if r.Contracts[i].Name == name {
			return &r.Contracts[i]
		}
	}
	return nil
}

func (r *Registry) mustContract(name string) (*Contract, error) {
	c := r.Contract(name)
	if c == nil {
		return nil, errors.Wrapf(ErrContractNotFound, "contract %q", name)
	}
	return c, nil
}

// AddVersion appends a version to the named contract, creating the contract
// when it is not known yet.
func (r *Registry) AddVersion(contract string, v Version) error {
	c := r.Contract(contract)
	if c == nil {
		r.Contracts = append(r.Contracts, Contract{Name: contract})
		c = &r.Contracts[len(r.Contracts)-1]
	}
	if c.Version(v.Name) != nil {
		return errors.Wrapf(ErrVersionExists, "%s %s", contract, v.Name)
	}
	c.Versions = append(c.Versions, v)
	return nil
}

// UpdateVersion changes the status and the bug level of a version.
func (r *Registry) UpdateVersion(contract, version string, status Status, bug BugLevel) error {
	c, err := r.mustContract(contract)
	if err != nil {
		return err
	}
	v := c.Version(version)
	if v == nil {
		return errors.Wrapf(ErrVersionNotFound, "%s %s", contract, version)
	}
	v.Status = status
	v.BugLevel = bug
	return nil
}

// MarkRecommended sets the recommended version of a contract.
func (r *Registry) MarkRecommended(contract, version string) error {
	c, err := r.mustContract(contract)
	if err != nil {
		return err
	}
	if c.Version(version) == nil {
		return errors.Wrapf(ErrVersionNotFound, "%s %s", contract, version)
	}
	c.Recommended = &version
	return nil
}

// RemoveRecommended clears the recommended version of a contract.
func (r *Registry) RemoveRecommended(contract string) error {
	c, err := r.mustContract(contract)
	if err != nil {
		return err
	}
	c.Recommended = nil
	return nil
}

// Recommended returns the recommended version of a contract.
func (r *Registry) Recommended(contract string) (*Version, error) {
	c, err := r.mustContract(contract)
	if err != nil {
		return nil, err
	}
	if c.Recommended == nil {
		return nil, errors.Wrapf(ErrNoRecommended, "contract %q", contract)
	}
	v := c.Version(*c.Recommended)
	if v == nil {
		return nil, errors.Wrapf(ErrVersionNotFound, "%s %s", contract, *c.Recommended)
	}
	return v, nil
}

func (r *Registry) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(discriminator[:], false); err != nil {
		return err
	}
	if err := custody.WriteAddress(enc, r.Authority); err != nil {
		return err
	}
	if err := enc.WriteUint32(uint32(len(r.Contracts)), bin.LE); err != nil {
		return err
	}
	for i := range r.Contracts {
		if err := r.Contracts[i].MarshalWithEncoder(enc); err != nil {
			return err
		}
	}
	return enc.WriteUint8(r.Bump)
}

func (r *Registry) UnmarshalWithDecoder(dec *bin.Decoder) error {
	d, err := dec.ReadNBytes(len(discriminator))
	if err != nil {
		return err
	}
	if !bytes.Equal(d, discriminator[:]) {
		return errors.Wrap(ErrInvalidAccount, "discriminator mismatch")
	}
	if r.Authority, err = custody.ReadAddress(dec); err != nil {
		return err
	}
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	r.Contracts = nil
	for i := uint32(0); i < n; i++ {
		var c Contract
		if err := c.UnmarshalWithDecoder(dec); err != nil {
			return errors.Wrapf(err, "contract %d", i)
		}
		r.Contracts = append(r.Contracts, c)
	}
	r.Bump, err = dec.ReadUint8()
	return err
}

func (c *Contract) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := custody.WriteString(enc, c.Name); err != nil {
		return err
	}
	if err := enc.WriteUint32(uint32(len(c.Versions)), bin.LE); err != nil {
		return err
	}
	for i := range c.Versions {
		if err := c.Versions[i].MarshalWithEncoder(enc); err != nil {
			return err
		}
	}
	if c.Recommended == nil {
		return enc.WriteBool(false)
	}
	if err := enc.WriteBool(true); err != nil {
		return err
	}
	return custody.WriteString(enc, *c.Recommended)
}

func (c *Contract) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if c.Name, err = custody.ReadString(dec, MaxNameLen); err != nil {
		return err
	}
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		var v Version
		if err := v.UnmarshalWithDecoder(dec); err != nil {
			return err
		}
		c.Versions = append(c.Versions, v)
	}
	some, err := dec.ReadBool()
	if err != nil || !some {
		return err
	}
	name, err := custody.ReadString(dec, MaxNameLen)
	if err != nil {
		return err
	}
	c.Recommended = &name
	return nil
}

func (v *Version) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := custody.WriteString(enc, v.Name); err != nil {
		return err
	}
	if err := enc.WriteUint8(uint8(v.Status)); err != nil {
		return err
	}
	if err := enc.WriteUint8(uint8(v.BugLevel)); err != nil {
		return err
	}
	if err := custody.WriteAddress(enc, v.ProgramID); err != nil {
		return err
	}
	return enc.WriteInt64(int64(v.DateAdded), bin.LE)
}

func (v *Version) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if v.Name, err = custody.ReadString(dec, MaxNameLen); err != nil {
		return err
	}
	status, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	v.Status = Status(status)
	if err := v.Status.Validate(); err != nil {
		return err
	}
	bug, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	v.BugLevel = BugLevel(bug)
	if err := v.BugLevel.Validate(); err != nil {
		return err
	}
	if v.ProgramID, err = custody.ReadAddress(dec); err != nil {
		return err
	}
	added, err := dec.ReadInt64(bin.LE)
	v.DateAdded = custody.UnixTime(added)
	return err
}

// FindAddress returns the address of the registry account together with its
// bump seed.
func FindAddress() (custody.Address, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{seed}, ProgramID)
	if err != nil {
		return custody.Address{}, 0, errors.Wrap(errors.ErrInput, err.Error())
	}
	return addr, bump, nil
}

// Load decodes the registry held by the account.
func Load(info *custody.AccountInfo) (*Registry, error) {
	if info.Owner != ProgramID {
		if info.IsEmpty() {
			return nil, errors.Wrapf(ErrNotInitialized, "account %s", info.Key)
		}
		return nil, errors.Wrapf(ErrInvalidAccount, "%s owned by %s", info.Key, info.Owner)
	}
	if len(info.Data) != RegistryLen {
		return nil, errors.Wrapf(ErrInvalidAccount, "data size %d", len(info.Data))
	}
	var r Registry
	if err := r.UnmarshalWithDecoder(bin.NewBorshDecoder(info.Data)); err != nil {
		if ErrInvalidAccount.Is(err) {
			return nil, err
		}
		return nil, errors.Wrap(ErrInvalidAccount, err.Error())
	}
	addr, err := solana.CreateProgramAddress([][]byte{seed, {r.Bump}}, ProgramID)
	if err != nil || addr != info.Key {
		return nil, errors.Wrapf(ErrInvalidAccount, "%s is not the registry address", info.Key)
	}
	return &r, nil
}

// Save writes the registry into the account data, zeroing the unused space.
func Save(info *custody.AccountInfo, r *Registry) error {
	raw, err := custody.Marshal(r)
	if err != nil {
		return err
	}
	if len(raw) > len(info.Data) {
		return errors.Wrapf(ErrRegistryFull, "%d bytes in account of %d", len(raw), len(info.Data))
	}
	n := copy(info.Data, raw)
	for i := n; i < len(info.Data); i++ {
		info.Data[i] = 0
	}
	return nil
}

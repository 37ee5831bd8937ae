package registry

import (
	bin "github.com/gagliardetto/binary"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
)

// Instruction variants.
const (
	TagInitialize uint8 = iota
	TagAddVersion
	TagUpdateVersion
	TagMarkRecommended
	TagRemoveRecommended
)

// InitializeMsg creates the registry account. The signer becomes the
// authority.
//
// Accounts:
//  0. [signer, writable] authority, pays for the account
//  1. [writable] registry account
type InitializeMsg struct{}

var _ custody.Msg = (*InitializeMsg)(nil)

func (InitializeMsg) Validate() error { return nil }

func (*InitializeMsg) MarshalWithEncoder(*bin.Encoder) error { return nil }

func (*InitializeMsg) UnmarshalWithDecoder(*bin.Decoder) error { return nil }

// AddVersionMsg publishes a new version of a contract. Mutating messages
// all take the same accounts:
//
// Accounts:
//  0. [signer] authority
//  1. [writable] registry account
type AddVersionMsg struct {
	Contract  string
	Version   string
	Status    Status
	ProgramID custody.Address
}

var _ custody.Msg = (*AddVersionMsg)(nil)

func (m *AddVersionMsg) Validate() error {
	if err := validateNames(m.Contract, &m.Version); err != nil {
		return err
	}
	if m.ProgramID.IsZero() {
		return errors.Field("ProgramID", ErrInvalidProgramID, "required")
	}
	return errors.Wrap(m.Status.Validate(), "status")
}

func (m *AddVersionMsg) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := custody.WriteString(enc, m.Contract); err != nil {
		return err
	}
	if err := custody.WriteString(enc, m.Version); err != nil {
		return err
	}
	if err := enc.WriteUint8(uint8(m.Status)); err != nil {
		return err
	}
	return custody.WriteAddress(enc, m.ProgramID)
}

func (m *AddVersionMsg) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if m.Contract, err = custody.ReadString(dec, MaxNameLen); err != nil {
		return err
	}
	if m.Version, err = custody.ReadString(dec, MaxNameLen); err != nil {
		return err
	}
	status, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	m.Status = Status(status)
	m.ProgramID, err = custody.ReadAddress(dec)
	return err
}

// UpdateVersionMsg changes the status and the bug level of a version.
type UpdateVersionMsg struct {
	Contract string
	Version  string
	Status   Status
	BugLevel BugLevel
}

var _ custody.Msg = (*UpdateVersionMsg)(nil)

func (m *UpdateVersionMsg) Validate() error {
	if err := validateNames(m.Contract, &m.Version); err != nil {
		return err
	}
	if err := m.Status.Validate(); err != nil {
		return errors.Wrap(err, "status")
	}
	return errors.Wrap(m.BugLevel.Validate(), "bug level")
}

func (m *UpdateVersionMsg) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := custody.WriteString(enc, m.Contract); err != nil {
		return err
	}
	if err := custody.WriteString(enc, m.Version); err != nil {
		return err
	}
	if err := enc.WriteUint8(uint8(m.Status)); err != nil {
		return err
	}
	return enc.WriteUint8(uint8(m.BugLevel))
}

func (m *UpdateVersionMsg) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if m.Contract, err = custody.ReadString(dec, MaxNameLen); err != nil {
		return err
	}
	if m.Version, err = custody.ReadString(dec, MaxNameLen); err != nil {
		return err
	}
	status, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	m.Status = Status(status)
	bug, err := dec.ReadUint8()
	m.BugLevel = BugLevel(bug)
	return err
}

// MarkRecommendedMsg selects the version clients should use.
type MarkRecommendedMsg struct {
	Contract string
	Version  string
}

var _ custody.Msg = (*MarkRecommendedMsg)(nil)

func (m *MarkRecommendedMsg) Validate() error {
	return validateNames(m.Contract, &m.Version)
}

func (m *MarkRecommendedMsg) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := custody.WriteString(enc, m.Contract); err != nil {
		return err
	}
	return custody.WriteString(enc, m.Version)
}

func (m *MarkRecommendedMsg) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if m.Contract, err = custody.ReadString(dec, MaxNameLen); err != nil {
		return err
	}
	m.Version, err = custody.ReadString(dec, MaxNameLen)
	return err
}

// RemoveRecommendedMsg clears the recommended version of a contract.
type RemoveRecommendedMsg struct {
	Contract string
}

var _ custody.Msg = (*RemoveRecommendedMsg)(nil)

func (m *RemoveRecommendedMsg) Validate() error {
	return validateNames(m.Contract, nil)
}

func (m *RemoveRecommendedMsg) MarshalWithEncoder(enc *bin.Encoder) error {
	return custody.WriteString(enc, m.Contract)
}

func (m *RemoveRecommendedMsg) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	m.Contract, err = custody.ReadString(dec, MaxNameLen)
	return err
}

func validateNames(contract string, version *string) error {
	if err := validateName(contract); err != nil {
		return errors.Field("Contract", err, "invalid")
	}
	if version == nil {
		return nil
	}
	if err := validateName(*version); err != nil {
		return errors.Field("Version", err, "invalid")
	}
	return nil
}

func validateName(name string) error {
	switch {
	case name == "":
		return ErrEmptyName
	case len(name) > MaxNameLen:
		return errors.Wrapf(errors.ErrInput, "longer than %d bytes", MaxNameLen)
	}
	return nil
}

// NewInitializeInstruction returns the instruction creating the registry
// together with the registry address.
func NewInitializeInstruction(authority custody.Address) (custody.Instruction, custody.Address, error) {
	addr, _, err := FindAddress()
	if err != nil {
		return custody.Instruction{}, addr, err
	}
	ix := custody.NewBuilder(ProgramID, mustInstruction(TagInitialize, &InitializeMsg{})).
		Signer(authority, true).
		Writable(addr).
		Build()
	return ix, addr, nil
}

// NewAddVersionInstruction returns the instruction publishing a version.
func NewAddVersionInstruction(authority custody.Address, msg *AddVersionMsg) (custody.Instruction, error) {
	return update(authority, TagAddVersion, msg)
}

// NewUpdateVersionInstruction returns the instruction changing a version.
func NewUpdateVersionInstruction(authority custody.Address, msg *UpdateVersionMsg) (custody.Instruction, error) {
	return update(authority, TagUpdateVersion, msg)
}

// NewMarkRecommendedInstruction returns the instruction recommending a
// version.
func NewMarkRecommendedInstruction(authority custody.Address, msg *MarkRecommendedMsg) (custody.Instruction, error) {
	return update(authority, TagMarkRecommended, msg)
}

// NewRemoveRecommendedInstruction returns the instruction clearing the
// recommendation of a contract.
func NewRemoveRecommendedInstruction(authority custody.Address, contract string) (custody.Instruction, error) {
	return update(authority, TagRemoveRecommended, &RemoveRecommendedMsg{Contract: contract})
}

func update(authority custody.Address, tag uint8, m custody.Marshaler) (custody.Instruction, error) {
	addr, _, err := FindAddress()
	if err != nil {
		return custody.Instruction{}, err
	}
	data, err := custody.MarshalInstruction(tag, m)
	if err != nil {
		return custody.Instruction{}, err
	}
	return custody.NewBuilder(ProgramID, data).
		Signer(authority, false).
		Writable(addr).
		Build(), nil
}

func mustInstruction(tag uint8, m custody.Marshaler) []byte {
	data, err := custody.MarshalInstruction(tag, m)
	if err != nil {
		panic(err)
	}
	return data
}

package registry

import (
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
	"github.com/iov-one/custody/x/system"
)

// RegisterRoutes registers the registry program.
func RegisterRoutes(r custody.Registry) {
	r.Register(ProgramID, Program{})
}

// Program applies registry instructions.
type Program struct{}

var _ custody.Program = Program{}

func (p Program) Process(ctx custody.Context, inv custody.Invocation) error {
	tag, raw, err := custody.SplitInstruction(inv.Data())
	if err != nil {
		return err
	}
	if tag == TagInitialize {
		return p.initialize(ctx, inv)
	}

	var (
		name  string
		apply func(*Registry, custody.UnixTime) error
	)
	switch tag {
	case TagAddVersion:
		m := &AddVersionMsg{}
		if err := custody.UnmarshalMsg(raw, m); err != nil {
			return errors.Wrap(err, "add version")
		}
		name, apply = "add version", func(r *Registry, now custody.UnixTime) error {
			return r.AddVersion(m.Contract, Version{
				Name:      m.Version,
				Status:    m.Status,
				BugLevel:  BugNone,
				ProgramID: m.ProgramID,
				DateAdded: now,
			})
		}
	case TagUpdateVersion:
		m := &UpdateVersionMsg{}
		if err := custody.UnmarshalMsg(raw, m); err != nil {
			return errors.Wrap(err, "update version")
		}
		name, apply = "update version", func(r *Registry, _ custody.UnixTime) error {
			return r.UpdateVersion(m.Contract, m.Version, m.Status, m.BugLevel)
		}
	case TagMarkRecommended:
		m := &MarkRecommendedMsg{}
		if err := custody.UnmarshalMsg(raw, m); err != nil {
			return errors.Wrap(err, "mark recommended")
		}
		name, apply = "mark recommended", func(r *Registry, _ custody.UnixTime) error {
			return r.MarkRecommended(m.Contract, m.Version)
		}
	case TagRemoveRecommended:
		m := &RemoveRecommendedMsg{}
		if err := custody.UnmarshalMsg(raw, m); err != nil {
			return errors.Wrap(err, "remove recommended")
		}
		name, apply = "remove recommended", func(r *Registry, _ custody.UnixTime) error {
			return r.RemoveRecommended(m.Contract)
		}
	default:
		return errors.Wrapf(errors.ErrMsg, "unknown instruction %d", tag)
	}
	return p.update(ctx, inv, name, apply)
}

func (Program) initialize(ctx custody.Context, inv custody.Invocation) error {
	accounts, err := custody.RequireAccounts(inv, 2)
	if err != nil {
		return err
	}
	authority, info := accounts[0], accounts[1]
	if err := custody.RequireSigner(authority, "authority"); err != nil {
		return err
	}
	addr, bump, err := FindAddress()
	if err != nil {
		return err
	}
	if info.Key != addr {
		return errors.Wrapf(ErrInvalidAccount, "want registry %s, got %s", addr, info.Key)
	}

	rent, ok := custody.GetRent(ctx)
	if !ok {
		rent = custody.DefaultRent
	}
	create := system.NewCreateAccountInstruction(authority.Key, info.Key, rent.MinimumBalance(RegistryLen), RegistryLen, ProgramID)
	if err := inv.Invoke(ctx, create, [][]byte{seed, {bump}}); err != nil {
		return errors.Wrap(err, "create registry account")
	}
	if err := Save(info, &Registry{Authority: authority.Key, Bump: bump}); err != nil {
		return err
	}
	custody.GetLogger(ctx).Info("registry initialized", "authority", authority.Key)
	return nil
}

func (Program) update(ctx custody.Context, inv custody.Invocation, name string, apply func(*Registry, custody.UnixTime) error) error {
	accounts, err := custody.RequireAccounts(inv, 2)
	if err != nil {
		return err
	}
	authority, info := accounts[0], accounts[1]
	r, err := Load(info)
	if err != nil {
		return err
	}
	if err := custody.RequireSigner(authority, "authority"); err != nil {
		return err
	}
	if authority.Key != r.Authority {
		return errors.Wrapf(errors.ErrUnauthorized, "%s is not the registry authority", authority.Key)
	}
	if err := apply(r, custody.BlockTime(ctx)); err != nil {
		return errors.Wrap(err, name)
	}
	if err := Save(info, r); err != nil {
		return err
	}
	custody.GetLogger(ctx).Info("registry updated", "instruction", name)
	return nil
}

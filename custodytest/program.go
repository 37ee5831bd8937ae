package custodytest

import (
	"github.com/iov-one/custody"
)

// Program is a mock implementing custody.Program. Each call is counted and
// delegated to Fn, if set.
type Program struct {
	Fn    func(ctx custody.Context, inv custody.Invocation) error
	calls int
}

var _ custody.Program = (*Program)(nil)

func (p *Program) Process(ctx custody.Context, inv custody.Invocation) error {
	p.calls++
	if p.Fn == nil {
		return nil
	}
	return p.Fn(ctx, inv)
}

// CallCount returns how many times the program was called.
func (p *Program) CallCount() int {
	return p.calls
}

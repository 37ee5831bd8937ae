package app

import (
	"fmt"

	"github.com/iov-one/custody"
)

// Router dispatches instructions to the program registered for their
// program identifier.
type Router struct {
	programs map[custody.Address]custody.Program
}

var _ custody.Registry = (*Router)(nil)

// NewRouter returns a router without any program registered.
func NewRouter() *Router {
	return &Router{
		programs: make(map[custody.Address]custody.Program),
	}
}

// Register binds a program to the identifier. It panics if the identifier is
// already taken.
func (r *Router) Register(id custody.Address, p custody.Program) {
	if _, ok := r.programs[id]; ok {
		panic(fmt.Sprintf("program %s is already registered", id))
	}
	r.programs[id] = p
}

// Program returns the program registered under given identifier.
func (r *Router) Program(id custody.Address) (custody.Program, bool) {
	p, ok := r.programs[id]
	return p, ok
}

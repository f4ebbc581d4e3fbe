// Package manager defines the lifecycle contract shared by every workspace
// subsystem and the registry that drives it.
//
// A workspace is made of independent managers (config, pages, stylesheets,
// scripts, static assets, templates). Each one goes through the same phases:
//
//	Init   sequential, in registration order; later managers may rely on
//	       state prepared by earlier ones (directories, loaded options)
//	Build  concurrent across managers, only after Init succeeded
//	Watch  concurrent across managers, only after Init succeeded; returns as
//	       soon as watchers are armed
//
// Registration order is chosen by the composition root. There is no
// dependency graph: the order in which managers are registered is the order
// in which they are initialized.
package manager

import "context"

// Manager is a workspace subsystem.
type Manager interface {
	// Name identifies the manager in logs and errors. It must be unique
	// within a registry.
	Name() string
	Init(ctx context.Context) error
	Build(ctx context.Context) error
	// Watch arms file watchers that live until ctx is cancelled. It must not
	// block waiting for changes.
	Watch(ctx context.Context) error
}

// Base provides no-op phases for managers that only care about some of them.
type Base struct{}

func (Base) Init(context.Context) error  { return nil }
func (Base) Build(context.Context) error { return nil }
func (Base) Watch(context.Context) error { return nil }

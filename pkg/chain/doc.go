// Package chain assembles analysis chains: it keeps modules in execution
// order, defers parameter assignments until the engine has started and drives
// the lifecycle.
//
// # Building a Chain
//
// Modules are added by instance (Push, Insert) or by class name (Chain),
// which is resolved through the chain's namespaces. The Global namespace is
// always searched first:
//
//	c := chain.New()
//	c.AddNamespace(sample.Namespace)
//	c.Chain("Generator")
//	c.WithParameters(chain.Params{
//	    chain.P("mean", 10.0),
//	    chain.P("tags", []string{"a", "b"}),
//	}, nil)
//	c.Chain("Threshold", "cut")
//	c.SetParameter("min", 2.5)
//
// The last module added or exposed is the current module; SetParameter,
// InsertMap and WithParameters act on it.
//
// # Deferred Commit
//
// Parameters of a module only exist once the engine has started it. Until
// then every assignment is queued and Run commits the queue in the order it
// was issued, after Startup and before Prepare. Assignments made after
// startup apply immediately.
//
// # Lifecycle
//
// Run executes Startup, the commit, Prepare, Initialize, Analyze and Exit.
// The first phase that does not return OK aborts the run with an error of
// kind KindEngineStatus naming the phase. RunInteractive hands control to
// the engine's interactive session instead and only logs failures.
//
// # Applications
//
// App couples a chain with a setup function that is called on every Run.
// Setup slots (DefineSetupModule) let users pick modules before the chain is
// assembled; the picks are Initializers that ChainWithParameters turns into
// chained modules.
package chain

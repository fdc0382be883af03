// Package policy gates analysis runs with Open Policy Agent.
//
// Policies are Rego v1 modules that define a deny set. They are evaluated
// against the committed chain, after parameters are applied and before any
// module's Prepare hook runs. The input document looks like:
//
//	{
//	  "chain": {
//	    "modules": [
//	      {
//	        "index": 0, "id": "reader", "class": "Reader", "version": "1.0",
//	        "on": true,
//	        "parameters": {
//	          "gain": {"type": "float", "unit": "keV", "value": "2.5", "default": "1"}
//	        }
//	      }
//	    ]
//	  },
//	  "context": {"timestamp": "...", "operation": "run"}
//	}
//
// Parameter values are the strings printed by the interactive session; use
// to_number to compare numbers.
//
// A deny entry is either a message string or an object with message,
// severity, module and parameter keys. Entries with severity error or
// critical block the run; the others are logged as warnings.
//
// # Usage
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"policies/"}); err != nil {
//	    return err
//	}
//	c := chain.New(chain.WithGate(eng.Gate))
//
// Policy files are .rego files, named after the file, or .json documents
// holding a Policy. A .rego file's leading comments become its description
// and a "# severity: error" line sets its default severity.
//
// # Built-in policies
//
//   - chain-not-empty: a chain needs at least one module (error)
//   - module-identity: identities are non-empty and free of whitespace (error)
//   - active-modules: every module switched off (warning)
//   - module-version: module class without a version (warning)
package policy

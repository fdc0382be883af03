package policy

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		chainNotEmptyPolicy(),
		activeModulesPolicy(),
		moduleIdentityPolicy(),
		moduleVersionPolicy(),
	}
}

// chainNotEmptyPolicy rejects a run with no module to process events.
func chainNotEmptyPolicy() Policy {
	return Policy{
		Name:        "chain-not-empty",
		Description: "A chain must contain at least one module",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"chain"},
		Rego: `package anlchain.policies.chain

import rego.v1

deny contains violation if {
	count(input.chain.modules) == 0
	violation := {
		"message": "The analysis chain has no modules",
		"severity": "error",
	}
}
`,
	}
}

// activeModulesPolicy warns when every module is switched off.
func activeModulesPolicy() Policy {
	return Policy{
		Name:        "active-modules",
		Description: "Warns when every module of the chain is switched off",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"chain"},
		Rego: `package anlchain.policies.active

import rego.v1

deny contains violation if {
	count(input.chain.modules) > 0
	every m in input.chain.modules {
		not m.on
	}
	violation := {
		"message": "Every module is switched off; events pass through untouched",
		"severity": "warning",
	}
}
`,
	}
}

// moduleIdentityPolicy requires identities usable from the interactive
// session and generated scripts.
func moduleIdentityPolicy() Policy {
	return Policy{
		Name:        "module-identity",
		Description: "Module identities must be non-empty and free of whitespace",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming"},
		Rego: `package anlchain.policies.identity

import rego.v1

deny contains violation if {
	some m in input.chain.modules
	m.id == ""
	violation := {
		"message": sprintf("Module #%d (%s) has an empty identity", [m.index, m.class]),
		"severity": "error",
	}
}

deny contains violation if {
	some m in input.chain.modules
	regex.match("\\s", m.id)
	violation := {
		"message": sprintf("Module identity '%s' contains whitespace", [m.id]),
		"severity": "error",
		"module": m.id,
	}
}
`,
	}
}

// moduleVersionPolicy flags module classes without a version.
func moduleVersionPolicy() Policy {
	return Policy{
		Name:        "module-version",
		Description: "Module classes should declare a version",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"versioning"},
		Rego: `package anlchain.policies.version

import rego.v1

deny contains violation if {
	some m in input.chain.modules
	m.version == ""
	violation := {
		"message": sprintf("Module %s of class %s does not declare a version", [m.id, m.class]),
		"module": m.id,
	}
}
`,
	}
}

/*
Package match implements the match specification evaluator.

A Spec is an ordered list of clauses combined with a short-circuit AND:
clauses run left to right and the first failing clause stops evaluation,
so cheap clauses can gate expensive predicates. An empty Spec matches
everything. Clauses never fail loudly; a clause whose context field is
absent simply does not match.

Specs are usually built in code:

	spec := match.Spec{
		match.Method{Value: "GET"},
		match.PathPrefix{Value: "/api/"},
		match.HeaderPresent{Name: "x-trace"},
	}

or decoded from configuration with Decode.
*/
package match

// Package permission evaluates role grants against the capability catalog.
//
// The catalog is a set of navigation modules, each owning a forest of
// grantable capabilities. A role holds a flat set of capability grants;
// the Evaluator turns that set into display trees, answers point checks
// and replaces a role's grants wholesale.
//
// Point checks (HasPermission) fail closed: any lookup failure is a denial.
package permission

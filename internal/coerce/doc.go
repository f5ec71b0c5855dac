// Package coerce turns raw parameter input into typed ir values according to
// a declared type hint.
//
// Hints use the notation node authors write, e.g. "int", "<class 'float'>",
// "typing.Optional[int]", "Collection[str]" or "dict". Scalar conversion runs
// through go-cty's conversion rules so "3" becomes 3 for an int hint and
// "true" becomes true for a bool hint.
package coerce

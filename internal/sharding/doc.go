// Package sharding implements the sharding algorithm family.
//
// Algorithms come in three closed variants. Standard algorithms route on one
// column and handle both precise values and ranges. Complex algorithms see
// every configured column at once. Hint algorithms route on values supplied
// out of band. Route applies the shared policy (broadcast on no values,
// union over IN-lists, missing-hint failure) so individual algorithms only
// map a value to a target.
//
// Ordinal algorithms index into the available targets sorted in natural
// order: digit runs compare numerically, so t_2 sorts before t_10. The
// caller's container order never changes a result.
package sharding

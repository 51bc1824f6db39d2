// Package rule loads sharding and encryption rules from YAML or CUE files and
// assembles them into a coordinator.
//
// Both formats decode into the same Config. CUE documents are first unified
// with the embedded #Rules schema, so a misspelled key fails at load time
// rather than producing a silently incomplete rule set.
package rule

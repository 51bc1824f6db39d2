// Package ir provides the value and fact types shared by every sluice
// component.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal, which keeps it the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere; numbers are int64 so hashes are reproducible
//   - Statement facts arrive pre-decomposed; ir never sees SQL text
//   - Canonical JSON (RFC 8785) is the only serialization that feeds a hash
//   - All JSON tags use snake_case
package ir

// Package analyze decides whether a marked struct type is eligible for
// builder generation.
//
// Analyze runs every check and collects all findings instead of stopping at
// the first one, so a single pass reports, for example, both a constructor
// visibility problem and an unsupported parameter type. Every finding is an
// error. The analyzer never mutates the declaration it inspects.
//
// Checks, in reporting order:
//
//   - the type has a primary constructor (PM1001);
//   - the constructor is at least as visible as the type (PM1002);
//   - every parameter has a name (PM1006) and a supported type (PM1003);
//   - generated member names do not collide (PM1004);
//   - default expressions name real parameters and only earlier ones (PM1005).
package analyze

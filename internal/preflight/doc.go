// Package preflight provides readiness checks for the filesystem paths and
// the remote mailbox source that docket depends on.
//
// These checks run in two contexts:
//   - The CLI "docket preflight" command runs RunAll and reports each result.
//   - The CLI "docket status" command reuses individual check functions
//     (CheckSource, CheckDatabase) to display health alongside pipeline
//     counters.
package preflight

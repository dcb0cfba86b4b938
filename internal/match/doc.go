// Package match links normalized items to canonical records using a
// deterministic title-in-subject rule and records every new association in
// the audit ledger.
package match

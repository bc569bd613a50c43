package scheduling

import _ "embed"

// Schema creates the scheduling tables when they are missing.
//
//go:embed schema.sql
var Schema string

package ratings

import _ "embed"

// Schema creates the survey and rating tables when they are missing.
//
//go:embed schema.sql
var Schema string

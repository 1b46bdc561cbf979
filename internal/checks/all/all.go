// Package all pulls every built-in check into checks.Default. The CLI root
// blank-imports it once; anything else that needs the full set (the ready
// endpoint, tests) does the same.
package all

import (
	_ "github.com/statline/statline-backend/internal/checks/cachecheck"
	_ "github.com/statline/statline-backend/internal/checks/conf"
	_ "github.com/statline/statline-backend/internal/checks/dbcheck"
	_ "github.com/statline/statline-backend/internal/checks/reportcheck"
	_ "github.com/statline/statline-backend/internal/checks/security"
)

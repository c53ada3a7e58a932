// Package all enables every built-in storage backend. Import it for side
// effects from the binary that needs table loading:
//
//	import _ "splitvep/internal/storage/all"
package all

import (
	_ "splitvep/internal/storage/mssql"
	_ "splitvep/internal/storage/mysql"
	_ "splitvep/internal/storage/postgres"
	_ "splitvep/internal/storage/sqlite"
)

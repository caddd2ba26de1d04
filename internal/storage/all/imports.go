// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete backend to run, which in
// turn register their factories with the storage package.
//
// In other words, importing this package makes the following storage kinds
// available at runtime:
//
//   - "rest"     (churnetl/internal/storage/rest)
//   - "postgres" (churnetl/internal/storage/postgres)
//
// A binary that needs only one backend can blank-import that backend's
// package directly instead of this one.
package all

import (
	_ "churnetl/internal/storage/postgres"
	_ "churnetl/internal/storage/rest"
)

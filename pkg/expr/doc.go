// Package expr provides CEL (Common Expression Language) functionality
// for evaluating expressions against filesystem events.
//
// It creates CEL environments with custom functions for:
//   - File path operations (pathBase, pathDir, pathExt)
//   - Event flag checks (fs.CREATE, fs.WRITE, fs.REMOVE, fs.RENAME, fs.CHMOD
//     and the `has` macro, e.g. `fs.event.has(fs.WRITE, fs.CREATE)`)
package expr

package expr

import (
	"math"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"
)

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Math(),
		ext.Strings(),
		ext.Lists(),

		cel.Constant("fs.CREATE", types.IntType, types.Int(fsnotify.Create)),
		cel.Constant("fs.REMOVE", types.IntType, types.Int(fsnotify.Remove)),
		cel.Constant("fs.WRITE", types.IntType, types.Int(fsnotify.Write)),
		cel.Constant("fs.RENAME", types.IntType, types.Int(fsnotify.Rename)),
		cel.Constant("fs.CHMOD", types.IntType, types.Int(fsnotify.Chmod)),

		// `has` macro and function for checking if an event has specific flags.
		// Example: fs.event.has(fs.CREATE).
		// Example: fs.event.has(fs.CREATE, fs.RENAME, fs.REMOVE).
		cel.Macros(
			cel.ReceiverVarArgMacro("has", hasVarArgMacro),
		),
		cel.Function("@has",
			cel.Overload("@has_int_int", []*cel.Type{cel.IntType, cel.IntType}, cel.BoolType,
				cel.BinaryBinding(func(event, flag ref.Val) ref.Val {
					eventInt, ok := event.(types.Int).Value().(int64)
					if !ok {
						return types.NewErr("has: invalid event value")
					}
					if eventInt > math.MaxUint32 {
						return types.NewErr("has: event value out of range")
					}

					eventValue := fsnotify.Op(eventInt) //nolint:gosec // G115: integer overflow conversion.

					flagInt, ok := flag.(types.Int).Value().(int64)
					if !ok {
						return types.NewErr("has: invalid flag value")
					}
					if flagInt > math.MaxUint32 {
						return types.NewErr("has: flag value out of range")
					}

					flagValue := fsnotify.Op(flagInt) //nolint:gosec // G115: integer overflow conversion.

					return types.Bool(eventValue.Has(flagValue))
				}),
			),
			cel.Overload("@has_int_list_int", []*cel.Type{cel.IntType, cel.ListType(cel.IntType)}, cel.BoolType,
				cel.BinaryBinding(func(event, flags ref.Val) ref.Val {
					eventInt, ok := event.(types.Int).Value().(int64)
					if !ok {
						return types.NewErr("has: invalid event value")
					}
					if eventInt > math.MaxUint32 {
						return types.NewErr("has: event value out of range")
					}

					eventValue := fsnotify.Op(eventInt) //nolint:gosec // G115: integer overflow conversion.

					flagsList, ok := flags.(traits.Lister)
					if !ok {
						return types.NewErr("has: invalid flags list")
					}

					flagSize, ok := flagsList.Size().(types.Int)
					if !ok {
						return types.NewErr("has: invalid flags list size")
					}

					// Check if the event has any of the specified flags.
					var mask int64
					for i := range flagSize {
						flagVal := flagsList.Get(i)
						flagInt, ok := flagVal.(types.Int).Value().(int64)
						if !ok {
							return types.NewErr("has: invalid flag value in list")
						}

						mask |= flagInt
					}
					if mask > math.MaxUint32 {
						return types.NewErr("has: flag value out of range")
					}

					//nolint:gosec // G115: integer overflow conversion.
					return types.Bool(eventValue.Has(fsnotify.Op(mask)))
				}),
			),
		),

		// `pathBase` returns the last element of the path.
		// Example: pathBase(file) in ["tox.ini", "setup.cfg"].
		cel.Function("pathBase",
			cel.Overload("path_base", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(path ref.Val) ref.Val {
					pathValue, ok := path.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathBase: invalid string value")
					}

					return types.String(filepath.Base(pathValue))
				}),
			),
		),

		// `pathDir` returns all but the last element of the path.
		// Example: !pathDir(file).startsWith("docs").
		cel.Function("pathDir",
			cel.Overload("path_dir", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(path ref.Val) ref.Val {
					pathValue, ok := path.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathDir: invalid string value")
					}

					return types.String(filepath.Dir(pathValue))
				}),
			),
		),

		// `pathExt` returns the file extension of the path.
		// Example: pathExt(file) in [".py", ".pyi"].
		cel.Function("pathExt",
			cel.Overload("path_ext", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(path ref.Val) ref.Val {
					pathValue, ok := path.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathExt: invalid string value")
					}

					return types.String(filepath.Ext(pathValue))
				}),
			),
		),

		// `pathMatch` reports whether the path matches a shell glob, as in [filepath.Match].
		// Example: pathMatch(pathBase(file), "test_*.py").
		cel.Function("pathMatch",
			cel.Overload("path_match", []*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
				cel.BinaryBinding(func(path, pattern ref.Val) ref.Val {
					pathValue, ok := path.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathMatch: invalid string value")
					}

					patternValue, ok := pattern.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathMatch: invalid pattern value")
					}

					matched, err := filepath.Match(patternValue, pathValue)
					if err != nil {
						return types.NewErr("pathMatch: %v", err)
					}

					return types.Bool(matched)
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

//nolint:ireturn // Following CEL's function signature.
func hasVarArgMacro(meh cel.MacroExprFactory, target ast.Expr, args []ast.Expr) (ast.Expr, *cel.Error) {
	switch len(args) {
	case 0:
		return nil, meh.NewError(target.ID(), "has() requires at least one argument")
	case 1:
		return meh.NewCall("@has", target, args[0]), nil
	default:
		return meh.NewCall("@has", target, meh.NewList(args...)), nil
	}
}

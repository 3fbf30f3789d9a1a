package symbol

import (
	"github.com/soypat/fortcheck/ast"
)

// IntrinsicKind identifies whether an intrinsic is a function or subroutine
type IntrinsicKind int

const (
	IntrinsicFunction IntrinsicKind = iota
	IntrinsicSubroutine
)

// String returns the string representation of IntrinsicKind
func (ik IntrinsicKind) String() string {
	switch ik {
	case IntrinsicFunction:
		return "Function"
	case IntrinsicSubroutine:
		return "Subroutine"
	default:
		return "Unknown"
	}
}

// IntrinsicArg is a dummy argument of an intrinsic procedure.
type IntrinsicArg struct {
	Name   string
	Intent ast.Intent
}

// Intrinsic represents an intrinsic function or subroutine
type Intrinsic struct {
	name      string
	module    string // intrinsic module providing the procedure, empty for the standard set
	kind      IntrinsicKind
	result    Category // CatNone when the result has the type of the first argument
	resultK   int
	pure      bool
	elemental bool
	args      []IntrinsicArg
}

func (i *Intrinsic) Name() string { return i.name }

func (i *Intrinsic) Kind() IntrinsicKind { return i.kind }

// Module returns the intrinsic module the procedure belongs to, if any.
func (i *Intrinsic) Module() string { return i.module }

// Pure reports whether the procedure may be referenced from a pure context.
func (i *Intrinsic) Pure() bool { return i.pure || i.elemental }

func (i *Intrinsic) Elemental() bool { return i.elemental }

// Args returns the dummy arguments of the procedure in order.
func (i *Intrinsic) Args() []IntrinsicArg { return i.args }

// ResultType returns the result type of an intrinsic function. A zero
// Category means the result has the type of the first argument.
func (i *Intrinsic) ResultType() ResolvedType {
	return ResolvedType{Category: i.result, Kind: i.resultK}
}

var (
	in    = ast.IntentIn
	out   = ast.IntentOut
	inout = ast.IntentInOut
)

func args(pairs ...any) []IntrinsicArg {
	list := make([]IntrinsicArg, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		list = append(list, IntrinsicArg{Name: pairs[i].(string), Intent: pairs[i+1].(ast.Intent)})
	}
	return list
}

func loadIntrinsics() map[string]*Intrinsic {
	intrinsics := make(map[string]*Intrinsic)
	elemental := func(result Category, names ...string) {
		for _, name := range names {
			intrinsics[name] = &Intrinsic{name: name, result: result, pure: true, elemental: true}
		}
	}
	transformational := func(result Category, names ...string) {
		for _, name := range names {
			intrinsics[name] = &Intrinsic{name: name, result: result, pure: true}
		}
	}
	subroutine := func(name string, pure bool, a []IntrinsicArg) {
		intrinsics[name] = &Intrinsic{name: name, kind: IntrinsicSubroutine, pure: pure, args: a}
	}

	// Trigonometric, exponential and numeric.
	elemental(CatNone, "SIN", "COS", "TAN", "ASIN", "ACOS", "ATAN", "ATAN2",
		"SINH", "COSH", "TANH", "EXP", "LOG", "LOG10", "SQRT",
		"ABS", "MOD", "MODULO", "SIGN", "DIM", "MAX", "MIN", "MERGE", "AIMAG", "CONJG")
	// Type conversion.
	elemental(CatInteger, "INT", "NINT", "FLOOR", "CEILING", "ICHAR", "IACHAR",
		"LEN_TRIM", "INDEX", "SCAN", "VERIFY", "IAND", "IOR", "IEOR", "ISHFT")
	elemental(CatReal, "REAL")
	intrinsics["DBLE"] = &Intrinsic{name: "DBLE", result: CatReal, resultK: 8, pure: true, elemental: true}
	elemental(CatComplex, "CMPLX")
	elemental(CatCharacter, "CHAR", "ACHAR", "ADJUSTL", "ADJUSTR")
	elemental(CatLogical, "LGE", "LGT", "LLE", "LLT", "BTEST", "IS_IOSTAT_END")
	// Inquiry and transformational.
	transformational(CatNone, "SUM", "PRODUCT", "MAXVAL", "MINVAL", "MATMUL", "DOT_PRODUCT",
		"TRANSPOSE", "RESHAPE", "PACK", "SPREAD", "CSHIFT", "EOSHIFT", "HUGE", "TINY", "EPSILON", "NULL")
	transformational(CatInteger, "SIZE", "SHAPE", "LBOUND", "UBOUND", "COUNT", "KIND", "LEN",
		"MAXLOC", "MINLOC", "SELECTED_INT_KIND", "SELECTED_REAL_KIND",
		"THIS_IMAGE", "NUM_IMAGES", "COMMAND_ARGUMENT_COUNT", "IMAGE_STATUS")
	transformational(CatCharacter, "TRIM", "REPEAT", "NEW_LINE")
	transformational(CatLogical, "ALLOCATED", "ASSOCIATED", "PRESENT", "ANY", "ALL",
		"SAME_TYPE_AS", "EXTENDS_TYPE_OF")

	// Subroutines. Those with side effects outside their arguments are impure.
	subroutine("RANDOM_NUMBER", false, args("HARVEST", out))
	subroutine("RANDOM_SEED", false, args("SIZE", out, "PUT", in, "GET", out))
	subroutine("CPU_TIME", false, args("TIME", out))
	subroutine("SYSTEM_CLOCK", false, args("COUNT", out, "COUNT_RATE", out, "COUNT_MAX", out))
	subroutine("DATE_AND_TIME", false, args("DATE", out, "TIME", out, "ZONE", out, "VALUES", out))
	subroutine("GET_COMMAND", false, args("COMMAND", out, "LENGTH", out, "STATUS", out))
	subroutine("GET_COMMAND_ARGUMENT", false, args("NUMBER", in, "VALUE", out, "LENGTH", out, "STATUS", out))
	subroutine("GET_ENVIRONMENT_VARIABLE", false, args("NAME", in, "VALUE", out, "LENGTH", out, "STATUS", out, "TRIM_NAME", in))
	subroutine("EXECUTE_COMMAND_LINE", false, args("COMMAND", in, "WAIT", in, "EXITSTAT", inout, "CMDSTAT", out, "CMDMSG", inout))
	subroutine("ATOMIC_DEFINE", false, args("ATOM", out, "VALUE", in, "STAT", out))
	subroutine("ATOMIC_REF", false, args("VALUE", out, "ATOM", in, "STAT", out))
	subroutine("CO_SUM", false, args("A", inout, "RESULT_IMAGE", in, "STAT", out, "ERRMSG", inout))
	subroutine("CO_BROADCAST", false, args("A", inout, "SOURCE_IMAGE", in, "STAT", out, "ERRMSG", inout))
	subroutine("MOVE_ALLOC", true, args("FROM", inout, "TO", out, "STAT", out, "ERRMSG", inout))
	intrinsics["MVBITS"] = &Intrinsic{name: "MVBITS", kind: IntrinsicSubroutine, pure: true, elemental: true,
		args: args("FROM", in, "FROMPOS", in, "LEN", in, "TO", inout, "TOPOS", in)}
	return intrinsics
}

// intrinsicModule describes the public entities of an intrinsic module.
type intrinsicModule struct {
	procs     []*Intrinsic
	constants []moduleConstant
	types     []string
	reexports []string // modules whose entities are also accessible
}

type moduleConstant struct {
	name  string
	typ   ResolvedType
	value int64
}

var intrinsicModules = map[string]intrinsicModule{
	"IEEE_EXCEPTIONS": {
		procs: []*Intrinsic{
			{name: "IEEE_GET_FLAG", kind: IntrinsicSubroutine, args: args("FLAG", in, "FLAG_VALUE", out)},
			{name: "IEEE_SET_FLAG", kind: IntrinsicSubroutine, pure: true, args: args("FLAG", in, "FLAG_VALUE", in)},
			{name: "IEEE_GET_HALTING_MODE", kind: IntrinsicSubroutine, args: args("FLAG", in, "HALTING", out)},
			{name: "IEEE_SET_HALTING_MODE", kind: IntrinsicSubroutine, pure: true, args: args("FLAG", in, "HALTING", in)},
			{name: "IEEE_SUPPORT_FLAG", result: CatLogical, pure: true},
			{name: "IEEE_SUPPORT_HALTING", result: CatLogical, pure: true},
		},
		constants: []moduleConstant{
			{name: "IEEE_OVERFLOW", typ: ResolvedType{Category: CatDerived}},
			{name: "IEEE_DIVIDE_BY_ZERO", typ: ResolvedType{Category: CatDerived}},
			{name: "IEEE_INVALID", typ: ResolvedType{Category: CatDerived}},
			{name: "IEEE_UNDERFLOW", typ: ResolvedType{Category: CatDerived}},
			{name: "IEEE_INEXACT", typ: ResolvedType{Category: CatDerived}},
		},
		types: []string{"IEEE_FLAG_TYPE", "IEEE_STATUS_TYPE"},
	},
	"IEEE_ARITHMETIC": {
		procs: []*Intrinsic{
			{name: "IEEE_IS_NAN", result: CatLogical, pure: true, elemental: true},
			{name: "IEEE_IS_FINITE", result: CatLogical, pure: true, elemental: true},
			{name: "IEEE_VALUE", pure: true, elemental: true},
		},
		reexports: []string{"IEEE_EXCEPTIONS"},
	},
	"ISO_FORTRAN_ENV": {
		constants: []moduleConstant{
			{name: "INPUT_UNIT", typ: ResolvedType{Category: CatInteger}, value: 5},
			{name: "OUTPUT_UNIT", typ: ResolvedType{Category: CatInteger}, value: 6},
			{name: "ERROR_UNIT", typ: ResolvedType{Category: CatInteger}, value: 0},
			{name: "INT32", typ: ResolvedType{Category: CatInteger}, value: 4},
			{name: "INT64", typ: ResolvedType{Category: CatInteger}, value: 8},
			{name: "REAL32", typ: ResolvedType{Category: CatInteger}, value: 4},
			{name: "REAL64", typ: ResolvedType{Category: CatInteger}, value: 8},
			{name: "STAT_LOCKED", typ: ResolvedType{Category: CatInteger}, value: 102},
		},
		types: []string{"LOCK_TYPE", "EVENT_TYPE", "TEAM_TYPE"},
	},
	"ISO_C_BINDING": {
		constants: []moduleConstant{
			{name: "C_INT", typ: ResolvedType{Category: CatInteger}, value: 4},
			{name: "C_LONG", typ: ResolvedType{Category: CatInteger}, value: 8},
			{name: "C_FLOAT", typ: ResolvedType{Category: CatInteger}, value: 4},
			{name: "C_DOUBLE", typ: ResolvedType{Category: CatInteger}, value: 8},
			{name: "C_BOOL", typ: ResolvedType{Category: CatInteger}, value: 1},
		},
	},
}

func init() {
	for modName, mod := range intrinsicModules {
		for _, proc := range mod.procs {
			proc.module = modName
		}
	}
}

// intrinsicModuleScope returns the scope of an intrinsic module, creating it
// on first use. It returns zero if name is not an intrinsic module.
func (t *Table) intrinsicModuleScope(name string) ScopeID {
	name = normalizeCase(name)
	if id := t.modules[name]; id != 0 {
		return id
	}
	mod, ok := intrinsicModules[name]
	if !ok {
		return 0
	}
	// Intrinsic modules have no source span and are never found by ScopeAt.
	scope := t.NewScope(t.global, ScopeModule, ast.Pos(-1, -1), nil)
	t.scopes[scope].name = name
	t.modules[name] = scope
	for _, proc := range mod.procs {
		sym := Symbol{name: proc.name, kind: SymIntrinsic, flags: FlagIntrinsic, typ: proc.ResultType()}
		if proc.kind == IntrinsicSubroutine {
			sym.typ = ResolvedType{}
		}
		if proc.pure {
			sym.flags |= FlagPure
		}
		if proc.elemental {
			sym.flags |= FlagElemental
		}
		t.Define(scope, sym)
	}
	for _, tname := range mod.types {
		typeScope := t.NewScope(scope, ScopeDerivedType, ast.Pos(-1, -1), nil)
		t.scopes[typeScope].name = tname
		t.Define(scope, Symbol{name: tname, kind: SymDerivedType, flags: FlagIntrinsic, inner: typeScope})
	}
	for _, c := range mod.constants {
		t.Define(scope, Symbol{name: c.name, kind: SymParameter, typ: c.typ, flags: FlagIntrinsic,
			init: &ast.IntegerLiteral{Value: c.value}})
	}
	for _, re := range mod.reexports {
		reScope := t.intrinsicModuleScope(re)
		for _, id := range t.scopes[reScope].order {
			target := t.symbols[id]
			t.Define(scope, Symbol{name: target.name, kind: target.kind, typ: target.typ, flags: target.flags, assoc: id})
		}
	}
	return scope
}

// intrinsicSymbol returns the global symbol of a standard intrinsic procedure,
// creating it on first reference. It returns zero if name is not intrinsic.
func (t *Table) intrinsicSymbol(name string) SymbolID {
	intr := t.Intrinsic(name)
	if intr == nil {
		return 0
	}
	if id := t.LookupLocal(t.global, intr.name); id != 0 && t.symbols[id].kind == SymIntrinsic {
		return id
	}
	sym := Symbol{name: intr.name, kind: SymIntrinsic, flags: FlagIntrinsic, typ: intr.ResultType()}
	if intr.kind == IntrinsicSubroutine {
		sym.typ = ResolvedType{}
	}
	if intr.pure {
		sym.flags |= FlagPure
	}
	if intr.elemental {
		sym.flags |= FlagElemental
	}
	id, _ := t.Define(t.global, sym)
	return id
}

// IntrinsicOf returns the intrinsic procedure description of a symbol or
// nil if the symbol's root is not an intrinsic procedure.
func (t *Table) IntrinsicOf(id SymbolID) *Intrinsic {
	root := t.Symbol(t.Root(id))
	if root.kind != SymIntrinsic {
		return nil
	}
	if owner := t.Scope(root.owner); owner.kind == ScopeModule {
		for _, proc := range intrinsicModules[owner.name].procs {
			if proc.name == root.name {
				return proc
			}
		}
		return nil
	}
	return t.Intrinsic(root.name)
}

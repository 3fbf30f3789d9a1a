package ast

import (
	"strconv"

	"github.com/soypat/fortcheck/token"
)

// Position is the byte span [Start, End) of a node in its source.
type Position struct {
	start int
	end   int
}

// Pos returns the span [start, end).
func Pos(start, end int) Position { return Position{start: start, end: end} }

func (p Position) Start() int { return p.start }
func (p Position) End() int   { return p.end }

// SourcePos returns p so that Position may be embedded to implement [Node].
func (p Position) SourcePos() Position { return p }

// Contains reports whether byte offset off is within the span.
func (p Position) Contains(off int) bool { return p.start <= off && off < p.end }

// Encloses reports whether q lies entirely inside p.
func (p Position) Encloses(q Position) bool { return p.start <= q.start && q.end <= p.end }

type Node interface {
	AppendString(dst []byte) []byte
	SourcePos() Position
}

type Expression interface {
	Node
	expressionNode()
}

// Statement is implemented by all nodes that can appear in a statement list.
type Statement interface {
	Node
	Base() *StmtBase
}

// ProgramUnit represents a top-level or contained unit (PROGRAM, MODULE, SUBROUTINE, FUNCTION).
type ProgramUnit interface {
	Statement
	Unit() *UnitBase
}

// Construct is implemented by statements that open a construct that may be
// named and that CYCLE or EXIT may reference. The set is closed.
type Construct interface {
	Statement
	ConstructName() string
	HeaderPos() Position
	constructNode()
}

// StmtBase holds the fields shared by every statement.
type StmtBase struct {
	Position
	Label string // statement label, empty if unlabeled
}

func (b *StmtBase) Base() *StmtBase { return b }

// ConstructBase holds the fields shared by every construct.
type ConstructBase struct {
	StmtBase
	Name   string   // construct name, empty if unnamed
	Header Position // opening statement
	Tail   Position // END statement
}

func (c *ConstructBase) ConstructName() string { return c.Name }
func (c *ConstructBase) HeaderPos() Position   { return c.Header }
func (c *ConstructBase) constructNode()        {}

// UnitBase holds the fields shared by every program unit.
type UnitBase struct {
	StmtBase
	Name     string
	Body     []Statement   // Specification and executable statements
	Contains []ProgramUnit // Internal or module procedures after CONTAINS
}

func (u *UnitBase) Unit() *UnitBase { return u }

// Program is the root node of a parsed file.
type Program struct {
	Position
	Units []ProgramUnit
}

func (p *Program) AppendString(dst []byte) []byte {
	for i, unit := range p.Units {
		if i > 0 {
			dst = append(dst, '\n')
		}
		dst = unit.AppendString(dst)
	}
	return dst
}

//
// Program units.
//

type ProgramBlock struct {
	UnitBase
}

func (pb *ProgramBlock) AppendString(dst []byte) []byte {
	return append(append(dst, "PROGRAM "...), pb.Name...)
}

type Module struct {
	UnitBase
}

func (m *Module) AppendString(dst []byte) []byte {
	return append(append(dst, "MODULE "...), m.Name...)
}

type Subroutine struct {
	UnitBase
	Prefix []token.Token // PURE, IMPURE, ELEMENTAL, RECURSIVE
	Params []*Identifier
}

func (s *Subroutine) AppendString(dst []byte) []byte {
	dst = appendPrefix(dst, s.Prefix)
	dst = append(dst, "SUBROUTINE "...)
	dst = append(dst, s.Name...)
	return appendIdentList(dst, s.Params)
}

type Function struct {
	UnitBase
	Prefix []token.Token
	Type   *TypeSpec // Type prefix, nil if declared in the body or implicit
	Params []*Identifier
	Result *Identifier // RESULT(name), nil if the function name is the result
}

func (f *Function) AppendString(dst []byte) []byte {
	if f.Type != nil {
		dst = f.Type.AppendString(dst)
		dst = append(dst, ' ')
	}
	dst = appendPrefix(dst, f.Prefix)
	dst = append(dst, "FUNCTION "...)
	dst = append(dst, f.Name...)
	dst = appendIdentList(dst, f.Params)
	if f.Result != nil {
		dst = append(dst, " RESULT("...)
		dst = append(dst, f.Result.Name...)
		dst = append(dst, ')')
	}
	return dst
}

// ResultName returns the name of the function result variable.
func (f *Function) ResultName() string {
	if f.Result != nil {
		return f.Result.Name
	}
	return f.Name
}

func appendPrefix(dst []byte, prefix []token.Token) []byte {
	for _, tok := range prefix {
		dst = append(dst, tok.String()...)
		dst = append(dst, ' ')
	}
	return dst
}

func appendIdentList(dst []byte, ids []*Identifier) []byte {
	dst = append(dst, '(')
	for i, id := range ids {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = append(dst, id.Name...)
	}
	return append(dst, ')')
}

//
// Specification statements.
//

// TypeSpec is a declared type: INTEGER(8), DOUBLE PRECISION, TYPE(point), CLASS(*)...
type TypeSpec struct {
	Position
	Keyword   token.Token // INTEGER, REAL, DOUBLEPRECISION, COMPLEX, LOGICAL, CHARACTER, TYPE or CLASS.
	Kind      Expression  // Kind or length selector, nil if absent.
	Derived   string      // Type name for TYPE(t) and CLASS(t).
	Unlimited bool        // CLASS(*)
}

func (ts *TypeSpec) AppendString(dst []byte) []byte {
	switch ts.Keyword {
	case token.DOUBLEPRECISION:
		return append(dst, "DOUBLE PRECISION"...)
	case token.TYPE, token.CLASS:
		dst = append(dst, ts.Keyword.String()...)
		dst = append(dst, '(')
		if ts.Unlimited {
			dst = append(dst, '*')
		} else {
			dst = append(dst, ts.Derived...)
		}
		return append(dst, ')')
	}
	dst = append(dst, ts.Keyword.String()...)
	if ts.Kind != nil {
		dst = append(dst, '(')
		dst = ts.Kind.AppendString(dst)
		dst = append(dst, ')')
	}
	return dst
}

// Intent of a dummy argument.
type Intent uint8

const (
	IntentUnspecified Intent = iota
	IntentIn
	IntentOut
	IntentInOut
)

func (i Intent) String() string {
	switch i {
	case IntentIn:
		return "IN"
	case IntentOut:
		return "OUT"
	case IntentInOut:
		return "INOUT"
	}
	return ""
}

// Attribute is one attribute of a declaration: ALLOCATABLE, INTENT(OUT), DIMENSION(:)...
type Attribute struct {
	Tok    token.Token
	Intent Intent       // Set when Tok is INTENT.
	Shape  []Expression // Bounds for DIMENSION and CODIMENSION.
}

// Entity is one declared name in a declaration statement.
type Entity struct {
	Name    *Identifier
	Shape   []Expression // Array spec, nil for scalars.
	Coshape []Expression // Coarray spec, nil if not a coarray.
	Init    Expression   // Initializer, nil if absent.
}

// TypeDecl is a type declaration statement such as `real, allocatable :: a(:)`.
type TypeDecl struct {
	StmtBase
	Type     TypeSpec
	Attrs    []Attribute
	Entities []*Entity
}

func (td *TypeDecl) AppendString(dst []byte) []byte {
	dst = td.Type.AppendString(dst)
	dst = appendAttrs(dst, td.Attrs)
	return appendEntities(dst, td.Entities)
}

// ProcedureDecl is a procedure declaration statement `procedure(iface), pointer :: p`.
type ProcedureDecl struct {
	StmtBase
	Interface string // Interface name, empty for PROCEDURE().
	Attrs     []Attribute
	Entities  []*Entity
}

func (pd *ProcedureDecl) AppendString(dst []byte) []byte {
	dst = append(dst, "PROCEDURE("...)
	dst = append(dst, pd.Interface...)
	dst = append(dst, ')')
	dst = appendAttrs(dst, pd.Attrs)
	return appendEntities(dst, pd.Entities)
}

func appendAttrs(dst []byte, attrs []Attribute) []byte {
	for _, attr := range attrs {
		dst = append(dst, ", "...)
		dst = append(dst, attr.Tok.String()...)
		if attr.Tok == token.INTENT {
			dst = append(dst, '(')
			dst = append(dst, attr.Intent.String()...)
			dst = append(dst, ')')
		}
	}
	return dst
}

func appendEntities(dst []byte, entities []*Entity) []byte {
	dst = append(dst, " :: "...)
	for i, e := range entities {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = append(dst, e.Name.Name...)
		if e.Shape != nil {
			dst = append(dst, '(')
			dst = appendExprList(dst, e.Shape)
			dst = append(dst, ')')
		}
		if e.Coshape != nil {
			dst = append(dst, '[')
			dst = appendExprList(dst, e.Coshape)
			dst = append(dst, ']')
		}
		if e.Init != nil {
			dst = append(dst, " = "...)
			dst = e.Init.AppendString(dst)
		}
	}
	return dst
}

// DerivedTypeDef is a TYPE ... END TYPE definition.
type DerivedTypeDef struct {
	StmtBase
	Name       string
	Extends    string
	Components []Statement // TypeDecl and ProcedureDecl component definitions.
}

func (dt *DerivedTypeDef) AppendString(dst []byte) []byte {
	return append(append(dst, "TYPE :: "...), dt.Name...)
}

// InterfaceBlock is an INTERFACE ... END INTERFACE block.
type InterfaceBlock struct {
	StmtBase
	Name  string // Generic name, empty for a specific interface block.
	Procs []ProgramUnit
}

func (ib *InterfaceBlock) AppendString(dst []byte) []byte {
	dst = append(dst, "INTERFACE"...)
	if ib.Name != "" {
		dst = append(dst, ' ')
		dst = append(dst, ib.Name...)
	}
	return dst
}

type UseStmt struct {
	StmtBase
	Module    string
	Intrinsic bool     // USE, INTRINSIC ::
	Only      []string // Names after ONLY:, nil when absent.
}

func (us *UseStmt) AppendString(dst []byte) []byte {
	dst = append(dst, "USE "...)
	dst = append(dst, us.Module...)
	if us.Only != nil {
		dst = append(dst, ", ONLY: "...)
		for i, name := range us.Only {
			if i > 0 {
				dst = append(dst, ", "...)
			}
			dst = append(dst, name...)
		}
	}
	return dst
}

// LetterRange is an inclusive range of initial letters in an IMPLICIT rule, stored uppercase.
type LetterRange struct {
	From, To byte
}

type ImplicitRule struct {
	Type    TypeSpec
	Letters []LetterRange
}

type ImplicitStmt struct {
	StmtBase
	None  bool
	Rules []ImplicitRule
}

func (is *ImplicitStmt) AppendString(dst []byte) []byte {
	if is.None {
		return append(dst, "IMPLICIT NONE"...)
	}
	dst = append(dst, "IMPLICIT "...)
	for i, rule := range is.Rules {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = rule.Type.AppendString(dst)
		dst = append(dst, '(')
		for j, lr := range rule.Letters {
			if j > 0 {
				dst = append(dst, ',')
			}
			dst = append(dst, lr.From)
			if lr.To != lr.From {
				dst = append(dst, '-', lr.To)
			}
		}
		dst = append(dst, ')')
	}
	return dst
}

// AttrStmt is an attribute specification statement such as `save :: x` or `external f`.
type AttrStmt struct {
	StmtBase
	Attr  token.Token
	Names []*Identifier
}

func (as *AttrStmt) AppendString(dst []byte) []byte {
	dst = append(dst, as.Attr.String()...)
	dst = append(dst, " :: "...)
	for i, id := range as.Names {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = append(dst, id.Name...)
	}
	return dst
}

//
// Executable statements.
//

type AssignmentStmt struct {
	StmtBase
	Target Expression
	Value  Expression
}

func (as *AssignmentStmt) AppendString(dst []byte) []byte {
	dst = as.Target.AppendString(dst)
	dst = append(dst, " = "...)
	return as.Value.AppendString(dst)
}

type PointerAssignStmt struct {
	StmtBase
	Target Expression
	Value  Expression
}

func (ps *PointerAssignStmt) AppendString(dst []byte) []byte {
	dst = ps.Target.AppendString(dst)
	dst = append(dst, " => "...)
	return ps.Value.AppendString(dst)
}

// CallStmt is a CALL statement. Func is an [Identifier] or a [ComponentAccess]
// naming a procedure pointer component.
type CallStmt struct {
	StmtBase
	Func Expression
	Args []Expression
}

func (cs *CallStmt) AppendString(dst []byte) []byte {
	dst = append(dst, "CALL "...)
	dst = cs.Func.AppendString(dst)
	dst = append(dst, '(')
	dst = appendExprList(dst, cs.Args)
	return append(dst, ')')
}

// IfStmt is the single-statement logical IF.
type IfStmt struct {
	StmtBase
	Cond Expression
	Then Statement
}

func (is *IfStmt) AppendString(dst []byte) []byte {
	dst = append(dst, "IF ("...)
	dst = is.Cond.AppendString(dst)
	dst = append(dst, ") "...)
	return is.Then.AppendString(dst)
}

type ElseIf struct {
	Cond Expression
	Body []Statement
}

// IfConstruct is an IF ... THEN ... END IF construct.
type IfConstruct struct {
	ConstructBase
	Cond    Expression
	Then    []Statement
	ElseIfs []ElseIf
	Else    []Statement
}

func (ic *IfConstruct) AppendString(dst []byte) []byte {
	dst = appendConstructName(dst, ic.Name)
	dst = append(dst, "IF ("...)
	dst = ic.Cond.AppendString(dst)
	return append(dst, ") THEN"...)
}

// DoLoop is a DO construct of any form. Exactly one of Var, While or
// Concurrent is set unless the loop is infinite (DO ... END DO).
type DoLoop struct {
	ConstructBase
	TargetLabel string // Label of the terminating statement for DO 10 forms.
	// Counted loop control.
	Var   *Identifier
	Start Expression
	End   Expression
	Step  Expression
	// DO WHILE condition.
	While Expression
	// DO CONCURRENT header.
	Concurrent *ConcurrentHeader
	Body       []Statement
}

func (dl *DoLoop) IsCounted() bool    { return dl.Var != nil }
func (dl *DoLoop) IsConcurrent() bool { return dl.Concurrent != nil }
func (dl *DoLoop) IsWhile() bool      { return dl.While != nil }

func (dl *DoLoop) AppendString(dst []byte) []byte {
	dst = appendConstructName(dst, dl.Name)
	dst = append(dst, "DO"...)
	if dl.TargetLabel != "" {
		dst = append(dst, ' ')
		dst = append(dst, dl.TargetLabel...)
	}
	switch {
	case dl.Var != nil:
		dst = append(dst, ' ')
		dst = append(dst, dl.Var.Name...)
		dst = append(dst, " = "...)
		dst = dl.Start.AppendString(dst)
		dst = append(dst, ", "...)
		dst = dl.End.AppendString(dst)
		if dl.Step != nil {
			dst = append(dst, ", "...)
			dst = dl.Step.AppendString(dst)
		}
	case dl.While != nil:
		dst = append(dst, " WHILE ("...)
		dst = dl.While.AppendString(dst)
		dst = append(dst, ')')
	case dl.Concurrent != nil:
		dst = append(dst, " CONCURRENT "...)
		dst = dl.Concurrent.AppendString(dst)
	}
	return dst
}

// ConcurrentHeader is the part of a DO CONCURRENT statement after the CONCURRENT keyword.
type ConcurrentHeader struct {
	Position
	Type     *TypeSpec // integer-type-spec before ::, nil if absent.
	Controls []*ConcurrentControl
	Mask     Expression // nil if absent.
	Locality []*LocalitySpec
}

func (ch *ConcurrentHeader) AppendString(dst []byte) []byte {
	dst = append(dst, '(')
	if ch.Type != nil {
		dst = ch.Type.AppendString(dst)
		dst = append(dst, " :: "...)
	}
	for i, c := range ch.Controls {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = c.AppendString(dst)
	}
	if ch.Mask != nil {
		dst = append(dst, ", "...)
		dst = ch.Mask.AppendString(dst)
	}
	dst = append(dst, ')')
	for _, ls := range ch.Locality {
		dst = append(dst, ' ')
		dst = ls.AppendString(dst)
	}
	return dst
}

// HasDefaultNone reports whether any locality-spec is DEFAULT(NONE).
func (ch *ConcurrentHeader) HasDefaultNone() bool {
	for _, ls := range ch.Locality {
		if ls.Kind == LocalityDefaultNone {
			return true
		}
	}
	return false
}

// ConcurrentControl is one `index = lower:upper[:step]` triplet.
type ConcurrentControl struct {
	Position
	Index *Identifier
	Lower Expression
	Upper Expression
	Step  Expression // nil if absent.
}

func (cc *ConcurrentControl) AppendString(dst []byte) []byte {
	dst = append(dst, cc.Index.Name...)
	dst = append(dst, '=')
	dst = cc.Lower.AppendString(dst)
	dst = append(dst, ':')
	dst = cc.Upper.AppendString(dst)
	if cc.Step != nil {
		dst = append(dst, ':')
		dst = cc.Step.AppendString(dst)
	}
	return dst
}

type LocalityKind uint8

const (
	LocalityLocal LocalityKind = iota
	LocalityLocalInit
	LocalityShared
	LocalityDefaultNone
)

func (lk LocalityKind) String() string {
	switch lk {
	case LocalityLocal:
		return "LOCAL"
	case LocalityLocalInit:
		return "LOCAL_INIT"
	case LocalityShared:
		return "SHARED"
	case LocalityDefaultNone:
		return "DEFAULT(NONE)"
	}
	return "<invalid locality>"
}

// LocalitySpec is one of LOCAL(...), LOCAL_INIT(...), SHARED(...) or DEFAULT(NONE).
type LocalitySpec struct {
	Position
	Kind  LocalityKind
	Names []*Identifier // Empty for DEFAULT(NONE).
}

func (ls *LocalitySpec) AppendString(dst []byte) []byte {
	dst = append(dst, ls.Kind.String()...)
	if ls.Kind != LocalityDefaultNone {
		dst = appendIdentList(dst, ls.Names)
	}
	return dst
}

// BlockConstruct is a BLOCK ... END BLOCK construct with its own scope.
type BlockConstruct struct {
	ConstructBase
	Body []Statement
}

func (bc *BlockConstruct) AppendString(dst []byte) []byte {
	return append(appendConstructName(dst, bc.Name), "BLOCK"...)
}

type CriticalConstruct struct {
	ConstructBase
	Specs []*Specifier // STAT= and ERRMSG=
	Body  []Statement
}

func (cc *CriticalConstruct) AppendString(dst []byte) []byte {
	return append(appendConstructName(dst, cc.Name), "CRITICAL"...)
}

type ChangeTeamConstruct struct {
	ConstructBase
	Team  Expression
	Specs []*Specifier
	Body  []Statement
}

func (ct *ChangeTeamConstruct) AppendString(dst []byte) []byte {
	dst = appendConstructName(dst, ct.Name)
	dst = append(dst, "CHANGE TEAM ("...)
	dst = ct.Team.AppendString(dst)
	return append(dst, ')')
}

// Association is one `name => selector` in an ASSOCIATE statement.
type Association struct {
	Position
	Name     *Identifier
	Selector Expression
}

type AssociateConstruct struct {
	ConstructBase
	Assocs []*Association
	Body   []Statement
}

func (ac *AssociateConstruct) AppendString(dst []byte) []byte {
	dst = appendConstructName(dst, ac.Name)
	dst = append(dst, "ASSOCIATE ("...)
	for i, a := range ac.Assocs {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = append(dst, a.Name.Name...)
		dst = append(dst, " => "...)
		dst = a.Selector.AppendString(dst)
	}
	return append(dst, ')')
}

func appendConstructName(dst []byte, name string) []byte {
	if name == "" {
		return dst
	}
	dst = append(dst, name...)
	return append(dst, ": "...)
}

type CycleStmt struct {
	StmtBase
	ConstructName string // empty if absent
}

func (cs *CycleStmt) AppendString(dst []byte) []byte {
	return appendWithOptionalName(dst, "CYCLE", cs.ConstructName)
}

type ExitStmt struct {
	StmtBase
	ConstructName string // empty if absent
}

func (es *ExitStmt) AppendString(dst []byte) []byte {
	return appendWithOptionalName(dst, "EXIT", es.ConstructName)
}

func appendWithOptionalName(dst []byte, keyword, name string) []byte {
	dst = append(dst, keyword...)
	if name != "" {
		dst = append(dst, ' ')
		dst = append(dst, name...)
	}
	return dst
}

type GotoStmt struct {
	StmtBase
	Target string // label
}

func (gs *GotoStmt) AppendString(dst []byte) []byte {
	return append(append(dst, "GO TO "...), gs.Target...)
}

type ContinueStmt struct {
	StmtBase
}

func (cs *ContinueStmt) AppendString(dst []byte) []byte { return append(dst, "CONTINUE"...) }

type ReturnStmt struct {
	StmtBase
}

func (rs *ReturnStmt) AppendString(dst []byte) []byte { return append(dst, "RETURN"...) }

// StopStmt is a STOP or ERROR STOP statement.
type StopStmt struct {
	StmtBase
	Error bool
	Code  Expression // nil if absent.
}

func (ss *StopStmt) AppendString(dst []byte) []byte {
	if ss.Error {
		dst = append(dst, "ERROR "...)
	}
	dst = append(dst, "STOP"...)
	if ss.Code != nil {
		dst = append(dst, ' ')
		dst = ss.Code.AppendString(dst)
	}
	return dst
}

type AllocateStmt struct {
	StmtBase
	Type    *TypeSpec // type-spec before ::, nil if absent.
	Objects []Expression
	Specs   []*Specifier // STAT=, ERRMSG=, SOURCE=, MOLD=
}

func (as *AllocateStmt) AppendString(dst []byte) []byte {
	return appendObjectsAndSpecs(dst, "ALLOCATE", as.Objects, as.Specs)
}

type DeallocateStmt struct {
	StmtBase
	Objects []Expression
	Specs   []*Specifier // STAT=, ERRMSG=
}

func (ds *DeallocateStmt) AppendString(dst []byte) []byte {
	return appendObjectsAndSpecs(dst, "DEALLOCATE", ds.Objects, ds.Specs)
}

func appendObjectsAndSpecs(dst []byte, keyword string, objects []Expression, specs []*Specifier) []byte {
	dst = append(dst, keyword...)
	dst = append(dst, '(')
	dst = appendExprList(dst, objects)
	for _, spec := range specs {
		dst = append(dst, ", "...)
		dst = spec.AppendString(dst)
	}
	return append(dst, ')')
}

// Specifier is a `KEYWORD=value` item of an I/O control list, ALLOCATE,
// image control statement or CRITICAL statement. Keyword is uppercase and
// empty for positional items such as the unit in `write(6, *)`.
type Specifier struct {
	Position
	Keyword string
	Value   Expression
}

func (s *Specifier) AppendString(dst []byte) []byte {
	if s.Keyword != "" {
		dst = append(dst, s.Keyword...)
		dst = append(dst, '=')
	}
	return s.Value.AppendString(dst)
}

// Spec returns the first specifier with the given uppercase keyword or nil.
func Spec(specs []*Specifier, keyword string) *Specifier {
	for _, s := range specs {
		if s.Keyword == keyword {
			return s
		}
	}
	return nil
}

type ReadStmt struct {
	StmtBase
	Format Expression   // Format of `read fmt, items` form, nil for the control-list form.
	Specs  []*Specifier // Control list, positional unit and format have empty Keyword.
	Items  []Expression // Input items.
}

func (rs *ReadStmt) AppendString(dst []byte) []byte {
	return appendIO(dst, "READ", rs.Format, rs.Specs, rs.Items)
}

type WriteStmt struct {
	StmtBase
	Specs []*Specifier
	Items []Expression
}

func (ws *WriteStmt) AppendString(dst []byte) []byte {
	return appendIO(dst, "WRITE", nil, ws.Specs, ws.Items)
}

type PrintStmt struct {
	StmtBase
	Format Expression
	Items  []Expression
}

func (ps *PrintStmt) AppendString(dst []byte) []byte {
	return appendIO(dst, "PRINT", ps.Format, nil, ps.Items)
}

type OpenStmt struct {
	StmtBase
	Specs []*Specifier
}

func (o *OpenStmt) AppendString(dst []byte) []byte {
	return appendIO(dst, "OPEN", nil, o.Specs, nil)
}

type CloseStmt struct {
	StmtBase
	Specs []*Specifier
}

func (cs *CloseStmt) AppendString(dst []byte) []byte {
	return appendIO(dst, "CLOSE", nil, cs.Specs, nil)
}

type InquireStmt struct {
	StmtBase
	Specs []*Specifier
	Items []Expression // Output items of INQUIRE(IOLENGTH=...) form.
}

func (is *InquireStmt) AppendString(dst []byte) []byte {
	return appendIO(dst, "INQUIRE", nil, is.Specs, is.Items)
}

func appendIO(dst []byte, keyword string, format Expression, specs []*Specifier, items []Expression) []byte {
	dst = append(dst, keyword...)
	if format != nil {
		dst = append(dst, ' ')
		dst = format.AppendString(dst)
		if len(items) > 0 {
			dst = append(dst, ", "...)
		}
	} else {
		dst = append(dst, '(')
		for i, s := range specs {
			if i > 0 {
				dst = append(dst, ", "...)
			}
			dst = s.AppendString(dst)
		}
		dst = append(dst, ')')
		if len(items) > 0 {
			dst = append(dst, ' ')
		}
	}
	return appendExprList(dst, items)
}

// ImageControlKind enumerates the standalone image control statements.
// CRITICAL and CHANGE TEAM are constructs and ALLOCATE, DEALLOCATE and
// CALL MOVE_ALLOC are image control statements only when a coarray is involved.
type ImageControlKind uint8

const (
	SyncAll ImageControlKind = iota
	SyncImages
	SyncMemory
	SyncTeam
	EventPost
	EventWait
	FormTeam
	Lock
	Unlock
)

func (k ImageControlKind) String() string {
	switch k {
	case SyncAll:
		return "SYNC ALL"
	case SyncImages:
		return "SYNC IMAGES"
	case SyncMemory:
		return "SYNC MEMORY"
	case SyncTeam:
		return "SYNC TEAM"
	case EventPost:
		return "EVENT POST"
	case EventWait:
		return "EVENT WAIT"
	case FormTeam:
		return "FORM TEAM"
	case Lock:
		return "LOCK"
	case Unlock:
		return "UNLOCK"
	}
	return "<invalid image control>"
}

// ImageControlStmt is one of SYNC ALL, SYNC IMAGES, SYNC MEMORY, SYNC TEAM,
// EVENT POST, EVENT WAIT, FORM TEAM, LOCK and UNLOCK.
type ImageControlStmt struct {
	StmtBase
	Kind  ImageControlKind
	Args  []Expression // Image set, event, lock, team number and team variables.
	Specs []*Specifier // STAT=, ERRMSG=, ACQUIRED_LOCK=, UNTIL_COUNT=, NEW_INDEX=
}

func (ic *ImageControlStmt) AppendString(dst []byte) []byte {
	dst = append(dst, ic.Kind.String()...)
	if len(ic.Args) == 0 && len(ic.Specs) == 0 {
		return dst
	}
	dst = append(dst, " ("...)
	dst = appendExprList(dst, ic.Args)
	for i, s := range ic.Specs {
		if i > 0 || len(ic.Args) > 0 {
			dst = append(dst, ", "...)
		}
		dst = s.AppendString(dst)
	}
	return append(dst, ')')
}

//
// Expressions.
//

type Identifier struct {
	Position
	Name string
}

func (id *Identifier) expressionNode() {}
func (id *Identifier) AppendString(dst []byte) []byte {
	return append(dst, id.Name...)
}

type IntegerLiteral struct {
	Position
	Raw   string // As written, including any kind suffix.
	Value int64
}

func (il *IntegerLiteral) expressionNode() {}
func (il *IntegerLiteral) AppendString(dst []byte) []byte {
	return append(dst, il.Raw...)
}

type RealLiteral struct {
	Position
	Raw   string
	Value float64
}

func (rl *RealLiteral) expressionNode() {}
func (rl *RealLiteral) AppendString(dst []byte) []byte {
	return append(dst, rl.Raw...)
}

type StringLiteral struct {
	Position
	Value string
}

func (sl *StringLiteral) expressionNode() {}
func (sl *StringLiteral) AppendString(dst []byte) []byte {
	return strconv.AppendQuote(dst, sl.Value)
}

type LogicalLiteral struct {
	Position
	Value bool
}

func (ll *LogicalLiteral) expressionNode() {}
func (ll *LogicalLiteral) AppendString(dst []byte) []byte {
	if ll.Value {
		return append(dst, ".TRUE."...)
	}
	return append(dst, ".FALSE."...)
}

// Star is an asterisk in a unit, format, length or bound position.
type Star struct {
	Position
}

func (s *Star) expressionNode()                {}
func (s *Star) AppendString(dst []byte) []byte { return append(dst, '*') }

type BinaryExpr struct {
	Position
	Op    token.Token
	Left  Expression
	Right Expression
}

func (be *BinaryExpr) expressionNode() {}
func (be *BinaryExpr) AppendString(dst []byte) []byte {
	dst = be.Left.AppendString(dst)
	dst = append(dst, ' ')
	dst = append(dst, be.Op.String()...)
	dst = append(dst, ' ')
	return be.Right.AppendString(dst)
}

type UnaryExpr struct {
	Position
	Op      token.Token
	Operand Expression
}

func (ue *UnaryExpr) expressionNode() {}
func (ue *UnaryExpr) AppendString(dst []byte) []byte {
	dst = append(dst, ue.Op.String()...)
	if ue.Op == token.NOT {
		dst = append(dst, ' ')
	}
	return ue.Operand.AppendString(dst)
}

type ParenExpr struct {
	Position
	Expr Expression
}

func (pe *ParenExpr) expressionNode() {}
func (pe *ParenExpr) AppendString(dst []byte) []byte {
	dst = append(dst, '(')
	dst = pe.Expr.AppendString(dst)
	return append(dst, ')')
}

// FunctionCall is a parenthesized reference `f(args)`. The parser cannot
// tell function references from array element references, so both are
// represented by FunctionCall; the symbol of Func tells them apart.
type FunctionCall struct {
	Position
	Func Expression // Identifier or ComponentAccess.
	Args []Expression
}

func (fc *FunctionCall) expressionNode() {}
func (fc *FunctionCall) AppendString(dst []byte) []byte {
	dst = fc.Func.AppendString(dst)
	dst = append(dst, '(')
	dst = appendExprList(dst, fc.Args)
	return append(dst, ')')
}

// ComponentAccess is `base%component`.
type ComponentAccess struct {
	Position
	Base      Expression
	Component *Identifier
}

func (ca *ComponentAccess) expressionNode() {}
func (ca *ComponentAccess) AppendString(dst []byte) []byte {
	dst = ca.Base.AppendString(dst)
	dst = append(dst, '%')
	return append(dst, ca.Component.Name...)
}

// CoarrayRef is a coindexed reference `base[cosubscripts]`.
type CoarrayRef struct {
	Position
	Base         Expression
	Cosubscripts []Expression
}

func (cr *CoarrayRef) expressionNode() {}
func (cr *CoarrayRef) AppendString(dst []byte) []byte {
	dst = cr.Base.AppendString(dst)
	dst = append(dst, '[')
	dst = appendExprList(dst, cr.Cosubscripts)
	return append(dst, ']')
}

// KeywordArg is a `keyword=value` actual argument.
type KeywordArg struct {
	Position
	Keyword string
	Value   Expression
}

func (ka *KeywordArg) expressionNode() {}
func (ka *KeywordArg) AppendString(dst []byte) []byte {
	dst = append(dst, ka.Keyword...)
	dst = append(dst, '=')
	return ka.Value.AppendString(dst)
}

// RangeExpr is a subscript triplet or array bound `start:end:stride`.
type RangeExpr struct {
	Position
	Start  Expression // nil if omitted
	End    Expression // nil if omitted
	Stride Expression // nil if omitted
}

func (re *RangeExpr) expressionNode() {}
func (re *RangeExpr) AppendString(dst []byte) []byte {
	if re.Start != nil {
		dst = re.Start.AppendString(dst)
	}
	dst = append(dst, ':')
	if re.End != nil {
		dst = re.End.AppendString(dst)
	}
	if re.Stride != nil {
		dst = append(dst, ':')
		dst = re.Stride.AppendString(dst)
	}
	return dst
}

// ImpliedDoLoop is `(items, var = start, end [, stride])` in I/O lists and array constructors.
type ImpliedDoLoop struct {
	Position
	Items  []Expression
	Var    *Identifier
	Start  Expression
	End    Expression
	Stride Expression // nil if omitted
}

func (id *ImpliedDoLoop) expressionNode() {}
func (id *ImpliedDoLoop) AppendString(dst []byte) []byte {
	dst = append(dst, '(')
	dst = appendExprList(dst, id.Items)
	dst = append(dst, ", "...)
	dst = append(dst, id.Var.Name...)
	dst = append(dst, " = "...)
	dst = id.Start.AppendString(dst)
	dst = append(dst, ", "...)
	dst = id.End.AppendString(dst)
	if id.Stride != nil {
		dst = append(dst, ", "...)
		dst = id.Stride.AppendString(dst)
	}
	return append(dst, ')')
}

type ArrayConstructor struct {
	Position
	Values []Expression
}

func (ac *ArrayConstructor) expressionNode() {}
func (ac *ArrayConstructor) AppendString(dst []byte) []byte {
	dst = append(dst, "[ "...)
	dst = appendExprList(dst, ac.Values)
	return append(dst, " ]"...)
}

func appendExprList(dst []byte, exprs []Expression) []byte {
	for i, e := range exprs {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = e.AppendString(dst)
	}
	return dst
}

// String returns the AppendString representation of a node.
func String(n Node) string {
	return string(n.AppendString(nil))
}

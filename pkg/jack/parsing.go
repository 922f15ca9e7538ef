package jack

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	pc "github.com/prataprc/goparsec"
	"its-hmny.dev/nand2tetris/pkg/utils"
)

// ----------------------------------------------------------------------------
// Parser Combinator(s)

// This section defines the Parser Combinator for every token & construct of the Jack language.
//
// Unlike the VM and Hack assembly grammars (flat, line-oriented), Jack is a nested, block
// structured language: classes contain fields and subroutines, subroutines contain variable
// declarations and statements, statements contain expressions and (for if/while) nested
// statements. Expressions recurse into themselves (parenthesized sub-expressions, array
// indexing, nested function calls), so 'pExpr' and 'pTerm' are forward declared and wired
// together in 'init()' to break the initialization cycle a package-level 'var' block can't
// express directly.

// Top level object, will generate the traversable Abstract Syntax Tree based on the input plus the PCs below.
var ast = pc.NewAST("jack_program", 0)

var (
	pClass = ast.And("class_decl", nil,
		ast.Kleene("header_comments", nil, pComment),
		pc.Atom("class", "CLASS"), pIdent, pLBrace,
		ast.Kleene("members", nil, ast.OrdChoice("member", nil, pFieldDecl, pComment)),
		ast.Kleene("subroutines", nil, ast.OrdChoice("subroutine", nil, pSubroutineDecl, pComment)),
		pRBrace,
	)

	// Field declaration, compliant with: "{static|field} {type} {name} (, {name})* ;"
	pFieldDecl = ast.And("field_decl", nil,
		pFieldQualifier, pDataType, pIdent,
		ast.Kleene("more_vars", nil, ast.And("extra_var", nil, pComma, pIdent)),
		pSemi,
	)
	pFieldQualifier = ast.OrdChoice("field_qualifier", nil, pc.Atom("static", "STATIC"), pc.Atom("field", "FIELD"))

	// Subroutine declaration, compliant with:
	// "{constructor|function|method} {void|type} {name} ( {type name (, type name)*} ) { {var_decl}* {statement}* }"
	pSubroutineDecl = ast.And("subroutine_decl", nil,
		pSubroutineQualifier, pReturnType, pIdent,
		pLParen, ast.Kleene("params", nil, ast.And("param", nil, pDataType, pIdent), pComma), pRParen,
		pLBrace,
		ast.Kleene("var_decls", nil, ast.OrdChoice("var_decl_item", nil, pVarDecl, pComment)),
		ast.Kleene("statements", nil, ast.OrdChoice("statement_item", nil, pStatementRef, pComment)),
		pRBrace,
	)
	pSubroutineQualifier = ast.OrdChoice("subroutine_qualifier", nil,
		pc.Atom("constructor", "CTOR"), pc.Atom("function", "FUNC"), pc.Atom("method", "METHOD"))
	pReturnType = ast.OrdChoice("return_type", nil, pc.Atom("void", "VOID"), pDataType)

	// Local variable declaration, compliant with: "var {type} {name} (, {name})* ;"
	pVarDecl = ast.And("var_decl", nil,
		pc.Atom("var", "VAR"), pDataType, pIdent,
		ast.Kleene("more_vars", nil, ast.And("extra_var", nil, pComma, pIdent)),
		pSemi,
	)

	// Parser combinator for comments in a Jack program, either single or multi line
	pComment = ast.OrdChoice("comment", nil,
		ast.And("sl_comment", nil, pc.Atom("//", "//"), pc.Token(`(?m).*$`, "COMMENT")),
		ast.And("ml_comment", nil, pc.Token(`/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`, "COMMENT")),
	)
)

// 'pStatement' recurses into itself through 'pIfStmt'/'pWhileStmt' (a block's body is itself a
// list of statements), so like 'pExpr'/'pTerm' below it's declared bare here and wired together
// in 'init()', with 'pStatementRef' breaking the cycle the same way 'pExprRef'/'pTermRef' do.
var pStatement pc.Parser

func pStatementRef(s pc.Scanner) (pc.ParsecNode, pc.Scanner) { return pStatement(s) }

var (
	// Let statement, compliant with: "let {name} ([{index}])? = {expr} ;"
	// Uses 'pExprRef' (not bare 'pExpr'), same reason as 'pStatementRef' above: 'pExpr' is only
	// assigned inside 'init()', so a var initializer that captured it directly would wire in a
	// permanently-nil sub-parser instead of picking up the real one once 'init()' has run.
	pLetStmt = ast.And("let_stmt", nil,
		pc.Atom("let", "LET"), pIdent,
		pc.Maybe(nil, ast.And("index", nil, pLBracket, pExprRef, pRBracket)),
		pc.Atom("=", "ASSIGN"), pExprRef, pSemi,
	)

	// If statement, compliant with: "if ( {cond} ) { {stmt}* } (else { {stmt}* })?"
	pIfStmt = ast.And("if_stmt", nil,
		pc.Atom("if", "IF"), pLParen, pExprRef, pRParen,
		pLBrace, ast.Kleene("then_block", nil, pStatementRef), pRBrace,
		pc.Maybe(nil, ast.And("else_block", nil,
			pc.Atom("else", "ELSE"), pLBrace, ast.Kleene("stmts", nil, pStatementRef), pRBrace)),
	)

	// While statement, compliant with: "while ( {cond} ) { {stmt}* }"
	pWhileStmt = ast.And("while_stmt", nil,
		pc.Atom("while", "WHILE"), pLParen, pExprRef, pRParen,
		pLBrace, ast.Kleene("block", nil, pStatementRef), pRBrace,
	)

	// Do statement, compliant with: "do {func_call} ;"
	pDoStmt = ast.And("do_stmt", nil, pc.Atom("do", "DO"), pFuncCallExpr, pSemi)

	// Return statement, compliant with: "return ({expr})? ;"
	// The optional expression is wrapped in a named "return_expr" node (rather than a bare
	// 'pc.Maybe(nil, pExpr)') so the "return_stmt" node has a fixed, inspectable arity whether
	// or not a value is returned, same as "index" and "else_block" do for their own optionals.
	pReturnStmt = ast.And("return_stmt", nil, pc.Atom("return", "RETURN"),
		pc.Maybe(nil, ast.And("return_expr", nil, pExprRef)), pSemi)
)

// 'pExpr' and 'pTerm' recurse into one another (parens, array index, func call arguments all
// contain nested expressions) so they're declared here and wired together in 'init()'.
var (
	pExpr pc.Parser
	pTerm pc.Parser

	// Function call expression, compliant with: "({obj}.)? {name} ( {expr} (, {expr})* )"
	pFuncCallExpr = ast.And("func_call_expr", nil,
		pc.Maybe(nil, ast.And("qualifier", nil, pIdent, pDot)), pIdent,
		pLParen, ast.Kleene("args", nil, pExprRef, pComma), pRParen,
	)

	// Array indexing expression, compliant with: "{name} [ {expr} ]"
	pArrayExpr = ast.And("array_expr", nil, pIdent, pLBracket, pExprRef, pRBracket)

	// Parenthesized sub-expression, compliant with: "( {expr} )"
	pParenExpr = ast.And("paren_expr", nil, pLParen, pExprRef, pRParen)

	// Unary expression, compliant with: "{-|~} {term}"
	pUnaryExpr = ast.And("unary_expr", nil, pUnaryOp, pTermRef)

	// Variable read expression, just a bare identifier (lowest priority alternative for 'pTerm')
	pVarExpr = ast.And("var_expr", nil, pIdent)

	// Literal expression: integer, string, boolean, char or the 'null' keyword
	pLiteral = ast.OrdChoice("literal_expr", nil,
		pc.Int(), pc.Token(`"(?:\\.|[^"\\])*"`, "STRING"), pc.Token(`'(?:\\.|[^'\\])'`, "CHAR"),
		pc.Atom("true", "TRUE"), pc.Atom("false", "FALSE"), pc.Atom("null", "NULL"),
	)
)

// 'pExprRef'/'pTermRef' forward to the package-level 'pExpr'/'pTerm' at parse time (not at
// package-init time), this is what actually breaks the 'pExpr' <-> 'pTerm' initialization cycle:
// the parser values below are constructed while 'pExpr'/'pTerm' are still nil, but by the time
// they're invoked (during an actual parse) 'init()' has already replaced them with the real thing.
func pExprRef(s pc.Scanner) (pc.ParsecNode, pc.Scanner) { return pExpr(s) }
func pTermRef(s pc.Scanner) (pc.ParsecNode, pc.Scanner) { return pTerm(s) }

func init() {
	pTerm = ast.OrdChoice("term", nil,
		pFuncCallExpr, pArrayExpr, pParenExpr, pUnaryExpr, pLiteral, pVarExpr,
	)
	pExpr = ast.And("expression", nil, pTerm, ast.Kleene("more_terms", nil, ast.And("op_term", nil, pBinOp, pTermRef)))

	pStatement = ast.OrdChoice("statement", nil, pLetStmt, pIfStmt, pWhileStmt, pDoStmt, pReturnStmt)
}

var (
	// Generic Identifier parser (for class, subroutine and variable names)
	pIdent = pc.Token(`[A-Za-z_][0-9a-zA-Z_]*`, "IDENT")

	pDot      = pc.Atom(".", "DOT")
	pSemi     = pc.Atom(";", "SEMI")
	pComma    = pc.Atom(",", "COMMA")
	pLBrace   = pc.Atom("{", "LBRACE")
	pRBrace   = pc.Atom("}", "RBRACE")
	pLParen   = pc.Atom("(", "LPAREN")
	pRParen   = pc.Atom(")", "RPAREN")
	pLBracket = pc.Atom("[", "LBRACKET")
	pRBracket = pc.Atom("]", "RBRACKET")

	// Available primitive and object data types for fields, variables and return types
	pDataType = ast.OrdChoice("data_type", nil,
		pc.Atom("int", "INT"), pc.Atom("char", "CHAR"), pc.Atom("boolean", "BOOLEAN"), pIdent,
	)

	// Binary operators, Jack has no operator precedence: every expression is evaluated left to right
	pBinOp = ast.OrdChoice("bin_op", nil,
		pc.Atom("+", "PLUS"), pc.Atom("-", "MINUS"), pc.Atom("*", "STAR"), pc.Atom("/", "SLASH"),
		pc.Atom("&", "AND"), pc.Atom("|", "OR"), pc.Atom("<", "LT"), pc.Atom(">", "GT"), pc.Atom("=", "EQ"),
	)

	// Unary operators, used for arithmetic negation and boolean negation
	pUnaryOp = ast.OrdChoice("unary_op", nil, pc.Atom("-", "MINUS"), pc.Atom("~", "TILDE"))
)

// ----------------------------------------------------------------------------
// Jack Parser

// This section defines the Parser for the nand2tetris Jack language.
//
// It uses parser combinators to obtain the AST from the source code (the latter can be provided)
// in multiple ways using a generic io.Reader, the library reads up the feature flags (as env vars):
// - PARSEC_DEBUG: Verbose logging to inspect which of the PCs gets triggered and match
// - EXPORT_AST:   Exports in the DEBUG_FOLDER a Graphviz representation of the AST
// - PRINT_AST:    Print on the stdout a textual representation of the AST
type Parser struct{ reader io.Reader }

// Initializes and returns to the caller a brand new 'Parser' struct.
// Requires the argument io.Reader 'r' to be valid and usable.
func NewParser(r io.Reader) Parser {
	return Parser{reader: r}
}

// Parser entrypoint divides the 2 phases of the parsing pipeline
// Text --> AST: This step is done using PCs and returns a generic traversable AST
// AST --> IR: This step is done by traversing the AST and extracting the 'jack.Class'
func (p *Parser) Parse() (Class, error) {
	content, err := io.ReadAll(p.reader)
	if err != nil {
		return Class{}, fmt.Errorf("cannot read from 'io.Reader': %s", err)
	}

	root, success := p.FromSource(content)
	if !success {
		return Class{}, fmt.Errorf("failed to parse AST from input content")
	}

	return p.FromAST(root)
}

// Scans the textual input stream coming from the 'reader' method and returns a traversable AST
// (Abstract Syntax Tree) that can be eventually visited to extract/transform the info available.
func (p *Parser) FromSource(source []byte) (pc.Queryable, bool) {

	// Feature flag: Enable 'goparsec' library's debug logs
	if os.Getenv("PARSEC_DEBUG") != "" {
		ast.SetDebug()
	}

	// We generate the traversable Abstract Syntax Tree from the source content
	root, _ := ast.Parsewith(pClass, pc.NewScanner(source))

	// Feature flag: Enables export of the AST as Dot file (debug.ast.dot)
	if os.Getenv("EXPORT_AST") != "" {
		file, _ := os.Create(fmt.Sprintf("%s/debug.ast.dot", os.Getenv("DEBUG_FOLDER")))
		defer file.Close()

		file.Write([]byte(ast.Dotstring("\"Jack AST\"")))
	}

	// Feature flag: Enables pretty printing of the AST on the console
	if os.Getenv("PRINT_AST") != "" {
		ast.Prettyprint()
	}

	return root, root != nil
}

// This function takes the root node of the raw parsed AST and does a DFS on it parsing
// one by one each subtree and returning a 'jack.Class' that can be used as in-memory and
// type-safe AST not dependent on the parsing library used.
func (p *Parser) FromAST(root pc.Queryable) (Class, error) {
	if root.GetName() != "class_decl" {
		return Class{}, fmt.Errorf("expected node 'class_decl', found %s", root.GetName())
	}

	children := root.GetChildren()
	if len(children) < 4 {
		return Class{}, fmt.Errorf("malformed 'class_decl' node, got %d children", len(children))
	}

	// children: [header_comments, "class", IDENT, "{", members, subroutines, "}"]
	class := Class{
		Name:        children[2].GetValue(),
		Fields:      utils.OrderedMap[string, Variable]{},
		Subroutines: utils.OrderedMap[string, Subroutine]{},
	}

	members := children[4]
	for _, member := range members.GetChildren() {
		if member.GetName() == "comment" {
			continue
		}

		fields, err := p.HandleFieldDecl(member)
		if err != nil {
			return Class{}, fmt.Errorf("error handling field declaration in class '%s': %w", class.Name, err)
		}
		for _, field := range fields {
			class.Fields.Set(field.Name, field)
		}
	}

	subroutines := children[5]
	for _, subroutine := range subroutines.GetChildren() {
		if subroutine.GetName() == "comment" {
			continue
		}

		decl, err := p.HandleSubroutineDecl(subroutine)
		if err != nil {
			return Class{}, fmt.Errorf("error handling subroutine declaration in class '%s': %w", class.Name, err)
		}
		class.Subroutines.Set(decl.Name, decl)
	}

	return class, nil
}

// Specialized function to convert a "field_decl" node to a list of 'jack.Variable'.
func (p *Parser) HandleFieldDecl(node pc.Queryable) ([]Variable, error) {
	children := node.GetChildren()
	if len(children) < 3 {
		return nil, fmt.Errorf("malformed 'field_decl' node, got %d children", len(children))
	}

	// children: [qualifier, data_type, IDENT, more_vars]
	varType := Local
	if children[0].GetValue() == "static" {
		varType = Static
	} else {
		varType = Field
	}

	dataType, className := parseDataType(children[1].GetValue())
	vars := []Variable{{Name: children[2].GetValue(), Type: varType, DataType: dataType, ClassName: className}}

	for _, extra := range children[3].GetChildren() {
		// 'extra_var' node: [",", IDENT]
		name := extra.GetChildren()[1].GetValue()
		vars = append(vars, Variable{Name: name, Type: varType, DataType: dataType, ClassName: className})
	}

	return vars, nil
}

// Specialized function to convert a "var_decl" node to a list of 'jack.Variable'.
func (p *Parser) HandleVarDecl(node pc.Queryable) ([]Variable, error) {
	children := node.GetChildren()
	if len(children) < 4 {
		return nil, fmt.Errorf("malformed 'var_decl' node, got %d children", len(children))
	}

	// children: ["var", data_type, IDENT, more_vars]
	dataType, className := parseDataType(children[1].GetValue())
	vars := []Variable{{Name: children[2].GetValue(), Type: Local, DataType: dataType, ClassName: className}}

	for _, extra := range children[3].GetChildren() {
		name := extra.GetChildren()[1].GetValue()
		vars = append(vars, Variable{Name: name, Type: Local, DataType: dataType, ClassName: className})
	}

	return vars, nil
}

// Specialized function to convert a "subroutine_decl" node to a 'jack.Subroutine'.
func (p *Parser) HandleSubroutineDecl(node pc.Queryable) (Subroutine, error) {
	children := node.GetChildren()
	if len(children) < 7 {
		return Subroutine{}, fmt.Errorf("malformed 'subroutine_decl' node, got %d children", len(children))
	}

	// children: [qualifier, return_type, IDENT, "(", params, ")", "{", var_decls, statements, "}"]
	subroutine := Subroutine{
		Name:      children[2].GetValue(),
		Arguments: utils.OrderedMap[string, Variable]{},
	}

	switch children[0].GetValue() {
	case "constructor":
		subroutine.Type = Constructor
	case "function":
		subroutine.Type = Function
	case "method":
		subroutine.Type = Method
	default:
		return Subroutine{}, fmt.Errorf("unrecognized subroutine qualifier '%s'", children[0].GetValue())
	}

	if children[1].GetValue() == "void" {
		subroutine.Return = Void
	} else {
		subroutine.Return, _ = parseDataType(children[1].GetValue())
	}

	params := children[4]
	for _, param := range params.GetChildren() {
		// 'param' node: [data_type, IDENT]
		paramChildren := param.GetChildren()
		dataType, className := parseDataType(paramChildren[0].GetValue())
		arg := Variable{Name: paramChildren[1].GetValue(), Type: Parameter, DataType: dataType, ClassName: className}
		subroutine.Arguments.Set(arg.Name, arg)
	}

	varDecls := children[7]
	for _, decl := range varDecls.GetChildren() {
		if decl.GetName() == "comment" {
			continue
		}

		vars, err := p.HandleVarDecl(decl)
		if err != nil {
			return Subroutine{}, fmt.Errorf("error handling local variable declaration: %w", err)
		}
		for _, v := range vars {
			subroutine.Statements = append(subroutine.Statements, VarStmt{Vars: []Variable{v}})
		}
	}

	statements := children[8]
	for _, stmt := range statements.GetChildren() {
		if stmt.GetName() == "comment" {
			continue
		}

		handled, err := p.HandleStatement(stmt)
		if err != nil {
			return Subroutine{}, fmt.Errorf("error handling statement in subroutine '%s': %w", subroutine.Name, err)
		}
		subroutine.Statements = append(subroutine.Statements, handled)
	}

	return subroutine, nil
}

// Generalized function to convert any "statement"-tagged node to its 'jack.Statement' counterpart.
func (p *Parser) HandleStatement(node pc.Queryable) (Statement, error) {
	// 'ast.OrdChoice' wraps the matched alternative as a single child of the "statement" node.
	actual := node
	if node.GetName() == "statement" || node.GetName() == "statement_item" {
		children := node.GetChildren()
		if len(children) != 1 {
			return nil, fmt.Errorf("malformed 'statement' node, got %d children", len(children))
		}
		actual = children[0]
	}

	switch actual.GetName() {
	case "let_stmt":
		return p.HandleLetStmt(actual)
	case "if_stmt":
		return p.HandleIfStmt(actual)
	case "while_stmt":
		return p.HandleWhileStmt(actual)
	case "do_stmt":
		return p.HandleDoStmt(actual)
	case "return_stmt":
		return p.HandleReturnStmt(actual)
	default:
		return nil, fmt.Errorf("unrecognized statement node: %s", actual.GetName())
	}
}

// Specialized function to convert a "let_stmt" node to a 'jack.LetStmt'.
func (p *Parser) HandleLetStmt(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	if len(children) < 6 {
		return nil, fmt.Errorf("malformed 'let_stmt' node, got %d children", len(children))
	}

	// children: ["let", IDENT, index?, "=", expr, ";"] -- the "index" slot is always present
	// (a named Maybe wrapper, see 'pLetStmt'), so "=" is always at index 3 and 'expr' at 4.
	name := children[1].GetValue()
	maybeIndex := children[2]

	if maybeIndex != nil && maybeIndex.GetName() == "index" {
		index, err := p.HandleExpression(maybeIndex.GetChildren()[1])
		if err != nil {
			return nil, fmt.Errorf("error handling index expression for '%s': %w", name, err)
		}

		rhs, err := p.HandleExpression(children[4])
		if err != nil {
			return nil, fmt.Errorf("error handling RHS expression for '%s': %w", name, err)
		}

		return LetStmt{Lhs: ArrayExpr{Var: name, Index: index}, Rhs: rhs}, nil
	}

	rhs, err := p.HandleExpression(children[4])
	if err != nil {
		return nil, fmt.Errorf("error handling RHS expression for '%s': %w", name, err)
	}

	return LetStmt{Lhs: VarExpr{Var: name}, Rhs: rhs}, nil
}

// Specialized function to convert an "if_stmt" node to a 'jack.IfStmt'.
func (p *Parser) HandleIfStmt(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	if len(children) < 8 {
		return nil, fmt.Errorf("malformed 'if_stmt' node, got %d children", len(children))
	}

	// children: ["if", "(", cond, ")", "{", then_block, "}", else_block?] -- the trailing
	// "else_block" slot is always present (a bare Maybe still occupies its slot, same as
	// "index"/"return_expr" elsewhere), so the length is always 8; only its name tells us
	// whether an 'else' clause actually matched.
	cond, err := p.HandleExpression(children[2])
	if err != nil {
		return nil, fmt.Errorf("error handling 'if' condition: %w", err)
	}

	thenBlock, err := p.handleBlock(children[5])
	if err != nil {
		return nil, fmt.Errorf("error handling 'then' block: %w", err)
	}

	stmt := IfStmt{Condition: cond, ThenBlock: thenBlock}

	if children[7] != nil && children[7].GetName() == "else_block" {
		elseChildren := children[7].GetChildren()
		// else_block: ["else", "{", stmts, "}"]
		elseBlock, err := p.handleBlock(elseChildren[2])
		if err != nil {
			return nil, fmt.Errorf("error handling 'else' block: %w", err)
		}
		stmt.ElseBlock = elseBlock
	}

	return stmt, nil
}

// Specialized function to convert a "while_stmt" node to a 'jack.WhileStmt'.
func (p *Parser) HandleWhileStmt(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	if len(children) < 7 {
		return nil, fmt.Errorf("malformed 'while_stmt' node, got %d children", len(children))
	}

	// children: ["while", "(", cond, ")", "{", block, "}"]
	cond, err := p.HandleExpression(children[2])
	if err != nil {
		return nil, fmt.Errorf("error handling 'while' condition: %w", err)
	}

	block, err := p.handleBlock(children[5])
	if err != nil {
		return nil, fmt.Errorf("error handling 'while' block: %w", err)
	}

	return WhileStmt{Condition: cond, Block: block}, nil
}

// Specialized function to convert a "do_stmt" node to a 'jack.DoStmt'.
func (p *Parser) HandleDoStmt(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	if len(children) < 2 {
		return nil, fmt.Errorf("malformed 'do_stmt' node, got %d children", len(children))
	}

	call, err := p.HandleFuncCallExpr(children[1])
	if err != nil {
		return nil, fmt.Errorf("error handling 'do' function call: %w", err)
	}

	return DoStmt{FuncCall: call.(FuncCallExpr)}, nil
}

// Specialized function to convert a "return_stmt" node to a 'jack.ReturnStmt'.
func (p *Parser) HandleReturnStmt(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	// children: ["return", return_expr?, ";"] -- the middle slot is always present (a named
	// Maybe wrapper, see 'pReturnStmt') but only carries a value when one was returned.
	if len(children) < 3 || children[1] == nil || children[1].GetName() != "return_expr" {
		return ReturnStmt{}, nil
	}

	expr, err := p.HandleExpression(children[1].GetChildren()[0])
	if err != nil {
		return nil, fmt.Errorf("error handling 'return' expression: %w", err)
	}

	return ReturnStmt{Expr: expr}, nil
}

// Converts a Kleene-matched block of statement nodes into a '[]jack.Statement'.
func (p *Parser) handleBlock(block pc.Queryable) ([]Statement, error) {
	statements := []Statement{}
	for _, node := range block.GetChildren() {
		if node.GetName() == "comment" {
			continue
		}

		stmt, err := p.HandleStatement(node)
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	return statements, nil
}

// Generalized function to convert an "expression" node to its 'jack.Expression' counterpart.
//
// Jack has no operator precedence: "more_terms" is folded left to right, in parse order.
func (p *Parser) HandleExpression(node pc.Queryable) (Expression, error) {
	if node.GetName() != "expression" {
		return p.HandleTerm(node)
	}

	children := node.GetChildren()
	if len(children) < 2 {
		return nil, fmt.Errorf("malformed 'expression' node, got %d children", len(children))
	}

	lhs, err := p.HandleTerm(children[0])
	if err != nil {
		return nil, fmt.Errorf("error handling first term of expression: %w", err)
	}

	for _, opTerm := range children[1].GetChildren() {
		// 'op_term' node: [bin_op, term]
		opChildren := opTerm.GetChildren()
		rhs, err := p.HandleTerm(opChildren[1])
		if err != nil {
			return nil, fmt.Errorf("error handling subsequent term of expression: %w", err)
		}

		exprType, err := parseBinOp(opChildren[0].GetValue())
		if err != nil {
			return nil, err
		}

		lhs = BinaryExpr{Type: exprType, Lhs: lhs, Rhs: rhs}
	}

	return lhs, nil
}

// Specialized function to convert a "term" node to its concrete 'jack.Expression' counterpart.
func (p *Parser) HandleTerm(node pc.Queryable) (Expression, error) {
	actual := node
	if node.GetName() == "term" {
		children := node.GetChildren()
		if len(children) != 1 {
			return nil, fmt.Errorf("malformed 'term' node, got %d children", len(children))
		}
		actual = children[0]
	}

	switch actual.GetName() {
	case "func_call_expr":
		return p.HandleFuncCallExpr(actual)
	case "array_expr":
		return p.HandleArrayExpr(actual)
	case "paren_expr":
		return p.HandleExpression(actual.GetChildren()[1])
	case "unary_expr":
		return p.HandleUnaryExpr(actual)
	case "literal_expr":
		return p.HandleLiteralExpr(actual)
	case "var_expr":
		return VarExpr{Var: actual.GetChildren()[0].GetValue()}, nil
	default:
		return nil, fmt.Errorf("unrecognized term node: %s", actual.GetName())
	}
}

// Specialized function to convert a "func_call_expr" node to a 'jack.FuncCallExpr'.
func (p *Parser) HandleFuncCallExpr(node pc.Queryable) (Expression, error) {
	children := node.GetChildren()
	if len(children) < 5 {
		return nil, fmt.Errorf("malformed 'func_call_expr' node, got %d children", len(children))
	}

	// children: [qualifier?, IDENT, "(", args, ")"] -- the leading "qualifier" slot is
	// always present (a bare Maybe still occupies its slot), so IDENT is always at index 1.
	call := FuncCallExpr{FuncName: children[1].GetValue()}

	if maybeQualifier := children[0]; maybeQualifier != nil && maybeQualifier.GetName() == "qualifier" {
		call.IsExtCall = true
		call.Var = maybeQualifier.GetChildren()[0].GetValue()
	}

	for _, arg := range children[3].GetChildren() {
		expr, err := p.HandleExpression(arg)
		if err != nil {
			return nil, fmt.Errorf("error handling argument of call to '%s': %w", call.FuncName, err)
		}
		call.Arguments = append(call.Arguments, expr)
	}

	return call, nil
}

// Specialized function to convert an "array_expr" node to a 'jack.ArrayExpr'.
func (p *Parser) HandleArrayExpr(node pc.Queryable) (Expression, error) {
	children := node.GetChildren()
	if len(children) < 4 {
		return nil, fmt.Errorf("malformed 'array_expr' node, got %d children", len(children))
	}

	index, err := p.HandleExpression(children[2])
	if err != nil {
		return nil, fmt.Errorf("error handling array index expression: %w", err)
	}

	return ArrayExpr{Var: children[0].GetValue(), Index: index}, nil
}

// Specialized function to convert a "unary_expr" node to a 'jack.UnaryExpr'.
func (p *Parser) HandleUnaryExpr(node pc.Queryable) (Expression, error) {
	children := node.GetChildren()
	if len(children) < 2 {
		return nil, fmt.Errorf("malformed 'unary_expr' node, got %d children", len(children))
	}

	rhs, err := p.HandleTerm(children[1])
	if err != nil {
		return nil, fmt.Errorf("error handling unary expression operand: %w", err)
	}

	switch children[0].GetValue() {
	case "-":
		return UnaryExpr{Type: Minus, Rhs: rhs}, nil
	case "~":
		return UnaryExpr{Type: BoolNot, Rhs: rhs}, nil
	default:
		return nil, fmt.Errorf("unrecognized unary operator '%s'", children[0].GetValue())
	}
}

// Specialized function to convert a "literal_expr" node to a 'jack.LiteralExpr'.
func (p *Parser) HandleLiteralExpr(node pc.Queryable) (Expression, error) {
	value := node.GetValue()

	switch {
	case value == "true", value == "false":
		return LiteralExpr{Type: Bool, Value: value}, nil
	case value == "null":
		return LiteralExpr{Type: Null, Value: value}, nil
	case strings.HasPrefix(value, `"`):
		return LiteralExpr{Type: String, Value: strings.Trim(value, `"`)}, nil
	case strings.HasPrefix(value, "'"):
		return LiteralExpr{Type: Char, Value: strings.Trim(value, "'")}, nil
	default:
		if _, err := strconv.ParseUint(value, 10, 16); err != nil {
			return nil, fmt.Errorf("error parsing integer literal '%s': %w", value, err)
		}
		return LiteralExpr{Type: Int, Value: value}, nil
	}
}

// ----------------------------------------------------------------------------
// Helpers

// Maps a 'data_type' token to its 'jack.DataType' counterpart, also returning the class
// name when the token isn't one of the built-in primitives (i.e. it names an object type).
func parseDataType(token string) (DataType, string) {
	switch token {
	case "int":
		return Int, ""
	case "char":
		return Char, ""
	case "boolean":
		return Bool, ""
	default:
		return Object, token
	}
}

// Maps a 'bin_op' token to its 'jack.ExprType' counterpart.
func parseBinOp(token string) (ExprType, error) {
	switch token {
	case "+":
		return Plus, nil
	case "-":
		return Minus, nil
	case "*":
		return Multiply, nil
	case "/":
		return Divide, nil
	case "&":
		return BoolAnd, nil
	case "|":
		return BoolOr, nil
	case "<":
		return LessThan, nil
	case ">":
		return GreatThan, nil
	case "=":
		return Equal, nil
	default:
		return "", fmt.Errorf("unrecognized binary operator '%s'", token)
	}
}

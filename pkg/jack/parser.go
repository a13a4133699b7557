package jack

import (
	"fmt"
	"io"
)

// ----------------------------------------------------------------------------
// Jack Parser

// Parser is a hand-written recursive descent parser with single-token lookahead, driven
// by the Token stream Lexer produces. The Jack grammar has exactly the two ambiguous
// spots a textbook recursive descent parser always has to special-case:
//   - a bare identifier can start a variable reference, an array access, or either form
//     of subroutine call — resolved by peeking one token past the identifier
//   - expressions have no operator precedence, so they're parsed strictly left-to-right
//     with no precedence climbing needed
//
// It reads in multiple ways using a generic io.Reader, the library reads up the feature
// flags (as env vars) — see Lexer for PARSEC_DEBUG/EXPORT_AST/PRINT_AST, which apply to
// the tokenizing phase this Parser builds on.
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser tokenizes r's contents up front and returns a Parser ready to consume them.
func NewParser(r io.Reader) (*Parser, error) {
	lexer := NewLexer(r)
	tokens, err := lexer.Tokenize()
	if err != nil {
		return nil, err
	}
	return &Parser{tokens: tokens}, nil
}

// NewParserFromTokens builds a Parser directly over an already-tokenized stream, useful
// for tests that want to exercise the grammar without round-tripping through the lexer.
func NewParserFromTokens(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) peek() (Token, bool) {
	return p.peekAt(0)
}

func (p *Parser) peekAt(offset int) (Token, bool) {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[idx], true
}

func (p *Parser) advance() (Token, error) {
	tok, ok := p.peek()
	if !ok {
		return Token{}, fmt.Errorf("unexpected end of input")
	}
	p.pos++
	return tok, nil
}

// expect consumes the next token, requiring it to match kind and (if value != "") value.
func (p *Parser) expect(kind TokenKind, value string) (Token, error) {
	tok, ok := p.peek()
	if !ok {
		return Token{}, fmt.Errorf("unexpected end of input, expected %s %q", kind, value)
	}
	if tok.Kind != kind || (value != "" && tok.Value != value) {
		return Token{}, fmt.Errorf("unexpected token %q (%s), expected %s %q", tok.Value, tok.Kind, kind, value)
	}
	return p.advance()
}

func (p *Parser) atSymbol(value string) bool {
	tok, ok := p.peek()
	return ok && tok.Kind == SymbolToken && tok.Value == value
}

func (p *Parser) atKeyword(values ...string) bool {
	tok, ok := p.peek()
	if !ok || tok.Kind != KeywordToken {
		return false
	}
	for _, v := range values {
		if tok.Value == v {
			return true
		}
	}
	return false
}

// ----------------------------------------------------------------------------
// Parse entrypoint

// Parse consumes the whole token stream and returns the single Class it describes: the
// Jack grammar only ever allows one class declaration per compilation unit (file).
func (p *Parser) Parse() (Class, error) {
	class, err := p.parseClass()
	if err != nil {
		return Class{}, err
	}
	if _, ok := p.peek(); ok {
		return Class{}, fmt.Errorf("unexpected trailing input after class declaration")
	}
	return class, nil
}

// classDecl: 'class' className '{' classVarDec* subroutineDec* '}'
func (p *Parser) parseClass() (Class, error) {
	if _, err := p.expect(KeywordToken, "class"); err != nil {
		return Class{}, err
	}
	name, err := p.expect(IdentToken, "")
	if err != nil {
		return Class{}, err
	}
	if _, err := p.expect(SymbolToken, "{"); err != nil {
		return Class{}, err
	}

	class := Class{Name: name.Value}

	for p.atKeyword("static", "field") {
		vars, err := p.parseClassVarDec()
		if err != nil {
			return Class{}, err
		}
		for _, v := range vars {
			class.Fields.Set(v.Name, v)
		}
	}

	for p.atKeyword("constructor", "function", "method") {
		sub, err := p.parseSubroutineDec()
		if err != nil {
			return Class{}, err
		}
		class.Subroutines.Set(sub.Name, sub)
	}

	if _, err := p.expect(SymbolToken, "}"); err != nil {
		return Class{}, err
	}
	return class, nil
}

// classVarDec: ('static'|'field') type varName (',' varName)* ';'
func (p *Parser) parseClassVarDec() ([]Variable, error) {
	kindTok, err := p.advance()
	if err != nil {
		return nil, err
	}
	kind := StaticVar
	if kindTok.Value == "field" {
		kind = FieldVar
	}

	dataType, err := p.parseType()
	if err != nil {
		return nil, err
	}

	var vars []Variable
	for {
		name, err := p.expect(IdentToken, "")
		if err != nil {
			return nil, err
		}
		vars = append(vars, Variable{Name: name.Value, Kind: kind, Type: dataType})

		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}

	if _, err := p.expect(SymbolToken, ";"); err != nil {
		return nil, err
	}
	return vars, nil
}

// type: 'int' | 'char' | 'boolean' | className
func (p *Parser) parseType() (DataType, error) {
	tok, err := p.advance()
	if err != nil {
		return DataType{}, err
	}

	switch {
	case tok.Kind == KeywordToken && tok.Value == "int":
		return DataType{Kind: IntType}, nil
	case tok.Kind == KeywordToken && tok.Value == "char":
		return DataType{Kind: CharType}, nil
	case tok.Kind == KeywordToken && tok.Value == "boolean":
		return DataType{Kind: BoolType}, nil
	case tok.Kind == IdentToken:
		return DataType{Kind: ObjectType, ClassName: tok.Value}, nil
	default:
		return DataType{}, fmt.Errorf("expected a type, got %q", tok.Value)
	}
}

// subroutineDec: ('constructor'|'function'|'method') ('void'|type) subroutineName
//                '(' parameterList ')' subroutineBody
func (p *Parser) parseSubroutineDec() (Subroutine, error) {
	kindTok, err := p.advance()
	if err != nil {
		return Subroutine{}, err
	}
	var kind SubroutineKind
	switch kindTok.Value {
	case "constructor":
		kind = Constructor
	case "function":
		kind = Function
	case "method":
		kind = Method
	}

	var returnType DataType
	if p.atKeyword("void") {
		p.advance()
		returnType = DataType{Kind: VoidType}
	} else {
		returnType, err = p.parseType()
		if err != nil {
			return Subroutine{}, err
		}
	}

	name, err := p.expect(IdentToken, "")
	if err != nil {
		return Subroutine{}, err
	}

	if _, err := p.expect(SymbolToken, "("); err != nil {
		return Subroutine{}, err
	}
	args, err := p.parseParameterList()
	if err != nil {
		return Subroutine{}, err
	}
	if _, err := p.expect(SymbolToken, ")"); err != nil {
		return Subroutine{}, err
	}

	locals, statements, err := p.parseSubroutineBody()
	if err != nil {
		return Subroutine{}, err
	}

	return Subroutine{
		Name:       name.Value,
		Kind:       kind,
		Return:     returnType,
		Arguments:  args,
		Locals:     locals,
		Statements: statements,
	}, nil
}

// parameterList: ((type varName) (',' type varName)*)?
func (p *Parser) parseParameterList() ([]Variable, error) {
	var args []Variable
	if p.atSymbol(")") {
		return args, nil
	}

	for {
		dataType, err := p.parseType()
		if err != nil {
			return nil, err
		}
		name, err := p.expect(IdentToken, "")
		if err != nil {
			return nil, err
		}
		args = append(args, Variable{Name: name.Value, Kind: ArgumentVar, Type: dataType})

		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	return args, nil
}

// subroutineBody: '{' varDec* statements '}'
func (p *Parser) parseSubroutineBody() ([]Variable, []Statement, error) {
	if _, err := p.expect(SymbolToken, "{"); err != nil {
		return nil, nil, err
	}

	var locals []Variable
	for p.atKeyword("var") {
		vars, err := p.parseVarDec()
		if err != nil {
			return nil, nil, err
		}
		locals = append(locals, vars...)
	}

	statements, err := p.parseStatements()
	if err != nil {
		return nil, nil, err
	}

	if _, err := p.expect(SymbolToken, "}"); err != nil {
		return nil, nil, err
	}
	return locals, statements, nil
}

// varDec: 'var' type varName (',' varName)* ';'
func (p *Parser) parseVarDec() ([]Variable, error) {
	if _, err := p.expect(KeywordToken, "var"); err != nil {
		return nil, err
	}
	dataType, err := p.parseType()
	if err != nil {
		return nil, err
	}

	var vars []Variable
	for {
		name, err := p.expect(IdentToken, "")
		if err != nil {
			return nil, err
		}
		vars = append(vars, Variable{Name: name.Value, Kind: LocalVar, Type: dataType})

		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}

	if _, err := p.expect(SymbolToken, ";"); err != nil {
		return nil, err
	}
	return vars, nil
}

// statements: statement*
func (p *Parser) parseStatements() ([]Statement, error) {
	var statements []Statement
	for p.atKeyword("let", "if", "while", "do", "return") {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	return statements, nil
}

func (p *Parser) parseStatement() (Statement, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of input, expected a statement")
	}

	switch tok.Value {
	case "let":
		return p.parseLetStatement()
	case "if":
		return p.parseIfStatement()
	case "while":
		return p.parseWhileStatement()
	case "do":
		return p.parseDoStatement()
	case "return":
		return p.parseReturnStatement()
	default:
		return nil, fmt.Errorf("unrecognized statement keyword %q", tok.Value)
	}
}

// letStatement: 'let' varName ('[' expression ']')? '=' expression ';'
func (p *Parser) parseLetStatement() (Statement, error) {
	if _, err := p.expect(KeywordToken, "let"); err != nil {
		return nil, err
	}
	name, err := p.expect(IdentToken, "")
	if err != nil {
		return nil, err
	}

	var index Expression
	if p.atSymbol("[") {
		p.advance()
		index, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SymbolToken, "]"); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(SymbolToken, "="); err != nil {
		return nil, err
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolToken, ";"); err != nil {
		return nil, err
	}

	return LetStmt{Name: name.Value, Index: index, Value: value}, nil
}

// ifStatement: 'if' '(' expression ')' '{' statements '}' ('else' '{' statements '}')?
func (p *Parser) parseIfStatement() (Statement, error) {
	if _, err := p.expect(KeywordToken, "if"); err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolToken, "("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolToken, ")"); err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolToken, "{"); err != nil {
		return nil, err
	}
	thenBranch, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolToken, "}"); err != nil {
		return nil, err
	}

	var elseBranch []Statement
	if p.atKeyword("else") {
		p.advance()
		if _, err := p.expect(SymbolToken, "{"); err != nil {
			return nil, err
		}
		elseBranch, err = p.parseStatements()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SymbolToken, "}"); err != nil {
			return nil, err
		}
	}

	return IfStmt{Cond: cond, Then: thenBranch, Else: elseBranch}, nil
}

// whileStatement: 'while' '(' expression ')' '{' statements '}'
func (p *Parser) parseWhileStatement() (Statement, error) {
	if _, err := p.expect(KeywordToken, "while"); err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolToken, "("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolToken, ")"); err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolToken, "{"); err != nil {
		return nil, err
	}
	body, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolToken, "}"); err != nil {
		return nil, err
	}

	return WhileStmt{Cond: cond, Body: body}, nil
}

// doStatement: 'do' subroutineCall ';'
func (p *Parser) parseDoStatement() (Statement, error) {
	if _, err := p.expect(KeywordToken, "do"); err != nil {
		return nil, err
	}
	call, err := p.parseSubroutineCall()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolToken, ";"); err != nil {
		return nil, err
	}
	return DoStmt{Call: call}, nil
}

// returnStatement: 'return' expression? ';'
func (p *Parser) parseReturnStatement() (Statement, error) {
	if _, err := p.expect(KeywordToken, "return"); err != nil {
		return nil, err
	}

	var value Expression
	if !p.atSymbol(";") {
		var err error
		value, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(SymbolToken, ";"); err != nil {
		return nil, err
	}
	return ReturnStmt{Value: value}, nil
}

// ----------------------------------------------------------------------------
// Expressions

var binOpBySymbol = map[string]BinOp{
	"+": Plus, "-": Minus, "*": Multiply, "/": Divide,
	"&": BoolAnd, "|": BoolOr, "<": LessThan, ">": GreatThan, "=": Equal,
}

// expression: term (op term)*
//
// Jack has no operator precedence: every binary expression is parsed strictly
// left-to-right, so the grammar needs neither precedence climbing nor a Pratt parser.
func (p *Parser) parseExpression() (Expression, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peek()
		if !ok || tok.Kind != SymbolToken {
			break
		}
		op, isOp := binOpBySymbol[tok.Value]
		if !isOp {
			break
		}
		p.advance()

		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, Lhs: left, Rhs: right}
	}

	return left, nil
}

// term: integerConstant | stringConstant | keywordConstant | varName | varName '[' expression ']'
//     | subroutineCall | '(' expression ')' | unaryOp term
func (p *Parser) parseTerm() (Expression, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of input, expected an expression term")
	}

	switch {
	case tok.Kind == IntToken:
		p.advance()
		return LiteralExpr{Kind: IntLiteral, Value: tok.Value}, nil

	case tok.Kind == StringToken:
		p.advance()
		return LiteralExpr{Kind: StringLiteral, Value: tok.Value}, nil

	case tok.Kind == KeywordToken && tok.Value == "true":
		p.advance()
		return LiteralExpr{Kind: TrueLiteral}, nil
	case tok.Kind == KeywordToken && tok.Value == "false":
		p.advance()
		return LiteralExpr{Kind: FalseLiteral}, nil
	case tok.Kind == KeywordToken && tok.Value == "null":
		p.advance()
		return LiteralExpr{Kind: NullLiteral}, nil
	case tok.Kind == KeywordToken && tok.Value == "this":
		p.advance()
		return LiteralExpr{Kind: ThisLiteral}, nil

	case tok.Kind == SymbolToken && tok.Value == "(":
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SymbolToken, ")"); err != nil {
			return nil, err
		}
		return ParenExpr{Inner: inner}, nil

	case tok.Kind == SymbolToken && tok.Value == "-":
		p.advance()
		operand, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: Negation, Operand: operand}, nil

	case tok.Kind == SymbolToken && tok.Value == "~":
		p.advance()
		operand, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: BoolNot, Operand: operand}, nil

	case tok.Kind == IdentToken:
		return p.parseIdentTerm()

	default:
		return nil, fmt.Errorf("unexpected token %q (%s), expected an expression term", tok.Value, tok.Kind)
	}
}

// parseIdentTerm disambiguates the four shapes that can follow a bare identifier,
// requiring one token of lookahead past the identifier itself: a plain variable read,
// an array index, an unqualified call, or a qualified (className.method) call.
func (p *Parser) parseIdentTerm() (Expression, error) {
	name, err := p.expect(IdentToken, "")
	if err != nil {
		return nil, err
	}

	if p.atSymbol("[") {
		p.advance()
		index, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SymbolToken, "]"); err != nil {
			return nil, err
		}
		return IndexExpr{Name: name.Value, Index: index}, nil
	}

	if p.atSymbol("(") {
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return CallExpr{Name: name.Value, Args: args}, nil
	}

	if p.atSymbol(".") {
		p.advance()
		method, err := p.expect(IdentToken, "")
		if err != nil {
			return nil, err
		}
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return CallExpr{Qualifier: name.Value, Name: method.Value, Args: args}, nil
	}

	return VarExpr{Name: name.Value}, nil
}

// subroutineCall: subroutineName '(' expressionList ')' | (className|varName) '.' subroutineName '(' expressionList ')'
func (p *Parser) parseSubroutineCall() (CallExpr, error) {
	expr, err := p.parseIdentTerm()
	if err != nil {
		return CallExpr{}, err
	}
	call, ok := expr.(CallExpr)
	if !ok {
		return CallExpr{}, fmt.Errorf("expected a subroutine call")
	}
	return call, nil
}

// parseCallArgs consumes '(' expressionList ')', the caller having already matched the
// callee name (and qualifier, if any).
func (p *Parser) parseCallArgs() ([]Expression, error) {
	if _, err := p.expect(SymbolToken, "("); err != nil {
		return nil, err
	}

	var args []Expression
	if !p.atSymbol(")") {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if p.atSymbol(",") {
				p.advance()
				continue
			}
			break
		}
	}

	if _, err := p.expect(SymbolToken, ")"); err != nil {
		return nil, err
	}
	return args, nil
}

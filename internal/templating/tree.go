package templating

// node is one element of the parsed template tree.
type node interface {
	position() int
}

type textNode struct {
	text string
	pos  int
}

type varNode struct {
	name string
	raw  string
	pos  int
}

type exprNode struct {
	src string
	raw string
	pos int
}

type blockKind int

const (
	blockList blockKind = iota
	blockIf
	blockUnless
)

type blockNode struct {
	kind     blockKind
	name     string
	open     string
	close    string
	children []node
	pos      int
}

func (n *textNode) position() int  { return n.pos }
func (n *varNode) position() int   { return n.pos }
func (n *exprNode) position() int  { return n.pos }
func (n *blockNode) position() int { return n.pos }

// frame is an open block waiting for its closer.
type frame struct {
	tok      token
	kind     blockKind
	children []node
}

// parse builds a tree from the token stream. A closer matches the nearest
// open block of the same kind (and name, for list blocks). Blocks left open
// when their parent closes, or at the end of input, are flattened back into
// literal text around their children. Closers with no opener are literal.
func parse(tokens []token) []node {
	root := &frame{}
	stack := []*frame{root}

	top := func() *frame { return stack[len(stack)-1] }
	appendNode := func(n node) {
		f := top()
		f.children = append(f.children, n)
	}

	for _, tok := range tokens {
		switch tok.kind {
		case tokText:
			appendNode(&textNode{text: tok.raw, pos: tok.pos})
		case tokVar:
			appendNode(&varNode{name: tok.arg, raw: tok.raw, pos: tok.pos})
		case tokExpr:
			appendNode(&exprNode{src: tok.arg, raw: tok.raw, pos: tok.pos})
		case tokListOpen:
			stack = append(stack, &frame{tok: tok, kind: blockList})
		case tokIfOpen:
			stack = append(stack, &frame{tok: tok, kind: blockIf})
		case tokUnlessOpen:
			stack = append(stack, &frame{tok: tok, kind: blockUnless})
		case tokListClose, tokIfClose, tokUnlessClose:
			match := findOpener(stack, tok)
			if match < 0 {
				appendNode(&textNode{text: tok.raw, pos: tok.pos})
				continue
			}
			for len(stack)-1 > match {
				stack = unwind(stack)
			}
			f := top()
			stack = stack[:len(stack)-1]
			appendNode(&blockNode{
				kind:     f.kind,
				name:     f.tok.arg,
				open:     f.tok.raw,
				close:    tok.raw,
				children: f.children,
				pos:      f.tok.pos,
			})
		}
	}

	for len(stack) > 1 {
		stack = unwind(stack)
	}
	return root.children
}

// findOpener returns the stack index of the frame closed by tok, or -1.
func findOpener(stack []*frame, tok token) int {
	for i := len(stack) - 1; i > 0; i-- {
		f := stack[i]
		switch {
		case tok.kind == tokIfClose && f.kind == blockIf:
			return i
		case tok.kind == tokUnlessClose && f.kind == blockUnless:
			return i
		case tok.kind == tokListClose && f.kind == blockList && f.tok.arg == tok.arg:
			return i
		}
	}
	return -1
}

// unwind pops an unclosed frame and splices its opener and children into the
// parent as literal content.
func unwind(stack []*frame) []*frame {
	f := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	parent := stack[len(stack)-1]
	parent.children = append(parent.children, &textNode{text: f.tok.raw, pos: f.tok.pos})
	parent.children = append(parent.children, f.children...)
	return stack
}

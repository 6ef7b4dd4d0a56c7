package taxonomy

import (
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError reports a malformed Newick string with the byte offset of the problem.
type SyntaxError struct {
	Offset  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("newick syntax error at offset %d: %s", e.Offset, e.Message)
}

type newickParser struct {
	s   string
	pos int
}

// parseNewick parses a single tree. Branch lengths and [comments] are accepted and dropped.
func parseNewick(s string) (*Node, error) {
	p := &newickParser{s: s}
	root, err := p.subtree()
	if err != nil {
		return nil, err
	}
	p.skip()
	if p.peek() == ';' {
		p.pos++
		p.skip()
	}
	if p.pos < len(p.s) {
		return nil, p.errorf("unexpected trailing input %q", p.s[p.pos:])
	}
	return root, nil
}

func (p *newickParser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *newickParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

// skip advances over whitespace and bracketed comments.
func (p *newickParser) skip() {
	for p.pos < len(p.s) {
		switch c := p.s[p.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '[':
			end := strings.IndexByte(p.s[p.pos:], ']')
			if end < 0 {
				p.pos = len(p.s)
				return
			}
			p.pos += end + 1
		default:
			return
		}
	}
}

func (p *newickParser) subtree() (*Node, error) {
	p.skip()
	n := &Node{}
	if p.peek() == '(' {
		p.pos++
		for done := false; !done; {
			c, err := p.subtree()
			if err != nil {
				return nil, err
			}
			c.Parent = n
			n.Children = append(n.Children, c)

			p.skip()
			switch p.peek() {
			case ',':
				p.pos++
			case ')':
				p.pos++
				done = true
			default:
				return nil, p.errorf("expected ',' or ')'")
			}
		}
	}

	name, err := p.label()
	if err != nil {
		return nil, err
	}
	n.Name = name

	p.skip()
	if p.peek() == ':' {
		p.pos++
		if err := p.length(); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (p *newickParser) label() (string, error) {
	p.skip()
	if p.peek() == '\'' {
		var sb strings.Builder
		p.pos++
		for p.pos < len(p.s) {
			c := p.s[p.pos]
			p.pos++
			if c != '\'' {
				sb.WriteByte(c)
				continue
			}
			// '' is an escaped quote
			if p.peek() == '\'' {
				sb.WriteByte('\'')
				p.pos++
				continue
			}
			return sb.String(), nil
		}
		return "", p.errorf("unterminated quoted label")
	}

	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune("(),:;[ \t\r\n", rune(p.s[p.pos])) {
		p.pos++
	}
	return p.s[start:p.pos], nil
}

func (p *newickParser) length() error {
	p.skip()
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune("(),;[ \t\r\n", rune(p.s[p.pos])) {
		p.pos++
	}
	if _, err := strconv.ParseFloat(p.s[start:p.pos], 64); err != nil {
		return &SyntaxError{Offset: start, Message: fmt.Sprintf("invalid branch length %q", p.s[start:p.pos])}
	}
	return nil
}

// writeNewick writes the subtree rooted at n, naming every node.
func writeNewick(sb *strings.Builder, n *Node) {
	if len(n.Children) > 0 {
		sb.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeNewick(sb, c)
		}
		sb.WriteByte(')')
	}
	sb.WriteString(quoteLabel(n.Name))
}

func quoteLabel(s string) string {
	if !strings.ContainsAny(s, "(),:;[]' \t") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

package knowledge

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// Kind distinguishes doctor entries from specialization entries.
type Kind string

const (
	KindDoctor         Kind = "doctor"
	KindSpecialization Kind = "specialization"
)

// Entry is a labeled block of the corpus.
type Entry struct {
	Kind   Kind              `json:"kind"`
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields"`
	Body   []string          `json:"body,omitempty"`
}

// Field returns a field by name; "Available Doctors" and "available_doctors"
// address the same field.
func (e *Entry) Field(name string) string {
	if e == nil {
		return ""
	}
	return e.Fields[fieldKey(name)]
}

// List splits a comma separated field into trimmed, non-empty items.
func (e *Entry) List(name string) []string {
	raw := e.Field(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Corpus is one parse of the knowledge text. It is never cached across requests.
type Corpus struct {
	doctors         []Entry
	specializations []Entry
}

var (
	markdownExtensions = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	doctorTitle        = regexp.MustCompile(`(?i)^(?:dr\.?|doctor)\s+`)
)

type heading struct {
	level int
	title string
}

type section struct {
	heading
	kind   Kind // empty for group headings that may still turn out to be specializations
	fields map[string]string
	body   []string
}

// Parse splits text into doctor and specialization entries. A section runs until
// the next heading of equal or higher level; deeper headings inside a doctor or
// specialization section stay part of it. List items of the form
// "- **Field**: value" become fields; other text goes to the body.
func Parse(data []byte) *Corpus {
	b := &corpusBuilder{corpus: &Corpus{}}
	if len(bytes.TrimSpace(data)) == 0 {
		return b.corpus
	}
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	doc := parser.NewWithExtensions(markdownExtensions).Parse(data)
	for _, node := range doc.GetChildren() {
		b.block(node)
	}
	b.closeSection()
	return b.corpus
}

type corpusBuilder struct {
	corpus  *Corpus
	stack   []heading
	current *section
}

func (b *corpusBuilder) closeSection() {
	if b.current == nil {
		return
	}
	b.corpus.add(b.current)
	b.current = nil
}

func (b *corpusBuilder) block(node ast.Node) {
	switch n := node.(type) {
	case *ast.Heading:
		b.heading(heading{level: n.Level, title: plainText(n.Children)})
	case *ast.List:
		for _, item := range n.Children {
			b.listItem(item)
		}
	case *ast.Paragraph:
		if b.current == nil {
			return
		}
		for _, line := range splitLines(n.Children) {
			b.addBody(plainText(line))
		}
	default:
		if b.current != nil {
			b.addBody(plainText([]ast.Node{node}))
		}
	}
}

func (b *corpusBuilder) heading(h heading) {
	if b.current != nil && b.current.kind != "" && h.level > b.current.level {
		b.addBody(h.title)
		return
	}
	b.closeSection()
	for len(b.stack) > 0 && b.stack[len(b.stack)-1].level >= h.level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	b.current = newSection(h, b.stack)
	b.stack = append(b.stack, h)
}

// listItem reads the first line of an item as a field when it starts with bold
// text. Continuation lines and nested blocks are body text.
func (b *corpusBuilder) listItem(item ast.Node) {
	if b.current == nil {
		return
	}
	children := item.GetChildren()
	if len(children) > 0 && !isBlock(children[0]) {
		b.itemLines(splitLines(children), true)
		return
	}
	for i, child := range children {
		switch c := child.(type) {
		case *ast.Paragraph:
			b.itemLines(splitLines(c.Children), i == 0)
		case *ast.List:
			b.block(c)
		default:
			b.addBody(plainText([]ast.Node{child}))
		}
	}
}

func (b *corpusBuilder) itemLines(lines [][]ast.Node, first bool) {
	for i, line := range lines {
		if first && i == 0 {
			if key, value, ok := fieldLine(line); ok {
				if _, exists := b.current.fields[key]; !exists {
					b.current.fields[key] = value
				}
				continue
			}
		}
		b.addBody(plainText(line))
	}
}

func (b *corpusBuilder) addBody(text string) {
	if text != "" {
		b.current.body = append(b.current.body, text)
	}
}

// splitLines cuts inline content at line breaks, including newlines kept
// inside text literals.
func splitLines(inline []ast.Node) [][]ast.Node {
	var (
		lines   [][]ast.Node
		current []ast.Node
	)
	for _, n := range inline {
		switch t := n.(type) {
		case *ast.Softbreak, *ast.Hardbreak:
			lines = append(lines, current)
			current = nil
		case *ast.Text:
			parts := bytes.Split(t.Literal, []byte("\n"))
			for i, part := range parts {
				if i > 0 {
					lines = append(lines, current)
					current = nil
				}
				current = append(current, &ast.Text{Leaf: ast.Leaf{Literal: part}})
			}
		default:
			current = append(current, n)
		}
	}
	return append(lines, current)
}

// fieldLine matches a line that opens with bold text: "**Key**: value" or
// "**Key:** value".
func fieldLine(line []ast.Node) (string, string, bool) {
	for i, n := range line {
		if t, ok := n.(*ast.Text); ok && strings.TrimSpace(string(t.Literal)) == "" {
			continue
		}
		strong, ok := n.(*ast.Strong)
		if !ok {
			return "", "", false
		}
		key := fieldKey(strings.TrimSuffix(plainText(strong.Children), ":"))
		if key == "" {
			return "", "", false
		}
		value := strings.TrimSpace(strings.TrimPrefix(plainText(line[i+1:]), ":"))
		return key, value, true
	}
	return "", "", false
}

func plainText(nodes []ast.Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		writeText(&sb, n)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func writeText(sb *strings.Builder, n ast.Node) {
	switch n.(type) {
	case *ast.Softbreak, *ast.Hardbreak:
		sb.WriteByte(' ')
		return
	}
	if leaf := n.AsLeaf(); leaf != nil {
		sb.Write(leaf.Literal)
		return
	}
	for _, child := range n.GetChildren() {
		writeText(sb, child)
	}
}

func isBlock(n ast.Node) bool {
	switch n.(type) {
	case *ast.Paragraph, *ast.List, *ast.ListItem, *ast.Heading, *ast.BlockQuote,
		*ast.CodeBlock, *ast.Table, *ast.HorizontalRule, *ast.HTMLBlock:
		return true
	}
	return false
}

func newSection(h heading, parents []heading) *section {
	s := &section{heading: h, fields: make(map[string]string)}
	switch {
	case h.level < 2:
	case doctorTitle.MatchString(h.title):
		s.kind = KindDoctor
	case len(parents) > 0 && isSpecializationGroup(parents[len(parents)-1].title):
		s.kind = KindSpecialization
	}
	return s
}

func isSpecializationGroup(title string) bool {
	t := strings.ToLower(title)
	return strings.Contains(t, "speciali")
}

func (c *Corpus) add(s *section) {
	kind := s.kind
	if kind == "" {
		// A level-2+ heading outside any group still counts when it carries fields.
		if s.level < 2 || len(s.fields) == 0 {
			return
		}
		kind = KindSpecialization
	}

	entry := Entry{Kind: kind, Name: s.title, Fields: s.fields, Body: s.body}
	if kind == KindDoctor {
		entry.Name = stripDoctorTitle(s.title)
		c.doctors = append(c.doctors, entry)
		return
	}
	c.specializations = append(c.specializations, entry)
}

// Doctor finds a doctor by name; a leading "Dr." in either side is ignored.
func (c *Corpus) Doctor(name string) *Entry {
	key := nameKey(stripDoctorTitle(name))
	if key == "" {
		return nil
	}
	for i := range c.doctors {
		if nameKey(c.doctors[i].Name) == key {
			e := c.doctors[i]
			return &e
		}
	}
	return nil
}

// Specialization finds a specialization by name, ignoring capitalization.
func (c *Corpus) Specialization(name string) *Entry {
	key := nameKey(name)
	if key == "" {
		return nil
	}
	for i := range c.specializations {
		if nameKey(c.specializations[i].Name) == key {
			e := c.specializations[i]
			return &e
		}
	}
	return nil
}

// SearchDoctors returns doctors whose name contains partial, in corpus order.
func (c *Corpus) SearchDoctors(partial string) []Entry {
	key := nameKey(stripDoctorTitle(partial))
	out := []Entry{}
	for _, d := range c.doctors {
		if strings.Contains(nameKey(d.Name), key) {
			out = append(out, d)
		}
	}
	return out
}

// Doctors lists all doctor entries in corpus order.
func (c *Corpus) Doctors() []Entry {
	return append([]Entry(nil), c.doctors...)
}

// Specializations lists all specialization entries in corpus order.
func (c *Corpus) Specializations() []Entry {
	return append([]Entry(nil), c.specializations...)
}

func stripDoctorTitle(name string) string {
	return strings.TrimSpace(doctorTitle.ReplaceAllString(strings.TrimSpace(name), ""))
}

func nameKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func fieldKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

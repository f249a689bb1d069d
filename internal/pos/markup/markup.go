// Package markup is a small HTML writer used by the templ components of the terminal.
package markup

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Writer writes HTML fragments and keeps the first error.
type Writer struct {
	w   io.Writer
	err error
}

// New wraps w.
func New(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first write error.
func (w *Writer) Err() error {
	return w.err
}

// Raw writes trusted markup as-is.
func (w *Writer) Raw(s string) *Writer {
	if w.err == nil {
		_, w.err = io.WriteString(w.w, s)
	}
	return w
}

// Text writes escaped text.
func (w *Writer) Text(s string) *Writer {
	return w.Raw(templ.EscapeString(s))
}

// Element writes <tag attrs>text</tag> with escaped text.
func (w *Writer) Element(tag string, attrs Attrs, text string) *Writer {
	w.Open(tag, attrs)
	w.Text(text)
	return w.Close(tag)
}

// Open writes an opening tag.
func (w *Writer) Open(tag string, attrs Attrs) *Writer {
	w.Raw("<" + tag)
	w.Raw(attrs.String())
	return w.Raw(">")
}

// Close writes a closing tag.
func (w *Writer) Close(tag string) *Writer {
	return w.Raw("</" + tag + ">")
}

// Render renders a child component into the same stream.
func (w *Writer) Render(ctx context.Context, c templ.Component) *Writer {
	if w.err == nil && c != nil {
		w.err = c.Render(ctx, w.w)
	}
	return w
}

// Attrs is an ordered attribute list.
type Attrs []Attr

// Attr is one attribute. Boolean attributes have Bool set and no value.
type Attr struct {
	Name  string
	Value string
	Bool  bool
}

// A builds Attrs from name/value pairs.
func A(pairs ...string) Attrs {
	attrs := make(Attrs, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		attrs = append(attrs, Attr{Name: pairs[i], Value: pairs[i+1]})
	}
	return attrs
}

// Flag appends a boolean attribute when on is true.
func (a Attrs) Flag(name string, on bool) Attrs {
	if on {
		return append(a, Attr{Name: name, Bool: true})
	}
	return a
}

// String renders the attributes with a leading space.
func (a Attrs) String() string {
	if len(a) == 0 {
		return ""
	}
	var b strings.Builder
	for _, attr := range a {
		b.WriteByte(' ')
		b.WriteString(attr.Name)
		if attr.Bool {
			continue
		}
		b.WriteString(`="`)
		b.WriteString(templ.EscapeString(attr.Value))
		b.WriteByte('"')
	}
	return b.String()
}

// Component adapts a write function into a templ component.
func Component(fn func(ctx context.Context, w *Writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := New(out)
		fn(ctx, w)
		return w.Err()
	})
}

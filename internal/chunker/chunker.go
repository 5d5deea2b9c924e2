// Package chunker splits markdown documents into heading-aware chunks for
// knowledge ingestion.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultTargetSize = 400
	DefaultMinSize    = 100
	DefaultMaxSize    = 600
)

// Options configures chunk sizes, in bytes.
type Options struct {
	// TargetSize is the size paragraphs are packed up to.
	TargetSize int
	// MinSize is the size below which a trailing chunk is folded into the
	// previous one.
	MinSize int
	// MaxSize caps a chunk. Paragraphs above it are split on line, then word,
	// boundaries.
	MaxSize int
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{
		TargetSize: DefaultTargetSize,
		MinSize:    DefaultMinSize,
		MaxSize:    DefaultMaxSize,
	}
}

func (o Options) normalize() Options {
	d := DefaultOptions()
	if o.TargetSize <= 0 {
		o.TargetSize = d.TargetSize
	}
	if o.MaxSize <= 0 {
		o.MaxSize = d.MaxSize
	}
	if o.MaxSize < o.TargetSize {
		o.MaxSize = o.TargetSize
	}
	if o.MinSize < 0 || o.MinSize > o.TargetSize {
		o.MinSize = 0
	}
	return o
}

// Chunk is one piece of a document. Lines are 1-based and refer to the
// original text.
type Chunk struct {
	Seq       int    `json:"seq"`
	Text      string `json:"text"`
	Heading   string `json:"heading,omitempty"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Split breaks text into chunks. Text of at most MaxSize bytes is returned
// as a single chunk; longer text is cut at headings and blank lines and
// packed toward TargetSize. Fenced code blocks are never cut at blank lines.
func Split(text string, opts Options) []Chunk {
	opts = opts.normalize()
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	paras := paragraphs(strings.Split(text, "\n"))
	if len(strings.TrimSpace(text)) <= opts.MaxSize {
		first, last := paras[0], paras[len(paras)-1]
		heading := ""
		for _, p := range paras {
			if p.isHeading {
				heading = p.heading
				break
			}
		}
		return []Chunk{{Text: strings.TrimSpace(text), Heading: heading, StartLine: first.start, EndLine: last.end}}
	}

	var p packer
	p.opts = opts
	for _, para := range paras {
		p.add(para)
	}
	p.flush()
	return p.finish()
}

// paragraph is a run of non-blank lines, or a single heading line.
type paragraph struct {
	text       string
	start, end int
	heading    string // heading in effect
	isHeading  bool
}

func paragraphs(lines []string) []paragraph {
	var out []paragraph
	var cur []string
	start, heading, inFence := 0, "", false

	flush := func(end int) {
		if len(cur) > 0 {
			out = append(out, paragraph{text: strings.Join(cur, "\n"), start: start, end: end, heading: heading})
		}
		cur = nil
	}

	for i, line := range lines {
		n := i + 1
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
		}
		if !inFence {
			if trimmed == "" {
				flush(n - 1)
				continue
			}
			if h, ok := headingText(trimmed); ok {
				flush(n - 1)
				heading = h
				out = append(out, paragraph{text: trimmed, start: n, end: n, heading: h, isHeading: true})
				continue
			}
		}
		if len(cur) == 0 {
			start = n
		}
		cur = append(cur, line)
	}
	flush(len(lines))
	return out
}

// headingText returns the title of an ATX heading line ("## Title").
func headingText(line string) (string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return "", false
	}
	if level < len(line) && line[level] != ' ' && line[level] != '\t' {
		return "", false
	}
	return strings.TrimSpace(strings.TrimRight(line[level:], "# \t")), true
}

type packer struct {
	opts   Options
	chunks []Chunk

	parts      []string
	size       int
	start, end int
	heading    string
	hasBody    bool
}

func (p *packer) add(para paragraph) {
	if para.isHeading {
		if p.hasBody {
			p.flush()
		}
		p.append(para)
		p.heading = para.heading
		return
	}

	if len(para.text) > p.opts.MaxSize {
		pieces := splitLong(para, p.opts)
		if !p.hasBody && len(p.parts) > 0 && len(pieces) > 0 {
			// Keep pending headings with the first piece.
			pieces[0].Text = strings.Join(p.parts, "\n\n") + "\n\n" + pieces[0].Text
			pieces[0].StartLine = p.start
			p.parts, p.size = nil, 0
		}
		p.flush()
		p.chunks = append(p.chunks, pieces...)
		return
	}

	if p.size > 0 && p.size+2+len(para.text) > p.opts.TargetSize {
		p.flush()
	}
	if p.size == 0 {
		p.heading = para.heading
	}
	p.append(para)
	p.hasBody = true
}

func (p *packer) append(para paragraph) {
	if p.size == 0 {
		p.start = para.start
	} else {
		p.size += 2
	}
	p.parts = append(p.parts, para.text)
	p.size += len(para.text)
	p.end = para.end
}

func (p *packer) flush() {
	if len(p.parts) == 0 {
		return
	}
	p.chunks = append(p.chunks, Chunk{
		Text:      strings.TrimSpace(strings.Join(p.parts, "\n\n")),
		Heading:   p.heading,
		StartLine: p.start,
		EndLine:   p.end,
	})
	p.parts, p.size, p.hasBody = nil, 0, false
}

// finish folds an undersized tail into its predecessor and numbers chunks.
func (p *packer) finish() []Chunk {
	chunks := p.chunks
	if n := len(chunks); n > 1 {
		last, prev := chunks[n-1], &chunks[n-2]
		if len(last.Text) < p.opts.MinSize && len(prev.Text)+2+len(last.Text) <= p.opts.MaxSize {
			prev.Text += "\n\n" + last.Text
			prev.EndLine = last.EndLine
			chunks = chunks[:n-1]
		}
	}
	for i := range chunks {
		chunks[i].Seq = i
	}
	return chunks
}

// splitLong cuts an oversized paragraph on line boundaries toward
// TargetSize; single lines above MaxSize are cut at word boundaries.
func splitLong(para paragraph, opts Options) []Chunk {
	var out []Chunk
	var cur []string
	curLen, curStart := 0, para.start

	emit := func(end int) {
		if t := strings.TrimSpace(strings.Join(cur, "\n")); t != "" {
			out = append(out, Chunk{Text: t, Heading: para.heading, StartLine: curStart, EndLine: end})
		}
		cur, curLen = nil, 0
	}

	for i, line := range strings.Split(para.text, "\n") {
		n := para.start + i
		if len(line) > opts.MaxSize {
			emit(n - 1)
			for _, w := range splitWords(line, opts.TargetSize) {
				out = append(out, Chunk{Text: w, Heading: para.heading, StartLine: n, EndLine: n})
			}
			continue
		}
		if curLen > 0 && curLen+len(line) > opts.TargetSize {
			emit(n - 1)
		}
		if len(cur) == 0 {
			curStart = n
		}
		cur = append(cur, line)
		curLen += len(line) + 1
	}
	emit(para.end)
	return out
}

// splitWords cuts s into pieces of at most size bytes, preferring spaces and
// never splitting a rune.
func splitWords(s string, size int) []string {
	var out []string
	s = strings.TrimSpace(s)
	for len(s) > size {
		cut := strings.LastIndexByte(s[:size], ' ')
		if cut <= 0 {
			cut = size
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(s)
			}
		}
		out = append(out, strings.TrimSpace(s[:cut]))
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

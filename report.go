package main

import (
	"fmt"
	"io"
	"log"
)

// reporter writes human-facing diagnostics to stderr according to Options.
type reporter struct {
	log      *log.Logger
	verbose  bool
	silent   bool
	progress bool
}

func newReporter(o *Options, w io.Writer) *reporter {
	return &reporter{
		log:      log.New(w, "", 0),
		verbose:  o.Verbose,
		silent:   o.Silent,
		progress: o.Progress,
	}
}

func (r *reporter) Infof(format string, args ...any) {
	if !r.silent {
		r.log.Printf(format, args...)
	}
}

func (r *reporter) Debugf(format string, args ...any) {
	if r.verbose && !r.silent {
		r.log.Printf(format, args...)
	}
}

func check(set bool) string {
	if set {
		return "X"
	}
	return " "
}

// Track wraps src with a progress line when progress output is enabled.
func (r *reporter) Track(src io.Reader, total uint64, label string) io.Reader {
	if !r.progress || r.silent {
		return src
	}
	return &progressReader{r: src, w: r.log.Writer(), total: total, label: label, last: -1}
}

type progressReader struct {
	r     io.Reader
	w     io.Writer
	total uint64
	done  uint64
	label string
	last  int
	ended bool
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.done += uint64(n)
	pct := 100
	if p.total > 0 && p.done < p.total {
		pct = int(p.done * 100 / p.total)
	}
	if pct != p.last {
		p.last = pct
		fmt.Fprintf(p.w, "\r%s %3d%%", p.label, pct)
	}
	if err == io.EOF || p.done >= p.total {
		p.end()
	}
	return n, err
}

func (p *progressReader) end() {
	if p.ended {
		return
	}
	p.ended = true
	if p.last != 100 {
		fmt.Fprintf(p.w, "\r%s %3d%%", p.label, 100)
	}
	fmt.Fprintln(p.w)
}

// Done terminates the progress line started by Track, if any.
func (r *reporter) Done(src io.Reader) {
	if p, ok := src.(*progressReader); ok {
		p.end()
	}
}

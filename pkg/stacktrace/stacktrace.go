// Package stacktrace captures the calling goroutine's stack as structured
// frames for panic logs.
package stacktrace

import (
	"fmt"
	"runtime"
	"strings"
)

const maxFrames = 32

// Linker-generated symbols carry these prefixes and have no package.
var syntheticPrefixes = []string{"go.", "type."}

type Frame struct {
	Line    int    `json:"line"`
	Func    string `json:"func"`
	File    string `json:"file"`
	Package string `json:"package"`
}

func (f Frame) String() string {
	return fmt.Sprintf("%s.%s (%s:%d)", f.Package, f.Func, f.File, f.Line)
}

type Frames []Frame

// Capture returns the stack above its caller, skipping skip further frames.
// Runtime frames are dropped.
func Capture(skip int) Frames {
	pc := make([]uintptr, maxFrames)
	n := runtime.Callers(skip+2, pc)
	it := runtime.CallersFrames(pc[:n])

	var frames Frames
	for {
		rf, more := it.Next()

		if f := newFrame(rf); f.Package != "runtime" {
			frames = append(frames, f)
		}

		if !more {
			break
		}
	}

	return frames
}

// Within keeps the frames whose package path starts with prefix, so a panic
// log points at our code instead of fiber's call chain.
func (fs Frames) Within(prefix string) Frames {
	var out Frames
	for _, f := range fs {
		if strings.HasPrefix(f.Package, prefix) {
			out = append(out, f)
		}
	}

	return out
}

// Top is the innermost frame, or the zero Frame for an empty stack.
func (fs Frames) Top() Frame {
	if len(fs) == 0 {
		return Frame{}
	}

	return fs[0]
}

func newFrame(rf runtime.Frame) Frame {
	pkg := packageOf(rf.Function)

	return Frame{
		Line:    rf.Line,
		Func:    strings.TrimPrefix(rf.Function, pkg+"."),
		File:    rf.File,
		Package: pkg,
	}
}

// packageOf splits "github.com/a/b.(*T).M" into "github.com/a/b".
func packageOf(name string) string {
	for _, p := range syntheticPrefixes {
		if strings.HasPrefix(name, p) {
			return ""
		}
	}

	slash := strings.LastIndex(name, "/")
	if slash < 0 {
		slash = 0
	}

	if dot := strings.Index(name[slash:], "."); dot != -1 {
		return name[:slash+dot]
	}

	return ""
}

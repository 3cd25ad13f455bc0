// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.golang file.

package parser

import (
	"fmt"
	"sort"
)

// Pos represents a position in the file set.
type Pos int

// NoPos represents an invalid position.
const NoPos Pos = 0

// IsValid returns true if the position is valid.
func (p Pos) IsValid() bool {
	return p != NoPos
}

// SourceFilePos represents a position information in a source file.
type SourceFilePos struct {
	Filename string // filename, if any
	Offset   int    // byte offset, starting at 0
	Line     int    // line number, starting at 1
	Column   int    // column number, starting at 1 (byte count)
}

// IsValid returns true if the position is valid.
func (p SourceFilePos) IsValid() bool {
	return p.Line > 0
}

// String returns a string in one of several forms:
//
//	file:line:column    valid position with file name
//	file:line           valid position with file name but no column (column == 0)
//	line:column         valid position without file name
//	line                valid position without file name and no column (column == 0)
//	file                invalid position with file name
//	-                   invalid position without file name
func (p SourceFilePos) String() string {
	s := p.Filename
	if p.IsValid() {
		if s != "" {
			s += ":"
		}
		s += fmt.Sprintf("%d", p.Line)
		if p.Column != 0 {
			s += fmt.Sprintf(":%d", p.Column)
		}
	}
	if s == "" {
		s = "-"
	}
	return s
}

// SourceFileSet represents a set of source files. Positions of all files in a
// set are unique so a Pos alone identifies the file it belongs to.
type SourceFileSet struct {
	Base     int           // base offset for the next file
	Files    []*SourceFile // list of files in the order added to the set
	LastFile *SourceFile   // cache of last file looked up
}

// NewFileSet creates a new file set.
func NewFileSet() *SourceFileSet {
	return &SourceFileSet{
		Base: 1, // 0 == NoPos
	}
}

// AddFile adds a new file in the file set. If base is negative, the next
// available base of the set is used.
func (s *SourceFileSet) AddFile(filename string, base int, src []byte) *SourceFile {
	if base < 0 {
		base = s.Base
	}
	if base < s.Base {
		panic("invalid file base")
	}

	f := &SourceFile{
		set:   s,
		Name:  filename,
		Base:  base,
		Size:  len(src),
		Lines: []int{0},
		Data:  src,
	}
	base += len(src) + 1 // +1 because EOF also has a position
	if base < 0 {
		panic("offset overflow (> 2G of source code in file set)")
	}

	// add the file to the file set
	s.Base = base
	s.Files = append(s.Files, f)
	s.LastFile = f
	return f
}

// File returns the file that contains the position p. If no such file is
// found, the function returns nil.
func (s *SourceFileSet) File(p Pos) (f *SourceFile) {
	if p != NoPos {
		f = s.file(p)
	}
	return
}

// Position converts a Pos in the file set into a SourceFilePos.
func (s *SourceFileSet) Position(p Pos) (pos SourceFilePos) {
	if p != NoPos {
		if f := s.file(p); f != nil {
			return f.position(p)
		}
	}
	return
}

func (s *SourceFileSet) file(p Pos) *SourceFile {
	f := s.LastFile
	if f != nil && f.Base <= int(p) && int(p) <= f.Base+f.Size {
		return f
	}

	i := sort.Search(len(s.Files), func(i int) bool {
		return s.Files[i].Base > int(p)
	}) - 1

	if i >= 0 {
		f := s.Files[i]
		if int(p) <= f.Base+f.Size {
			s.LastFile = f
			return f
		}
	}
	return nil
}

// SourceFile represents a source file. Line offsets are recorded by the
// scanner while it reads the file.
type SourceFile struct {
	set   *SourceFileSet
	Name  string // file name as provided to AddFile
	Base  int    // Pos value range for this file is [base...base+size]
	Size  int    // file size as provided to AddFile
	Lines []int  // lines contains the offset of the first character for each line (the first entry is always 0)
	Data  []byte // source text, used to quote the offending line in diagnostics
}

// Set returns SourceFileSet of the file.
func (f *SourceFile) Set() *SourceFileSet {
	return f.set
}

// LineCount returns the current number of lines.
func (f *SourceFile) LineCount() int {
	return len(f.Lines)
}

// AddLine adds a new line offset. Offsets that are not increasing are ignored.
func (f *SourceFile) AddLine(offset int) {
	i := len(f.Lines)
	if (i == 0 || f.Lines[i-1] < offset) && offset < f.Size {
		f.Lines = append(f.Lines, offset)
	}
}

// Pos returns the Pos value for the given file offset.
func (f *SourceFile) Pos(offset int) Pos {
	if offset > f.Size {
		panic("illegal file offset")
	}
	return Pos(f.Base + offset)
}

// Offset translates the file set position into the file offset.
func (f *SourceFile) Offset(p Pos) int {
	if int(p) < f.Base || int(p) > f.Base+f.Size {
		panic("illegal Pos value")
	}
	return int(p) - f.Base
}

// Line returns the line of given position.
func (f *SourceFile) Line(p Pos) int {
	return f.Position(p).Line
}

// Position translates the file set position into the file position.
func (f *SourceFile) Position(p Pos) (pos SourceFilePos) {
	if p != NoPos {
		if int(p) < f.Base || int(p) > f.Base+f.Size {
			panic("illegal Pos value")
		}
		pos = f.position(p)
	}
	return
}

// LineText returns the text of the given 1-based line without the line
// terminator.
func (f *SourceFile) LineText(line int) string {
	if line < 1 || line > len(f.Lines) {
		return ""
	}

	start := f.Lines[line-1]
	end := len(f.Data)
	for i := start; i < len(f.Data); i++ {
		if f.Data[i] == '\n' {
			end = i
			break
		}
	}
	return string(f.Data[start:end])
}

func (f *SourceFile) position(p Pos) (pos SourceFilePos) {
	offset := int(p) - f.Base
	pos.Offset = offset
	pos.Filename, pos.Line, pos.Column = f.unpack(offset)
	return
}

func (f *SourceFile) unpack(offset int) (filename string, line, column int) {
	filename = f.Name
	if i := searchInts(f.Lines, offset); i >= 0 {
		line, column = i+1, offset-f.Lines[i]+1
	}
	return
}

func searchInts(a []int, x int) int {
	// This function body is a manually inlined version of:
	//   return sort.Search(len(a), func(i int) bool { return a[i] > x }) - 1
	i, j := 0, len(a)
	for i < j {
		h := i + (j-i)/2 // avoid overflow when computing h
		// i ≤ h < j
		if a[h] <= x {
			i = h + 1
		} else {
			j = h
		}
	}
	return i - 1
}

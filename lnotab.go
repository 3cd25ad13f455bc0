// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

// lineMark maps the first instruction of a source line to that line.
type lineMark struct {
	offset int
	line   int
}

// encodeLnoTab encodes line marks into (byte increment, line increment)
// pairs. A byte increment over 255 is split into (255, 0) pairs, a line
// increment over 127 or under -128 into extra pairs with a zero byte
// increment. Negative line increments are stored as two's complement.
func encodeLnoTab(marks []lineMark, firstLine int) []byte {
	var out []byte
	lastOffset, lastLine := 0, firstLine

	for _, m := range marks {
		lineIncr := m.line - lastLine
		if lineIncr == 0 {
			continue
		}
		byteIncr := m.offset - lastOffset
		for byteIncr > 255 {
			out = append(out, 255, 0)
			byteIncr -= 255
		}

		incrs := splitLineIncr(lineIncr)
		out = append(out, byte(byteIncr), incrs[0])
		for _, incr := range incrs[1:] {
			out = append(out, 0, incr)
		}

		lastOffset, lastLine = m.offset, m.line
	}
	return out
}

func splitLineIncr(incr int) []byte {
	var out []byte
	if incr > 0 {
		for incr > 127 {
			out = append(out, 127)
			incr -= 127
		}
		return append(out, byte(incr))
	}
	for incr < -128 {
		out = append(out, 128)
		incr += 128
	}
	return append(out, byte(256+incr))
}

// lineForOffset decodes lnotab and returns the line of the instruction at
// offset.
func lineForOffset(lnotab []byte, firstLine, offset int) int {
	line, addr := firstLine, 0
	for i := 0; i+1 < len(lnotab); i += 2 {
		addr += int(lnotab[i])
		if addr > offset {
			break
		}
		line += int(int8(lnotab[i+1]))
	}
	return line
}

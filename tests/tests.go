// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Package tests holds helpers shared by the test suites of ulan packages.
package tests

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/ozanh/ulan"
)

// Sdump returns a multi line dump of value to be used in failure messages.
// Containers are expanded one element per line with their type names.
func Sdump(value interface{}) string {
	var sb strings.Builder
	sdump("", &sb, value)
	return sb.String()
}

func sdump(prefix string, sb *strings.Builder, value interface{}) {
	const indent = "  "

	var elems []ulan.Object
	switch v := value.(type) {
	case nil:
		sb.WriteString("<nil>\n")
		return
	case ulan.Tuple:
		elems = v
	case ulan.List:
		elems = v
	case *ulan.Set:
		elems = v.Elems()
	case *ulan.Dict:
		keys := v.Keys()
		fmt.Fprintf(sb, "(dict len=%d) {", len(keys))
		if len(keys) == 0 {
			sb.WriteString("}\n")
			return
		}
		sb.WriteString("\n")
		sort.SliceStable(keys, func(i, j int) bool {
			return ulan.Repr(keys[i]) < ulan.Repr(keys[j])
		})
		for _, k := range keys {
			sb.WriteString(prefix + indent + ulan.Repr(k) + ": ")
			val, _ := v.Get(k)
			sdump(prefix+indent, sb, val)
		}
		sb.WriteString(prefix + "}\n")
		return
	case ulan.Object:
		fmt.Fprintf(sb, "(%s) %s\n", v.TypeName(), ulan.Repr(v))
		return
	default:
		fmt.Fprintf(sb, "(%T) %#v\n", v, v)
		return
	}

	fmt.Fprintf(sb, "(%s len=%d) {", value.(ulan.Object).TypeName(), len(elems))
	if len(elems) == 0 {
		sb.WriteString("}\n")
		return
	}
	sb.WriteString("\n")
	for i, e := range elems {
		fmt.Fprintf(sb, "%s%s#%d ", prefix, indent, i)
		sdump(prefix+indent, sb, e)
	}
	sb.WriteString(prefix + "}\n")
}

// WriteFiles creates files under dir. Keys are slash separated paths
// relative to dir, parent directories are created as needed.
func WriteFiles(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for name, src := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// CapturePrint redirects ulan.PrintWriter to the returned buffer until the
// test finishes.
func CapturePrint(t testing.TB) *bytes.Buffer {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	orig := ulan.PrintWriter
	ulan.PrintWriter = buf
	t.Cleanup(func() { ulan.PrintWriter = orig })
	return buf
}

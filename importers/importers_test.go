package importers_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/ozanh/ulan"
	"github.com/ozanh/ulan/importers"
	"github.com/ozanh/ulan/tests"
)

func TestFileImporter(t *testing.T) {
	buf := tests.CapturePrint(t)

	files := map[string]string{
		"pkg/a.ulan": `
let b = self::b::value;
let value = b .add. 1;
::print({[a]});
`,
		"pkg/b.ulan": `
let value = 1;
::print({[b]});
`,
		"pkg/sub/c.ulan": `
let value = super::a::value;
::print({[c]});
`,
	}

	dir := t.TempDir()
	tests.WriteFiles(t, dir, files)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	mm := ulan.NewModuleMap()
	mm.SetExtImporter(&importers.FileImporter{Paths: []string{dir}, Logger: logger})

	script := `
let x = pkg::sub::c::value;
let y = pkg::a::value;
::print(x, y);
`
	code, err := ulan.Compile([]byte(script), ulan.DefaultCompilerOptions)
	require.NoError(t, err)

	globals := ulan.NewDict()
	_, err = ulan.NewVM(code).SetModuleMap(mm).Run(globals)
	require.NoError(t, err)
	// modules are run once
	require.Equal(t, "b\na\nc\n2 2\n", buf.String())

	x, _ := globals.GetStr("x")
	require.Equal(t, ulan.Int(2), x)
	require.NotEmpty(t, hook.AllEntries())

	_, err = ulan.NewVM(mustCompile(t, "let z = pkg::missing::value;")).
		SetModuleMap(mm).Run(nil)
	require.Error(t, err)
	require.ErrorIs(t, err, ulan.ErrImport)
}

func TestFileImporter_Get(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m.ulan"), []byte("1;"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.ulan"), 0o755))

	im := &importers.FileImporter{Paths: []string{filepath.Join(dir, "none"), dir}}
	require.Nil(t, im.Get(""))
	require.Nil(t, im.Get("x"))
	require.Nil(t, im.Get("d"))

	got := im.Get("m")
	require.NotNil(t, got)
	require.Equal(t, filepath.Join(dir, "m.ulan"), got.Name())

	src, err := got.Import("m")
	require.NoError(t, err)
	require.Equal(t, []byte("1;"), src)

	_, err = im.Import("m")
	require.Error(t, err)
}

func mustCompile(t *testing.T, src string) *ulan.Code {
	t.Helper()
	code, err := ulan.Compile([]byte(src), ulan.DefaultCompilerOptions)
	require.NoError(t, err)
	return code
}

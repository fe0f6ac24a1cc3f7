package pack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.html":              "<html></html>",
		"assets/app.js":           "console.log(1)",
		"assets/app.js.map":       "{}",
		"netlify/functions/a.js":  "x",
		".env":                    "SECRET=1",
		".env.production":         "SECRET=2",
		"debug.log":               "noise",
		".git/HEAD":               "ref",
		"node_modules/x/index.js": "x",
	}
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func TestDir(t *testing.T) {
	for _, name := range []string{"site.zip", "site.tar.xz"} {
		t.Run(name, func(t *testing.T) {
			root := project(t)
			out := filepath.Join(t.TempDir(), name)

			m, err := Dir(root, out, []string{"*.map"})
			require.NoError(t, err)

			want := []string{"assets/app.js", "index.html", "netlify/functions/a.js"}
			assert.Equal(t, want, m.Entries)
			assert.Equal(t, int64(len("console.log(1)")+len("<html></html>")+1), m.Bytes)

			names, err := List(out)
			require.NoError(t, err)
			assert.Equal(t, want, names)
		})
	}
}

func TestDirSkipsOwnOutput(t *testing.T) {
	root := project(t)
	out := filepath.Join(root, "site.zip")

	m, err := Dir(root, out, nil)
	require.NoError(t, err)
	assert.NotContains(t, m.Entries, "site.zip")
}

func TestExcludeWholePath(t *testing.T) {
	root := project(t)
	m, err := Dir(root, filepath.Join(t.TempDir(), "x.zip"), []string{"netlify/functions"})
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/app.js", "assets/app.js.map", "index.html"}, m.Entries)
}

func TestFormatFor(t *testing.T) {
	f, err := FormatFor("OUT.TXZ")
	require.NoError(t, err)
	assert.Equal(t, FormatTarXZ, f)

	_, err = FormatFor("out.rar")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Dir(t.TempDir(), filepath.Join(t.TempDir(), "x.zip"), []string{"["})
	assert.Error(t, err)
}

package category

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableLookup(t *testing.T) {
	table, err := NewTable("utilities", map[string]string{
		"Code.exe":    "productivity",
		"Discord.exe": "entertainment",
	})
	require.NoError(t, err)

	tests := []struct {
		exe  string
		want string
	}{
		{"Code.exe", "productivity"},
		{"code.EXE", "productivity"},
		{"  Discord.exe ", "entertainment"},
		{"notepad.exe", "utilities"},
		{"", "utilities"},
	}
	for _, tt := range tests {
		t.Run(tt.exe, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Lookup(tt.exe))
		})
	}

	assert.Equal(t, []string{"entertainment", "productivity", "utilities"}, table.Categories())
	assert.Equal(t, 2, table.Len())
}

func TestNewTableRejectsBadEntries(t *testing.T) {
	_, err := NewTable("", nil)
	require.Error(t, err)

	_, err = NewTable("utilities", map[string]string{"": "productivity"})
	require.Error(t, err)

	_, err = NewTable("utilities", map[string]string{"a": " "})
	require.Error(t, err)
}

func TestParse(t *testing.T) {
	data := []byte(`
default: misc
categories:
  productivity: [Code.exe, firefox]
  entertainment:
    - Discord.exe
`)
	table, err := Parse(data, "utilities")
	require.NoError(t, err)

	assert.Equal(t, "misc", table.Fallback())
	assert.Equal(t, "productivity", table.Lookup("FIREFOX"))
	assert.Equal(t, "entertainment", table.Lookup("Discord.exe"))
	assert.Equal(t, "misc", table.Lookup("javaw.exe"))
}

func TestParseConflict(t *testing.T) {
	data := []byte(`
categories:
  productivity: [Code.exe]
  entertainment: [code.exe]
`)
	_, err := Parse(data, "utilities")
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	table, err := Load("", "utilities")
	require.NoError(t, err)
	assert.Equal(t, "utilities", table.Lookup("anything"))

	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  productivity: [vim]\n"), 0o644))

	table, err = Load(path, "utilities")
	require.NoError(t, err)
	assert.Equal(t, "productivity", table.Lookup("vim"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), "utilities")
	require.Error(t, err)
}

package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitArgs(t *testing.T) {
	t.Run("splits at the first separator", func(t *testing.T) {
		common, params := SplitArgs([]string{"importer", "--silent", "--", "a.tiff", "b.tiff"})
		assert.Equal(t, []string{"importer", "--silent"}, common)
		assert.Equal(t, []string{"a.tiff", "b.tiff"}, params)
	})

	t.Run("no separator means no params", func(t *testing.T) {
		common, params := SplitArgs([]string{"importer", "--silent"})
		assert.Equal(t, []string{"importer", "--silent"}, common)
		assert.Nil(t, params)
	})

	t.Run("later separators belong to the params", func(t *testing.T) {
		common, params := SplitArgs([]string{"cmd", "--", "a", "--", "b"})
		assert.Equal(t, []string{"cmd"}, common)
		assert.Equal(t, []string{"a", "--", "b"}, params)
	})

	t.Run("empty input", func(t *testing.T) {
		common, params := SplitArgs(nil)
		assert.Empty(t, common)
		assert.Nil(t, params)
	})
}

func TestSplitGroups(t *testing.T) {
	t.Run("exact division", func(t *testing.T) {
		groups, err := SplitGroups([]string{"a", "b", "c", "d"}, 2)
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}}, groups)
	})

	t.Run("remainder forms a short final group", func(t *testing.T) {
		groups, err := SplitGroups([]string{"a", "b", "c"}, 2)
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, groups)
	})

	t.Run("groupsize one", func(t *testing.T) {
		groups, err := SplitGroups([]string{"a", "b"}, 1)
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"a"}, {"b"}}, groups)
	})

	t.Run("no params means no groups", func(t *testing.T) {
		groups, err := SplitGroups(nil, 3)
		require.NoError(t, err)
		assert.Nil(t, groups)
	})

	t.Run("rejects non-positive groupsize", func(t *testing.T) {
		_, err := SplitGroups([]string{"a"}, 0)
		assert.Error(t, err)
	})
}

func TestBuildCommands(t *testing.T) {
	t.Run("appends each group to the common prefix", func(t *testing.T) {
		cmds := BuildCommands([]string{"importer", "--silent"}, [][]string{{"a"}, {"b", "c"}})
		assert.Equal(t, [][]string{
			{"importer", "--silent", "a"},
			{"importer", "--silent", "b", "c"},
		}, cmds)
	})

	t.Run("no groups runs the bare command once", func(t *testing.T) {
		cmds := BuildCommands([]string{"importer"}, nil)
		assert.Equal(t, [][]string{{"importer"}}, cmds)
	})

	t.Run("commands do not alias the common prefix", func(t *testing.T) {
		common := []string{"cmd"}
		cmds := BuildCommands(common, [][]string{{"a"}, {"b"}})
		cmds[0][0] = "mutated"
		assert.Equal(t, "cmd", common[0])
		assert.Equal(t, "cmd", cmds[1][0])
	})
}

func TestWithLogin(t *testing.T) {
	common := []string{"importer", "--silent"}
	got := WithLogin(common, "omero.example.org", 4064, "tok-123")
	assert.Equal(t, []string{"importer", "--silent", "-s", "omero.example.org", "-p", "4064", "-k", "tok-123"}, got)

	t.Run("original prefix untouched", func(t *testing.T) {
		assert.Equal(t, []string{"importer", "--silent"}, common)
	})
}

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortPathItemsDirsFirstThenName(t *testing.T) {
	items := []PathItem{
		{Kind: File, Name: "b.txt"},
		{Kind: Dir, Name: "z"},
		{Kind: File, Name: "a.txt"},
		{Kind: SymlinkDir, Name: "m"},
	}
	SortPathItems(items)

	var names []string
	for _, it := range items {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"m", "z", "a.txt", "b.txt"}, names)
}

func TestPathItemMarshalOmitsSizeForDirs(t *testing.T) {
	dir := PathItem{Kind: Dir, Name: "sub", MTime: 123}
	b, err := json.Marshal(dir)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path_type":"Dir","name":"sub","mtime":123}`, string(b))

	file := PathItem{Kind: File, Name: "f.txt", MTime: 123, Size: 10}
	b, err = json.Marshal(file)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path_type":"File","name":"f.txt","mtime":123,"size":10}`, string(b))
}

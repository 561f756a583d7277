package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type envReplaceInner struct {
	String string
	NotSet string
}

type envReplaceOuter struct {
	Int    int
	String string
	Inner  envReplaceInner
	List   []envReplaceInner
}

func TestReplaceEnvKeys(t *testing.T) {
	data := &envReplaceOuter{
		Int:    5,
		String: "$REPLACE_ME",
		Inner: envReplaceInner{
			String: "$ALSO_ME",
			NotSet: "$MISSING",
		},
		List: []envReplaceInner{{String: "$ALSO_ME"}},
	}

	env := map[string]string{
		"REPLACE_ME": "foo",
		"ALSO_ME":    "bar",
	}
	getenv := func(key string) string { return env[key] }

	require.NoError(t, replaceEnvKeys(data, getenv))

	require.Equal(t, 5, data.Int)
	require.Equal(t, "foo", data.String)
	require.Equal(t, "bar", data.Inner.String)
	require.Equal(t, "", data.Inner.NotSet)
	require.Equal(t, "bar", data.List[0].String)
}

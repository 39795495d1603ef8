package codec

import (
	"testing"

	"github.com/inovacc/htables/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestCodecs_RoundTrip(t *testing.T) {
	inputs := []map[string]string{
		{},
		{"hello": "world"},
		{"name": "bolt", "qty": "5", "empty": ""},
		{"unicode": "ţară ✓", "quote": `he said "hi"`, "newline": "a\nb", "colon": "k: v"},
		{"yes": "no", "null": "~", "num": "007"},
	}

	for _, c := range []Codec{JSON{}, YAML{}} {
		t.Run(c.Name(), func(t *testing.T) {
			for _, in := range inputs {
				data, err := c.Marshal(in)
				require.NoError(t, err)

				out, err := c.Unmarshal(data)
				require.NoError(t, err)
				require.Equal(t, in, out)
			}
		})
	}
}

func TestJSON_RejectsInvalidUTF8(t *testing.T) {
	for _, in := range []map[string]string{
		{"bin": "a\xffb"},
		{"k\x80": "v"},
	} {
		_, err := JSON{}.Marshal(in)

		var fieldErr *storage.InvalidFieldError
		require.ErrorAs(t, err, &fieldErr)
	}
}

func TestYAML_KeepsArbitraryBytes(t *testing.T) {
	in := map[string]string{"bin": "a\xffb\xfe", "k\x80": "v"}

	data, err := YAML{}.Marshal(in)
	require.NoError(t, err)

	out, err := YAML{}.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestJSON_SortedKeys(t *testing.T) {
	data, err := JSON{}.Marshal(map[string]string{"b": "2", "a": "1", "c": "3"})
	require.NoError(t, err)
	require.Equal(t, `{"a":"1","b":"2","c":"3"}`, string(data))
}

func TestCodecs_NilMap(t *testing.T) {
	for _, c := range []Codec{JSON{}, YAML{}} {
		data, err := c.Marshal(nil)
		require.NoError(t, err)

		out, err := c.Unmarshal(data)
		require.NoError(t, err)
		require.NotNil(t, out)
		require.Empty(t, out)
	}
}

func TestCodecs_Garbage(t *testing.T) {
	_, err := JSON{}.Unmarshal([]byte("{not json"))
	require.Error(t, err)

	_, err = YAML{}.Unmarshal([]byte("- a\n- b\n"))
	require.Error(t, err)
}

func TestByName(t *testing.T) {
	c, err := ByName("")
	require.NoError(t, err)
	require.Equal(t, "json", c.Name())

	c, err = ByName("yaml")
	require.NoError(t, err)
	require.Equal(t, "yaml", c.Name())

	_, err = ByName("gob")
	require.Error(t, err)
}

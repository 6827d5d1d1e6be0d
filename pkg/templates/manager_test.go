package templates

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPrompts(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	assert.True(t, m.TemplateExists("score_document.tmpl"))
	assert.True(t, m.TemplateExists("indicator_narrative.tmpl"))
	assert.True(t, m.TemplateExists("run_finished.tmpl"))

	out, err := m.ExecuteTemplate("score_document.tmpl", map[string]string{"Title": "茅台提价", "Content": "出厂价上调20%"})
	require.NoError(t, err)
	assert.Contains(t, out, "茅台提价")
	assert.Contains(t, out, "=== USER PROMPT ===")
}

func TestOptHelper(t *testing.T) {
	fsys := fstest.MapFS{
		"a.tmpl": {Data: []byte(`{{opt .V 2}}|{{opt .Missing 2}}`)},
	}
	m, err := NewManager(fsys)
	require.NoError(t, err)

	v := 1.23456
	out, err := m.ExecuteTemplate("a.tmpl", struct{ V, Missing *float64 }{V: &v})
	require.NoError(t, err)
	assert.Equal(t, "1.23|-", out)
}

func TestMissingTemplate(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	_, err = m.ExecuteTemplate("nope.tmpl", nil)
	assert.Error(t, err)

	_, err = NewManager(fstest.MapFS{})
	assert.Error(t, err)
}

package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	assert.Equal(t, "###.......", Render(1, 4))
	assert.Equal(t, "#####.....", Render(2, 4))
	assert.Equal(t, "##########", Render(4, 4))
	assert.Equal(t, "..........", Render(0, 4))
	assert.Equal(t, "..........", Render(1, 0))
	assert.Equal(t, "##########", Render(9, 4))
}

func TestBar_Step(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&buf)

	bar.Step(1, 4, "Cloning repository...")
	bar.Step(4, 4, "Deployment completed.")

	assert.Equal(t,
		"[01/4] [###.......] Cloning repository...\n"+
			"[04/4] [##########] Deployment completed.\n",
		buf.String())
}

func TestMulti_Step(t *testing.T) {
	var got []string
	rec := ReporterFunc(func(step, total int, label string) { got = append(got, label) })

	Multi{rec, nil, Nop{}, rec}.Step(1, 2, "x")

	assert.Equal(t, []string{"x", "x"}, got)
}

package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPodInfoFor(t *testing.T) {
	a := PodInfoFor("gallery-7d9f-abcde")
	assert.Equal(t, "gallery-7d9f-abcde", a.Hostname)
	assert.Contains(t, accentColors, a.Color)
	assert.Equal(t, a, PodInfoFor("gallery-7d9f-abcde"))
}

package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualifiedNameWithoutParameters(t *testing.T) {
	assert.Equal(t, "compiler", QualifiedName("compiler", nil))
}

func TestQualifiedNameSortsParameterKeys(t *testing.T) {
	a := QualifiedName("compiler", Parameters{"arch": "amd64", "os": "linux"})
	b := QualifiedName("compiler", Parameters{"os": "linux", "arch": "amd64"})

	assert.Equal(t, a, b)
	assert.Equal(t, "compiler:arch=amd64,os=linux", a)
}

func TestQualifiedNameDistinguishesParameterValues(t *testing.T) {
	a := QualifiedName("compiler", Parameters{"arch": "amd64"})
	b := QualifiedName("compiler", Parameters{"arch": "arm64"})
	assert.NotEqual(t, a, b)
}

func TestErrNotFoundMessage(t *testing.T) {
	err := &ErrNotFound{QualifiedName: "missing:x=1"}
	assert.Contains(t, err.Error(), "missing:x=1")
}

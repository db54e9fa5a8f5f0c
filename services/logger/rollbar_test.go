package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/finadmin/core"
)

func TestRollbarLogger_prepare(t *testing.T) {
	l := NewRollbarLogger(log.New(new(bytes.Buffer), "", 0), core.NewTestConfig())
	err := errors.New("boom")
	extras := map[string]interface{}{"key_id": 3}

	args := l.prepare("saving", []interface{}{err, core.Person{ID: "1", Username: "bob"}, extras})

	assert.Equal(t, []interface{}{"saving", err, extras}, args)
}

func TestRollbarLogger_print(t *testing.T) {
	var out bytes.Buffer
	l := NewRollbarLogger(log.New(&out, "", 0), core.NewTestConfig())

	l.Info("fetched", errors.New("partial"))

	assert.Equal(t, "fetched\npartial\n", out.String())
}

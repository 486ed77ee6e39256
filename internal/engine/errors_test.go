package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFatalError_MessageWithoutSource(t *testing.T) {
	err := newConfigError(CodeConfigMissing, errors.New("no such file"))

	assert.Equal(t, "CONFIG_MISSING: cannot load effective configuration", err.Error())
}

func TestFatalError_MessageWithSource(t *testing.T) {
	err := newMountError("/dev/sdb1", errors.New("mount: unknown filesystem"))

	assert.Equal(t, "MOUNT_FAILED: cannot mount configured source (source=/dev/sdb1)", err.Error())
}

func TestFatalError_UnwrapsCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := newMountError("/dev/sdb1", cause)

	assert.ErrorIs(t, err, cause)
}

func TestIsConfigError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"missing document", newConfigError(CodeConfigMissing, errors.New("gone")), true},
		{"invalid document", newConfigError(CodeConfigInvalid, errors.New("bad json")), true},
		{"mount failure", newMountError("/dev/sdb1", errors.New("boom")), false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConfigError(tt.err))
		})
	}
}

func TestIsMountError(t *testing.T) {
	assert.True(t, IsMountError(newMountError("nfs://host/share", errors.New("timeout"))))
	assert.False(t, IsMountError(newConfigError(CodeConfigInvalid, errors.New("bad"))))
	assert.False(t, IsMountError(errors.New("boom")))
}

func TestIsMountError_Wrapped(t *testing.T) {
	inner := newMountError("/dev/sdb1", errors.New("boom"))
	wrapped := fmt.Errorf("run failed: %w", inner)

	assert.True(t, IsMountError(wrapped), "should see through error wrapping")
}

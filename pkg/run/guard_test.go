package run

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGuardRequiresRoot(t *testing.T) {
	_, err := NewGuard("")
	assert.Error(t, err)
}

func TestGuardResolve(t *testing.T) {
	root := t.TempDir()
	guard, err := NewGuard(root)
	require.NoError(t, err)

	tests := []struct {
		name     string
		relative string
		wantErr  bool
	}{
		{"plain file", "raw.txt", false},
		{"nested path", "gpt/outputs/aura_dna.txt", false},
		{"dot segments that stay inside", "gpt/../gpt/raw.txt", false},
		{"empty", "", true},
		{"absolute", filepath.Join(root, "raw.txt"), true},
		{"parent escape", "../outside.txt", true},
		{"deep escape", "gpt/../../../etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest, err := guard.Resolve(tt.relative)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(dest))
			assert.Contains(t, dest, guard.Root())
		})
	}
}

func TestSaveArtifactRejectsEscape(t *testing.T) {
	m := newTestManager(t)
	_, err := m.InitRun("r1")
	require.NoError(t, err)
	stepID, err := m.AddStep("r1", "dna")
	require.NoError(t, err)

	_, err = m.SaveArtifact("r1", stepID, "../../elsewhere.txt", []byte("x"))
	assert.Error(t, err)
}

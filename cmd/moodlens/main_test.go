package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/moodlens/internal/emotion"
	"github.com/ayusman/moodlens/internal/state"
)

func TestVideoClock_AdvancesOneFramePerRead(t *testing.T) {
	start := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	c := newVideoClock(start, 4)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(250*time.Millisecond), c.Now())
	assert.Equal(t, start.Add(500*time.Millisecond), c.Now())
}

func TestPrintSummary(t *testing.T) {
	s := state.New()
	s.SetEmotions(emotion.Distribution{emotion.Happy: 0.75, emotion.Sad: 0.25})
	s.AppendFrame(state.FrameRecord{Label: emotion.Happy})
	s.AppendFrame(state.FrameRecord{})

	var buf bytes.Buffer
	printSummary(&buf, s)

	out := buf.String()
	assert.Contains(t, out, "happy     0.7500")
	assert.Contains(t, out, "sad       0.2500")
	assert.Contains(t, out, "History: happy -\n")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("angry")), bytes.Index(buf.Bytes(), []byte("surprise")))
}

func TestViewerURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":5000", "http://localhost:5000"},
		{"0.0.0.0:8080", "http://localhost:8080"},
		{"127.0.0.1:5000", "http://127.0.0.1:5000"},
		{"example.test", "http://example.test"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, viewerURL(tt.addr), tt.addr)
	}
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	envFile = filepath.Join(t.TempDir(), "missing.env")
	t.Setenv("MOODLENS_ADDR", ":6000")
	t.Setenv("MOODLENS_CAMERA", "1")
	t.Setenv("MOODLENS_DATA_DIR", "/var/lib/moodlens")

	var opts serveOptions
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "")
	cmd.Flags().StringVar(&opts.Camera, "camera", "", "")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--camera", "2"}))

	cfg, err := loadConfig(cmd, &opts)
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.Addr, "unset flag keeps the environment value")
	assert.Equal(t, "2", cfg.Camera)
	assert.Equal(t, filepath.Join("/var/lib/moodlens", "moodlens.db"), cfg.DBPath)
}

func TestLoadConfig_Invalid(t *testing.T) {
	envFile = filepath.Join(t.TempDir(), "missing.env")
	t.Setenv("MOODLENS_LOG_LEVEL", "chatty")

	cmd := &cobra.Command{Use: "test"}
	_, err := loadConfig(cmd, &serveOptions{})
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *ConfigManager {
	t.Helper()
	m, err := NewConfigManager(filepath.Join(t.TempDir(), "nested", ConfigFileName))
	require.NoError(t, err)
	return m
}

func TestMissingFileIsEmptyStore(t *testing.T) {
	m := newTestManager(t)

	assert.Equal(t, DefaultProfileName, m.DefaultProfile())
	assert.Empty(t, m.Profiles())

	_, found, err := m.Load("work")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	m := newTestManager(t)

	want := Profile{
		Service:          common.S3,
		Region:           "eu-central-1",
		Bucket:           "team-assets",
		AccessKeyID:      "AKIA",
		SecretAccessKey:  "secret",
		Timeout:          45 * time.Second,
		RetryMaxAttempts: 3,
		Private:          true,
	}
	require.NoError(t, m.Save("Work", want))

	// A fresh manager proves the values were written to disk
	reloaded, err := NewConfigManager(m.Path())
	require.NoError(t, err)

	got, found, err := reloaded.Load("work")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"work"}, reloaded.Profiles())

	info, err := os.Stat(m.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSetValueAndGetValue(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.SetValue("lab.service", "minio"))
	require.NoError(t, m.SetValue("lab.endpoint", "http://localhost:9000"))
	require.NoError(t, m.SetValue("lab.timeout", "10s"))
	require.NoError(t, m.SetValue("lab.private", "true"))

	val, found, err := m.GetValue("lab.service")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "s3compatible", val)

	_, found, err = m.GetValue("lab.region")
	require.NoError(t, err)
	assert.False(t, found)

	p, found, err := m.Load("lab")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, common.S3Compatible, p.Service)
	assert.Equal(t, 10*time.Second, p.Timeout)
	assert.True(t, p.Private)
}

func TestSetValueRejectsBadKeys(t *testing.T) {
	m := newTestManager(t)

	assert.Error(t, m.SetValue("noprofile", "x"))
	assert.ErrorIs(t, m.SetValue("lab.colour", "blue"), ErrUnknownKey)
	assert.ErrorIs(t, m.SetValue("lab.service", "ftp"), storage.ErrUnsupportedService)
}

func TestDefaultProfile(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.SetValue(DefaultProfileKey, "lab"))
	assert.Equal(t, "lab", m.DefaultProfile())

	t.Setenv("BUCKETDECK_DEFAULT_PROFILE", "ci")
	assert.Equal(t, "ci", m.DefaultProfile())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Save("ci", Profile{Service: common.S3, Region: "us-east-1", Bucket: "ci-bucket"}))

	t.Setenv("BUCKETDECK_PROFILES_CI_REGION", "ap-south-1")
	t.Setenv("BUCKETDECK_PROFILES_CI_RETRY_MAX_ATTEMPTS", "4")

	p, found, err := m.Load("ci")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ap-south-1", p.Region)
	assert.Equal(t, 4, p.RetryMaxAttempts)
	assert.Equal(t, "ci-bucket", p.Bucket)

	val, _, err := m.GetValue("ci.region")
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", val)
}

func TestLoadReportsDecodeErrors(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.SetValue("bad.timeout", "soon"))

	_, found, err := m.Load("bad")
	assert.True(t, found)
	assert.ErrorIs(t, err, storage.ErrConfig)
}

func TestDeleteValue(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Save("work", Profile{Service: common.GCS, Bucket: "logs-bucket", ProjectID: "proj"}))

	deleted, err := m.DeleteValue("work.project_id")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = m.DeleteValue("work.project_id")
	require.NoError(t, err)
	assert.False(t, deleted)

	p, _, err := m.Load("work")
	require.NoError(t, err)
	assert.Empty(t, p.ProjectID)
	assert.Equal(t, "logs-bucket", p.Bucket)

	deleted, err = m.DeleteValue("work")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, m.Profiles())
}

func TestGetAllSettingsRedactsSecrets(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Save("work", Profile{Service: common.S3, Region: "us-east-1", Bucket: "b-one", AccessKeyID: "id", SecretAccessKey: "hunter2"}))

	settings := m.GetAllSettings()
	profiles := settings["profiles"].(map[string]any)
	work := profiles["work"].(map[string]any)

	assert.Equal(t, "********", work["secret_access_key"])
	assert.Equal(t, "id", work["access_key_id"])
}

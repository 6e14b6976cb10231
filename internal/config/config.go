package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sort"
	"strings"

	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	ConfigFileName = "config.yaml"
	ConfigDirName  = "bucketdeck"
	EnvPrefix      = "BUCKETDECK"

	// DefaultProfileKey names the profile used when --profile is not given
	DefaultProfileKey  = "default_profile"
	DefaultProfileName = "default"

	profilesKey = "profiles"
)

// Profile is one named connection record
type Profile = storage.ClientConfig

// ErrUnknownKey is returned for keys that do not name a profile field
var ErrUnknownKey = errors.New("unknown config key")

// profileFields lists the keys a profile accepts, taken from the mapstructure tags of Profile
var profileFields = func() []string {
	t := reflect.TypeOf(Profile{})
	fields := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("mapstructure"); tag != "" && tag != "-" {
			fields = append(fields, tag)
		}
	}
	sort.Strings(fields)
	return fields
}()

// ProfileFields returns every settable profile field name
func ProfileFields() []string {
	return slices.Clone(profileFields)
}

// ConfigManager is the session store: named profiles persisted as YAML, with
// BUCKETDECK_PROFILES_<NAME>_<FIELD> environment variables overriding file values on load
type ConfigManager struct {
	path string
	file *viper.Viper
	env  *viper.Viper
}

// DefaultPath returns ~/.config/bucketdeck/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", ConfigDirName, ConfigFileName), nil
}

// NewConfigManager reads the file at path (DefaultPath when empty). A missing file is an empty store
func NewConfigManager(path string) (*ConfigManager, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	file, err := readFile(path)
	if err != nil {
		return nil, err
	}

	env := viper.New()
	env.SetEnvPrefix(EnvPrefix)
	env.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	env.AutomaticEnv()

	return &ConfigManager{path: path, file: file, env: env}, nil
}

func readFile(path string) (*viper.Viper, error) {
	v := newFileViper(path)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return v, nil
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return v, nil
}

func newFileViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetConfigPermissions(0o600)
	v.SetDefault(DefaultProfileKey, DefaultProfileName)
	return v
}

func (m *ConfigManager) Path() string {
	return m.path
}

// DefaultProfile returns the configured default profile name
func (m *ConfigManager) DefaultProfile() string {
	if name := m.env.GetString(DefaultProfileKey); name != "" {
		return name
	}
	return m.file.GetString(DefaultProfileKey)
}

// Profiles returns the names of all profiles in the file, sorted
func (m *ConfigManager) Profiles() []string {
	names := make([]string, 0)
	for name := range m.file.GetStringMap(profilesKey) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load decodes a profile. The bool is false when neither the file nor the environment mention it
func (m *ConfigManager) Load(name string) (Profile, bool, error) {
	if err := checkProfileName(name); err != nil {
		return Profile{}, false, err
	}

	raw := make(map[string]any)
	for _, field := range profileFields {
		key := profileKey(name, field)
		if val := m.env.Get(key); val != nil {
			raw[field] = val
		} else if m.file.IsSet(key) {
			raw[field] = m.file.Get(key)
		}
	}
	if len(raw) == 0 {
		return Profile{}, false, nil
	}

	var profile Profile
	if err := decodeProfile(raw, &profile); err != nil {
		return Profile{}, true, fmt.Errorf("%w: profile %q: %v", storage.ErrConfig, name, err)
	}
	return profile, true, nil
}

func decodeProfile(raw map[string]any, out *Profile) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			serviceTypeHook,
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// serviceTypeHook accepts the aliases ParseServiceType knows, such as "aws" or "minio"
var serviceTypeHook mapstructure.DecodeHookFuncType = func(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(common.ServiceType("")) {
		return data, nil
	}
	st, err := common.ParseServiceType(data.(string))
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Save replaces the named profile with p and writes the file
func (m *ConfigManager) Save(name string, p Profile) error {
	if err := checkProfileName(name); err != nil {
		return err
	}

	encoded := make(map[string]any)
	if err := mapstructure.Decode(p, &encoded); err != nil {
		return fmt.Errorf("error encoding profile: %w", err)
	}

	settings := m.file.AllSettings()
	profiles, _ := settings[profilesKey].(map[string]any)
	if profiles == nil {
		profiles = make(map[string]any)
	}
	profiles[strings.ToLower(name)] = compact(encoded)
	settings[profilesKey] = profiles

	return m.replace(settings)
}

// compact drops zero values so saved profiles stay short; durations are written as strings
func compact(encoded map[string]any) map[string]any {
	out := make(map[string]any, len(encoded))
	for k, v := range encoded {
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || rv.IsZero() {
			continue
		}
		switch val := v.(type) {
		case fmt.Stringer:
			out[k] = val.String()
		default:
			out[k] = v
		}
	}
	return out
}

// SetValue sets "<profile>.<field>" or "default_profile" and writes the file
func (m *ConfigManager) SetValue(key, value string) error {
	if key == DefaultProfileKey {
		if err := checkProfileName(value); err != nil {
			return err
		}
		m.file.Set(DefaultProfileKey, value)
		return m.write()
	}

	name, field, err := splitKey(key)
	if err != nil {
		return err
	}
	if field == "service" {
		st, err := common.ParseServiceType(value)
		if err != nil {
			return err
		}
		value = string(st)
	}
	m.file.Set(profileKey(name, field), value)
	return m.write()
}

// GetValue reads "<profile>.<field>" or "default_profile", environment first
func (m *ConfigManager) GetValue(key string) (string, bool, error) {
	if key == DefaultProfileKey {
		return m.DefaultProfile(), true, nil
	}

	name, field, err := splitKey(key)
	if err != nil {
		return "", false, err
	}
	full := profileKey(name, field)
	if val := m.env.Get(full); val != nil {
		return fmt.Sprint(val), true, nil
	}
	if !m.file.IsSet(full) {
		return "", false, nil
	}
	return m.file.GetString(full), true, nil
}

// DeleteValue removes a field, or a whole profile when key has no field. It reports whether anything was removed
func (m *ConfigManager) DeleteValue(key string) (bool, error) {
	path := []string{profilesKey}
	if name, field, err := splitKey(key); err == nil {
		path = append(path, strings.ToLower(name), field)
	} else if checkProfileName(key) == nil && !strings.Contains(key, ".") {
		path = append(path, strings.ToLower(key))
	} else {
		return false, err
	}

	settings := m.file.AllSettings()
	if !deleteNested(settings, path) {
		return false, nil
	}
	if err := m.replace(settings); err != nil {
		return false, err
	}
	return true, nil
}

func deleteNested(settings map[string]any, path []string) bool {
	current := settings
	for _, part := range path[:len(path)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return false
		}
		current = next
	}
	last := path[len(path)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}

// GetAllSettings returns the file contents with secrets redacted
func (m *ConfigManager) GetAllSettings() map[string]any {
	settings := m.file.AllSettings()
	profiles, _ := settings[profilesKey].(map[string]any)
	for _, p := range profiles {
		fields, ok := p.(map[string]any)
		if !ok {
			continue
		}
		for _, secret := range []string{"secret_access_key", "session_token"} {
			if v, ok := fields[secret]; ok && v != "" {
				fields[secret] = "********"
			}
		}
	}
	return settings
}

// viper cannot unset a key, so deletions rebuild the store from a settings map
func (m *ConfigManager) replace(settings map[string]any) error {
	v := newFileViper(m.path)
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("error rebuilding config: %w", err)
	}
	m.file = v
	return m.write()
}

func (m *ConfigManager) write() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := m.file.WriteConfigAs(m.path); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

func splitKey(key string) (string, string, error) {
	name, field, ok := strings.Cut(key, ".")
	if !ok {
		return "", "", fmt.Errorf("invalid config key format: %s. Use format like 'profile.field' (e.g., 'work.region')", key)
	}
	if err := checkProfileName(name); err != nil {
		return "", "", err
	}
	if !slices.Contains(profileFields, field) {
		return "", "", fmt.Errorf("%w: %s (valid fields: %s)", ErrUnknownKey, field, strings.Join(profileFields, ", "))
	}
	return name, field, nil
}

func checkProfileName(name string) error {
	if name == "" || strings.ContainsAny(name, ". \t") {
		return fmt.Errorf("invalid profile name %q", name)
	}
	return nil
}

// Profile names are case-insensitive; viper lowercases every key
func profileKey(name, field string) string {
	return profilesKey + "." + strings.ToLower(name) + "." + field
}

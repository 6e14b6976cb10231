package main

import (
	"fmt"
	"sort"
	"strings"

	"bucketdeck/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage connection profiles",
		Long: `Manage the named connection profiles stored in the config file. You can set, get, list, and delete values.
Keys have the form '<profile>.<field>'. Valid fields are: ` + strings.Join(config.ProfileFields(), ", "),
	}

	configSetCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set a configuration key-value pair",
		Long:  `Sets a configuration value. For example: 'bucketdeck config set work.service s3' or 'bucketdeck config set default_profile work'`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromContext(cmd.Context())
			if err != nil {
				return err
			}

			key := strings.ToLower(args[0])
			value := args[1]

			if err := app.ConfigManager.SetValue(key, value); err != nil {
				return fmt.Errorf("error setting configuration: %w", err)
			}
			if strings.HasSuffix(key, ".secret_access_key") || strings.HasSuffix(key, ".session_token") {
				value = "********"
			}
			fmt.Printf("Configuration set: %s = %s\n", key, value)
			return nil
		},
	}

	configGetCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Get a configuration value by key",
		Long:  `Retrieves a configuration value for a given key. For example: 'bucketdeck config get work.region'`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromContext(cmd.Context())
			if err != nil {
				return err
			}

			key := strings.ToLower(args[0])
			value, exists, err := app.ConfigManager.GetValue(key)
			if err != nil {
				return err
			}

			if !exists || value == "" {
				return fmt.Errorf("configuration key '%s' not found or not set", key)
			}
			fmt.Printf("%s = %v\n", key, value)
			return nil
		},
	}

	configDeleteCmd := &cobra.Command{
		Use:   "delete [key]",
		Short: "Delete a configuration value, or a whole profile",
		Long:  `Deletes a configuration value for a given key, or every value of a profile. For example: 'bucketdeck config delete work.endpoint' or 'bucketdeck config delete work'`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromContext(cmd.Context())
			if err != nil {
				return err
			}

			key := strings.ToLower(args[0])
			deleted, err := app.ConfigManager.DeleteValue(key)

			if err != nil {
				return fmt.Errorf("error deleting configuration: %w", err)
			}

			if !deleted {
				return fmt.Errorf("configuration key '%s' not found", key)
			}
			fmt.Printf("Configuration key '%s' deleted\n", key)
			return nil
		},
	}

	configListCmd := &cobra.Command{
		Use:   "list",
		Short: "List all current configuration values",
		Long:  `Displays all the key-value pairs currently stored in the configuration. Secrets are masked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromContext(cmd.Context())
			if err != nil {
				return err
			}

			settings := app.ConfigManager.GetAllSettings()
			flattenedSettings := flattenConfigMap(settings)

			var displaySettings = make(map[string]any)
			for k, v := range flattenedSettings {
				if s, ok := v.(string); ok {
					if s != "" {
						displaySettings[k] = v
					}
				} else if v != nil {
					displaySettings[k] = v
				}
			}

			if len(displaySettings) == 0 {
				fmt.Println("No configuration values set. Use 'bucketdeck config set <profile>.<field> <value>'.")
				return nil
			}

			keys := make([]string, 0, len(displaySettings))
			for k := range displaySettings {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			fmt.Printf("Current configuration (%s):\n", app.ConfigManager.Path())
			for _, k := range keys {
				fmt.Printf("  %s = %v\n", k, displaySettings[k])
			}

			return nil
		},
	}

	configProfilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the saved profile names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromContext(cmd.Context())
			if err != nil {
				return err
			}

			names := app.ConfigManager.Profiles()
			if len(names) == 0 {
				fmt.Println("No profiles saved.")
				return nil
			}
			defaultName := app.ConfigManager.DefaultProfile()
			for _, name := range names {
				marker := " "
				if name == defaultName {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, name)
			}
			return nil
		},
	}

	configShowCmd := &cobra.Command{
		Use:   "show [profile]",
		Short: "Show the effective settings of a profile",
		Long:  `Prints a profile as it will be used, after environment overrides are applied. Secrets are masked.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromContext(cmd.Context())
			if err != nil {
				return err
			}

			name := app.ConfigManager.DefaultProfile()
			if len(args) == 1 {
				name = args[0]
			}
			profile, exists, err := app.ConfigManager.Load(name)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("profile '%s' not found", name)
			}

			out, err := yaml.Marshal(profile.Redacted())
			if err != nil {
				return fmt.Errorf("error encoding profile: %w", err)
			}
			fmt.Printf("# profile: %s\n%s", name, out)
			return nil
		},
	}

	configCmd.AddCommand(configSetCmd, configGetCmd, configDeleteCmd, configListCmd, configProfilesCmd, configShowCmd)
	return configCmd
}

// Recursively flattens a nested map (like Viper's config) into a flat map with dot notation keys
func flattenConfigMap(nestedMap map[string]any) map[string]any {
	flattenedMap := make(map[string]any)

	var flatten func(string, any)
	flatten = func(prefix string, value any) {
		switch v := value.(type) {
		case map[string]any:
			for k, val := range v {
				newPrefix := k
				if prefix != "" {
					newPrefix = prefix + "." + k
				}
				flatten(newPrefix, val)
			}
		default:
			if prefix != "" {
				flattenedMap[prefix] = value
			}
		}
	}

	flatten("", nestedMap)
	return flattenedMap
}

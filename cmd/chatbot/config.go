package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func init() {
	configShowCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	configCmd.AddCommand(configShowCmd, configPathCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long:  "Display the configuration after merging defaults, the config file and the environment. Secrets are masked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(cmd); err != nil {
			return err
		}
		settings := viper.AllSettings()
		maskSecret(settings, "discord", "token")
		maskSecret(settings, "model", "remote", "api_key")

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(settings)
		}
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(settings)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(cmd); err != nil {
			return err
		}
		if f := viper.ConfigFileUsed(); f != "" {
			fmt.Println(f)
			return nil
		}
		fmt.Println("(no config file, using defaults and environment)")
		return nil
	},
}

// maskSecret replaces a non-empty nested string value with a fixed mask.
func maskSecret(settings map[string]any, path ...string) {
	m := settings
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			return
		}
		m = next
	}
	last := path[len(path)-1]
	if s, ok := m[last].(string); ok && s != "" {
		m[last] = "********"
	}
}

package cmd

import (
	"fmt"

	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/reliftlabs/relift/driver"
)

// initCmd: relift init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new analyzer configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		if err := initConfigurationFile(cfgFile); err != nil {
			logger.Error("Error initializing config file", zap.Error(err))
			return
		}
		fmt.Printf("Configuration file created/updated: %s\n", configPath(cfgFile))
	},
}

func configPath(path string) string {
	if path == "" {
		return driver.DefaultConfigPath
	}
	return path
}

func initConfigurationFile(configurationPath string) error {
	configurationPath = configPath(configurationPath)

	d, err := yaml.Marshal(driver.DefaultConfig())
	if err != nil {
		return err
	}

	f, err := os.Create(configurationPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(d)
	if err != nil {
		return err
	}

	return nil
}

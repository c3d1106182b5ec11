// Package main provides the boltcli command line client.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	bolt "github.com/joknelid/golang-neo4j-bolt-connection"
	"github.com/joknelid/golang-neo4j-bolt-connection/structures/messages"
)

var version = "1.0.0"

// cliConfig is the YAML configuration file shape. Flags override
// anything set in the file.
type cliConfig struct {
	Addr         string        `yaml:"addr"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func defaultConfig() cliConfig {
	return cliConfig{
		Addr:         "localhost:7687",
		DialTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

func loadConfig(path string) (cliConfig, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return config, nil
}

func resolveConfig(cmd *cobra.Command) (cliConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	config, err := loadConfig(path)
	if err != nil {
		return config, err
	}
	if cmd.Flags().Changed("addr") {
		config.Addr, _ = cmd.Flags().GetString("addr")
	}
	if cmd.Flags().Changed("user") {
		config.User, _ = cmd.Flags().GetString("user")
	}
	if cmd.Flags().Changed("password") {
		config.Password, _ = cmd.Flags().GetString("password")
	}
	return config, nil
}

func (c cliConfig) authToken() map[string]interface{} {
	if c.User == "" {
		return messages.NoAuth()
	}
	return messages.BasicAuth(c.User, c.Password)
}

func (c cliConfig) connect() (*bolt.Connection, error) {
	return bolt.ConnectInitialized(c.Addr, bolt.Config{
		DialTimeout:  c.DialTimeout,
		WriteTimeout: c.WriteTimeout,
	}, c.authToken())
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "boltcli",
		Short: "Command line client for graph databases speaking Bolt",
	}
	rootCmd.PersistentFlags().String("addr", "localhost:7687", "server address")
	rootCmd.PersistentFlags().String("user", "", "user name, empty for no authentication")
	rootCmd.PersistentFlags().String("password", "", "password")
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("boltcli v%s\n", version)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Connect, authenticate and print the server identification",
		RunE:  runPing,
	})

	runCmd := &cobra.Command{
		Use:   "run <statement>",
		Short: "Run a statement and print the records",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatement,
	}
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runPing(cmd *cobra.Command, args []string) error {
	config, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	conn, err := config.connect()
	if err != nil {
		return err
	}
	defer conn.Close()
	fmt.Printf("connected to %s (%s)\n", config.Addr, conn.ServerAgent())
	return nil
}

func runStatement(cmd *cobra.Command, args []string) error {
	config, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	conn, err := config.connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan error, 2)
	var fields []interface{}

	if err := conn.Run(args[0], nil, bolt.StreamObserver{
		OnCompleted: func(metadata map[string]interface{}) {
			if f, ok := metadata["fields"].([]interface{}); ok {
				fields = f
				fmt.Println(formatRow(fields))
			}
		},
		OnError: func(err error) { done <- err },
	}); err != nil {
		return err
	}
	if err := conn.PullAll(bolt.StreamObserver{
		OnNext: func(record []interface{}) {
			fmt.Println(formatRow(record))
		},
		OnCompleted: func(metadata map[string]interface{}) { done <- nil },
		OnError:     func(err error) { done <- err },
	}); err != nil {
		return err
	}
	if err := conn.Sync(); err != nil {
		return err
	}
	return <-done
}

func formatRow(values []interface{}) string {
	out := ""
	for i, value := range values {
		if i > 0 {
			out += "\t"
		}
		out += fmt.Sprintf("%v", value)
	}
	return out
}

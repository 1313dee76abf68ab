// Package cli implements the gatectl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"interview-gate/internal/repository"
)

var (
	tableName string
	envFile   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "gatectl",
	Short: "Operate the interview gate",
	Long:  "Inspect dashboard statistics and conversation logs, and dry-run the question policy.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(envFile)
	},
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&tableName, "table", "", "DynamoDB table (default: $STATE_TABLE)")
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before running; missing file is ignored")
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func getTableName() string {
	if tableName != "" {
		return tableName
	}
	return os.Getenv("STATE_TABLE")
}

func openStore(ctx context.Context) (*repository.Client, error) {
	table := getTableName()
	if table == "" {
		return nil, errors.New("no table configured: pass --table or set STATE_TABLE")
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return repository.New(awsdynamodb.NewFromConfig(cfg), table)
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

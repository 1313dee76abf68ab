package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"interview-gate/internal/question"
)

type topicList []string

func (t topicList) AllowedTopics() []string { return t }

type checkResult struct {
	Question string `json:"question"`
	question.Outcome
}

func init() {
	cmd := &cobra.Command{
		Use:   "check <question>",
		Short: "Dry-run the question policy against a question",
		Args:  cobra.MinimumNArgs(1),
		Run:   runCheck,
	}

	cmd.Flags().String("policy", "", "YAML policy file (default: built-in policy)")
	cmd.Flags().String("topics", "", "Allowed topics (comma-separated)")

	RootCmd.AddCommand(cmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	policyPath, _ := cmd.Flags().GetString("policy")
	topicsStr, _ := cmd.Flags().GetString("topics")

	result, err := checkQuestion(strings.Join(args, " "), policyPath, splitList(topicsStr))
	if err != nil {
		exitErr("check", err)
	}
	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		exitErr("write", err)
	}
}

func checkQuestion(text, policyPath string, topics []string) (checkResult, error) {
	policy := question.DefaultPolicy()
	if policyPath != "" {
		raw, err := os.ReadFile(policyPath)
		if err != nil {
			return checkResult{}, fmt.Errorf("read policy: %w", err)
		}
		if policy, err = question.ParsePolicy(raw); err != nil {
			return checkResult{}, err
		}
	}
	v, err := question.NewValidator(policy, topicList(topics))
	if err != nil {
		return checkResult{}, err
	}
	return checkResult{Question: text, Outcome: v.Validate(text)}, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/seald/internal/config"
)

// --- generate ---

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate a completion from the current model",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.Join(args, " ")
		maxTokens, _ := cmd.Flags().GetInt("max-tokens")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"prompt": prompt}
		if maxTokens > 0 {
			req["max_tokens"] = maxTokens
		}

		resp, err := client.post(cmd.Context(), "/api/generate", req)
		if err != nil {
			return err
		}

		var result struct {
			ID         string `json:"id"`
			Completion string `json:"completion"`
			Adapter    string `json:"adapter"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Completion)
		if result.Adapter != "" {
			printStatus("Adapter", "%s", result.Adapter)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().Int("max-tokens", 0, "maximum new tokens (default: server config)")
}

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Submit or list correction feedback",
}

var feedbackSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a corrected completion",
	Long: `Submit a corrected completion for a prompt.

Examples:
  seald feedback submit --prompt "capital of France" --corrected "Paris"
  seald feedback submit --prompt "2+2" --original "5" --corrected "4"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, _ := cmd.Flags().GetString("prompt")
		original, _ := cmd.Flags().GetString("original")
		corrected, _ := cmd.Flags().GetString("corrected")

		if prompt == "" || corrected == "" {
			return fmt.Errorf("--prompt and --corrected are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/submit_feedback", map[string]string{
			"prompt":               prompt,
			"original_completion":  original,
			"corrected_completion": corrected,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("%s", result["message"])
		return nil
	},
}

var feedbackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journaled feedback records",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/feedback")
		if err != nil {
			return err
		}

		var result struct {
			Feedback []struct {
				ID                  string `json:"id"`
				CreatedAt           string `json:"created_at"`
				Prompt              string `json:"prompt"`
				CorrectedCompletion string `json:"corrected_completion"`
			} `json:"feedback"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Feedback) == 0 {
			fmt.Println("No feedback recorded.")
			return nil
		}

		for _, rec := range result.Feedback {
			prompt := rec.Prompt
			if len(prompt) > 60 {
				prompt = prompt[:60] + "..."
			}
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, rec.ID[:8]),
				rec.CreatedAt,
				prompt,
			)
		}
		return nil
	},
}

func init() {
	feedbackSubmitCmd.Flags().String("prompt", "", "the prompt the model answered")
	feedbackSubmitCmd.Flags().String("original", "", "what the model produced")
	feedbackSubmitCmd.Flags().String("corrected", "", "what it should have produced")
	feedbackCmd.AddCommand(feedbackSubmitCmd)
	feedbackCmd.AddCommand(feedbackListCmd)
}

// --- adaptations ---

var adaptationsCmd = &cobra.Command{
	Use:   "adaptations",
	Short: "Show the adaptation audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/adaptations")
		if err != nil {
			return err
		}

		var result struct {
			Adaptations []struct {
				Seq       int64  `json:"sequence_number"`
				Kind      string `json:"event_kind"`
				Detail    string `json:"detail"`
				CreatedAt string `json:"created_at"`
			} `json:"adaptations"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Adaptations) == 0 {
			fmt.Println("No adaptation events yet.")
			return nil
		}

		for _, e := range result.Adaptations {
			kind := e.Kind
			switch kind {
			case "ModelUpdated":
				kind = colorize(colorGreen, kind)
			case "CycleFailed":
				kind = colorize(colorRed, kind)
			default:
				kind = colorize(colorCyan, kind)
			}
			fmt.Printf("%4d  %s  %s  %s\n", e.Seq, e.CreatedAt, kind, e.Detail)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
